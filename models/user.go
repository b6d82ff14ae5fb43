package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of a user within a tenant
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleMember UserRole = "member"
)

// User represents an account owned by exactly one tenant. Exactly one of
// PasswordHash and GoogleID may be empty; a user with both can sign in either way.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TenantID     uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	AvatarURL    string     `json:"avatar_url,omitempty" db:"avatar_url"`
	Role         UserRole   `json:"role" db:"role"`
	Tier         Tier       `json:"tier" db:"subscription_tier"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	PasswordHash string     `json:"-" db:"password_hash"`
	GoogleID     string     `json:"-" db:"google_id"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	// TenantName is populated by joined lookups, not stored on the users table.
	TenantName string `json:"tenant_name,omitempty" db:"-"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates a new User under the given tenant. The first user of a tenant
// is created with RoleAdmin by the resolver.
func NewUser(tenantID uuid.UUID, email, name string, role UserRole) *User {
	now := time.Now()
	return &User{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Email:     email,
		Name:      name,
		Role:      role,
		Tier:      TierFree,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Summary returns the client-facing projection of the user
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		AvatarURL:  u.AvatarURL,
		Role:       u.Role,
		TenantID:   u.TenantID,
		TenantName: u.TenantName,
		Tier:       u.Tier,
	}
}

// UserSummary is the user shape returned by auth endpoints
type UserSummary struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	Role       UserRole  `json:"role"`
	TenantID   uuid.UUID `json:"tenant_id"`
	TenantName string    `json:"tenant_name,omitempty"`
	Tier       Tier      `json:"tier"`
}
