package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an isolated organizational scope owning its own users and data
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Domain    string    `json:"domain,omitempty" db:"domain"`
	Tier      Tier      `json:"subscription_tier" db:"subscription_tier"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates a new Tenant instance at the free tier
func NewTenant(name, domain string) *Tenant {
	now := time.Now()
	return &Tenant{
		ID:        uuid.New(),
		Name:      name,
		Domain:    domain,
		Tier:      TierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
