package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/govconone/backend/models"
	"github.com/govconone/backend/repositories"
	"go.uber.org/zap"
)

// userColumns are the user fields selected by every lookup, joined with the
// owning tenant's name.
const userColumns = `
	u.id, u.tenant_id, u.email, u.name, u.avatar_url, u.role, u.subscription_tier,
	u.is_active, COALESCE(u.password_hash, ''), COALESCE(u.google_id, ''),
	u.last_login_at, u.created_at, u.updated_at, t.name
`

// UserRepository implements repositories.UserRepository
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, tenant_id, email, name, avatar_url, role,
			subscription_tier, is_active, password_hash, google_id, last_login_at,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.TenantID,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.Role,
		user.Tier,
		user.IsActive,
		user.PasswordHash,
		user.GoogleID,
		user.LastLoginAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created",
		zap.String("id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()))
	return nil
}

// GetByID retrieves a user by ID regardless of active flag
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u JOIN tenants t ON u.tenant_id = t.id
		WHERE u.id = $1
	`
	return r.queryOne(ctx, query, id)
}

// GetActiveByID retrieves a user by ID, only when active
func (r *UserRepository) GetActiveByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u JOIN tenants t ON u.tenant_id = t.id
		WHERE u.id = $1 AND u.is_active = true
	`
	return r.queryOne(ctx, query, id)
}

// GetByGoogleID retrieves a user by federated provider subject
func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u JOIN tenants t ON u.tenant_id = t.id
		WHERE u.google_id = $1
	`
	return r.queryOne(ctx, query, googleID)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u JOIN tenants t ON u.tenant_id = t.id
		WHERE u.email = $1
	`
	return r.queryOne(ctx, query, email)
}

// AttachGoogleIdentity links a federated subject and avatar to an existing user
func (r *UserRepository) AttachGoogleIdentity(ctx context.Context, id uuid.UUID, googleID, avatarURL string) error {
	query := `
		UPDATE users
		SET google_id = $2, avatar_url = $3, updated_at = NOW()
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, googleID, avatarURL)
	if err != nil {
		return fmt.Errorf("failed to attach google identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("google identity attached", zap.String("id", id.String()))
	return nil
}

// TouchLastLogin advances the user's last_login_at
func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) queryOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	executor := GetExecutor(ctx, r.db)
	user := &models.User{}

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.Name,
		&user.AvatarURL,
		&user.Role,
		&user.Tier,
		&user.IsActive,
		&user.PasswordHash,
		&user.GoogleID,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.TenantName,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
