// Package repositories defines the persistence interfaces consumed by services.
// Implementations live in repositories/postgres.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/govconone/backend/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// UserRepository manages durable user records
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetActiveByID returns the user joined with its tenant, only when active.
	GetActiveByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	AttachGoogleIdentity(ctx context.Context, id uuid.UUID, googleID, avatarURL string) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// TenantRepository manages durable tenant records
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// UsageRepository appends and queries usage records
type UsageRepository interface {
	Insert(ctx context.Context, log *models.UsageLog) error
	GetByTenantID(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.UsageLog, error)
	Summarize(ctx context.Context, tenantID uuid.UUID, since, until time.Time) (*models.UsageSummary, error)
}

// Transaction represents an active database transaction
type Transaction interface {
	Commit() error
	Rollback() error
}

// TransactionManager coordinates multi-repository transactions. Repository calls made
// with the context returned to fn execute inside the transaction.
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories groups all repository instances
type Repositories struct {
	Users   UserRepository
	Tenants TenantRepository
	Usage   UsageRepository
}
