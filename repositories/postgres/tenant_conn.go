package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// tenantConnContextKey is the context key for a request's tenant-bound connection
type tenantConnContextKey struct{}

// TenantConn is a pool connection bound to a single tenant for the lifetime of one
// request. Every query on it is scoped to the tenant through the app.tenant_id
// setting consulted by the row-level security policies. Owned by exactly one request;
// Release is safe to call more than once but releases exactly once.
type TenantConn struct {
	conn     *sql.Conn
	tenantID uuid.UUID
	logger   *zap.Logger
	once     sync.Once
	released atomic.Bool
}

// BindTenant acquires a connection from the pool and marks it with the tenant's
// identifier. May block under pool saturation; bounded by ctx.
func (db *DB) BindTenant(ctx context.Context, tenantID uuid.UUID) (*TenantConn, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx,
		`SELECT set_config('app.tenant_id', $1, false)`, tenantID.String()); err != nil {
		// Binding failed after acquisition: return the handle before propagating.
		_ = conn.Close()
		return nil, fmt.Errorf("failed to bind tenant context: %w", err)
	}

	db.logger.Debug("tenant context bound", zap.String("tenant_id", tenantID.String()))

	return &TenantConn{
		conn:     conn,
		tenantID: tenantID,
		logger:   db.logger,
	}, nil
}

// TenantID returns the tenant the connection is bound to
func (tc *TenantConn) TenantID() uuid.UUID {
	return tc.tenantID
}

// Released reports whether the connection has been returned to the pool
func (tc *TenantConn) Released() bool {
	return tc.released.Load()
}

// Release clears the tenant marker and returns the connection to the pool.
// Idempotent; the underlying handle is released exactly once.
func (tc *TenantConn) Release() {
	tc.once.Do(func() {
		tc.released.Store(true)

		// The request context may already be cancelled; use a short detached
		// deadline so the reset cannot hang the release path.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if _, err := tc.conn.ExecContext(ctx, `RESET app.tenant_id`); err != nil {
			tc.logger.Warn("failed to reset tenant setting on release",
				zap.String("tenant_id", tc.tenantID.String()),
				zap.Error(err))
		}
		if err := tc.conn.Close(); err != nil {
			tc.logger.Warn("failed to return connection to pool",
				zap.String("tenant_id", tc.tenantID.String()),
				zap.Error(err))
		}
	})
}

// WithTenantConn stores a tenant-bound connection in the context
func WithTenantConn(ctx context.Context, tc *TenantConn) context.Context {
	return context.WithValue(ctx, tenantConnContextKey{}, tc)
}

// TenantConnFromContext retrieves the tenant-bound connection from the context
func TenantConnFromContext(ctx context.Context) (*TenantConn, bool) {
	tc, ok := ctx.Value(tenantConnContextKey{}).(*TenantConn)
	return tc, ok
}
