package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/govconone/backend/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger       *zap.Logger
	queryTimeout time.Duration
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:           db,
		logger:       logger,
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema. Uniqueness constraints on users.email
// and users.google_id serialize concurrent first-time provisioning; the row-level
// security policies scope tenant-bound handles (see TenantConn).
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			domain VARCHAR(255),
			subscription_tier VARCHAR(20) NOT NULL DEFAULT 'free',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			role VARCHAR(50) NOT NULL DEFAULT 'member',
			subscription_tier VARCHAR(20) NOT NULL DEFAULT 'free',
			is_active BOOLEAN NOT NULL DEFAULT true,
			password_hash VARCHAR(255),
			google_id VARCHAR(255) UNIQUE,
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ai_usage_logs (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			endpoint VARCHAR(255) NOT NULL,
			method VARCHAR(10) NOT NULL,
			tier VARCHAR(20) NOT NULL,
			model_used VARCHAR(100),
			tokens_used INTEGER,
			cost_estimate DECIMAL(10, 6),
			duration_ms BIGINT NOT NULL,
			status_code INTEGER NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
		CREATE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id);
		CREATE INDEX IF NOT EXISTS idx_usage_logs_tenant_id ON ai_usage_logs(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_usage_logs_user_id ON ai_usage_logs(user_id);
		CREATE INDEX IF NOT EXISTS idx_usage_logs_timestamp ON ai_usage_logs(timestamp);

		ALTER TABLE ai_usage_logs ENABLE ROW LEVEL SECURITY;
		DO $$
		BEGIN
			IF NOT EXISTS (
				SELECT 1 FROM pg_policies
				WHERE tablename = 'ai_usage_logs' AND policyname = 'tenant_isolation'
			) THEN
				CREATE POLICY tenant_isolation ON ai_usage_logs
					USING (tenant_id = current_setting('app.tenant_id', true)::uuid);
			END IF;
		END $$;
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
