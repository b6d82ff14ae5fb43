package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/govconone/backend/models"
	"github.com/govconone/backend/repositories"
	"go.uber.org/zap"
)

// UsageRepository implements repositories.UsageRepository. Usage records are
// append-only; there is no update or delete path.
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a usage record
func (r *UsageRepository) Insert(ctx context.Context, log *models.UsageLog) error {
	query := `
		INSERT INTO ai_usage_logs (id, tenant_id, user_id, endpoint, method, tier,
			model_used, tokens_used, cost_estimate, duration_ms, status_code, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		log.ID,
		log.TenantID,
		log.UserID,
		log.Endpoint,
		log.Method,
		log.Tier,
		log.Model,
		log.TokensUsed,
		log.CostEstimate,
		log.DurationMs,
		log.StatusCode,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}

	return nil
}

// GetByTenantID lists usage records for a tenant, newest first
func (r *UsageRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.UsageLog, error) {
	query := `
		SELECT id, tenant_id, user_id, endpoint, method, tier, model_used,
			tokens_used, cost_estimate, duration_ms, status_code, timestamp
		FROM ai_usage_logs
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.UsageLog
	for rows.Next() {
		log := &models.UsageLog{}
		err := rows.Scan(
			&log.ID,
			&log.TenantID,
			&log.UserID,
			&log.Endpoint,
			&log.Method,
			&log.Tier,
			&log.Model,
			&log.TokensUsed,
			&log.CostEstimate,
			&log.DurationMs,
			&log.StatusCode,
			&log.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage log rows: %w", err)
	}

	return logs, nil
}

// Summarize aggregates a tenant's consumption over the [since, until) window
func (r *UsageRepository) Summarize(ctx context.Context, tenantID uuid.UUID, since, until time.Time) (*models.UsageSummary, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(tokens_used), 0),
			COALESCE(SUM(cost_estimate), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM ai_usage_logs
		WHERE tenant_id = $1 AND timestamp >= $2 AND timestamp < $3
	`

	executor := GetExecutor(ctx, r.db)
	summary := &models.UsageSummary{
		TenantID: tenantID,
		Since:    since,
		Until:    until,
	}

	err := executor.QueryRowContext(ctx, query, tenantID, since, until).Scan(
		&summary.Requests,
		&summary.TotalTokens,
		&summary.TotalCost,
		&summary.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	return summary, nil
}
