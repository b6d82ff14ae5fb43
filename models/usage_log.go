package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageLog is an append-only fact capturing one request's resource consumption.
// Never updated or deleted by the core.
type UsageLog struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Endpoint     string    `json:"endpoint" db:"endpoint"`
	Method       string    `json:"method" db:"method"`
	Tier         Tier      `json:"tier" db:"tier"`
	Model        *string   `json:"model_used,omitempty" db:"model_used"`
	TokensUsed   *int      `json:"tokens_used,omitempty" db:"tokens_used"`
	CostEstimate *float64  `json:"cost_estimate,omitempty" db:"cost_estimate"`
	DurationMs   int64     `json:"duration_ms" db:"duration_ms"`
	StatusCode   int       `json:"status_code" db:"status_code"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the UsageLog model
func (UsageLog) TableName() string {
	return "ai_usage_logs"
}

// NewUsageLog creates a new UsageLog for one completed request
func NewUsageLog(tenantID, userID uuid.UUID, endpoint, method string, tier Tier) *UsageLog {
	return &UsageLog{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Endpoint:  endpoint,
		Method:    method,
		Tier:      tier,
		Timestamp: time.Now(),
	}
}

// WithFeature attaches feature/model consumption to the log
func (l *UsageLog) WithFeature(model string, tokens int, cost float64) *UsageLog {
	l.Model = &model
	l.TokensUsed = &tokens
	l.CostEstimate = &cost
	return l
}

// FeatureUsage is the per-request consumption annotation written by business-logic
// handlers and read by the meter after the response completes.
type FeatureUsage struct {
	Model  string
	Tokens int
	Cost   float64
}

// UsageSummary aggregates a tenant's consumption over a window
type UsageSummary struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	Requests      int64     `json:"requests"`
	TotalTokens   int64     `json:"total_tokens"`
	TotalCost     float64   `json:"total_cost"`
	AvgDurationMs float64   `json:"avg_duration_ms"`
	Since         time.Time `json:"since"`
	Until         time.Time `json:"until"`
}
