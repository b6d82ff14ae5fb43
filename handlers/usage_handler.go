package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/govconone/backend/middleware"
	"github.com/govconone/backend/repositories"
	"github.com/govconone/backend/utils"
	"go.uber.org/zap"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200

	defaultSummaryWindow = 30 * 24 * time.Hour
)

// UsageHandler serves a tenant's own usage records. Reads are always scoped to
// the caller's tenant; there is no cross-tenant query surface.
type UsageHandler struct {
	usage  repositories.UsageRepository
	logger *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usage repositories.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usage:  usage,
		logger: logger,
	}
}

// HandleListLogs handles GET /api/v1/usage/logs
func (h *UsageHandler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := middleware.IdentityFromContext(ctx)
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			_ = utils.WriteBadRequest(w, "Invalid limit", nil)
			return
		}
		if parsed > maxLogLimit {
			parsed = maxLogLimit
		}
		limit = parsed
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			_ = utils.WriteBadRequest(w, "Invalid offset", nil)
			return
		}
		offset = parsed
	}

	logs, err := h.usage.GetByTenantID(ctx, identity.TenantID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list usage logs",
			zap.String("tenant_id", identity.TenantID.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to retrieve usage logs")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"logs":   logs,
		"limit":  limit,
		"offset": offset,
	})
}

// HandleSummary handles GET /api/v1/usage/summary
func (h *UsageHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := middleware.IdentityFromContext(ctx)
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	until := time.Now().UTC()
	since := until.Add(-defaultSummaryWindow)

	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid since, expected RFC3339", nil)
			return
		}
		since = parsed
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid until, expected RFC3339", nil)
			return
		}
		until = parsed
	}
	if !since.Before(until) {
		_ = utils.WriteBadRequest(w, "since must be before until", nil)
		return
	}

	summary, err := h.usage.Summarize(ctx, identity.TenantID, since, until)
	if err != nil {
		h.logger.Error("failed to summarize usage",
			zap.String("tenant_id", identity.TenantID.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to summarize usage")
		return
	}

	_ = utils.WriteOK(w, summary)
}
