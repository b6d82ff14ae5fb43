package middleware

import (
	"net/http"
	"time"

	"github.com/govconone/backend/models"
	"go.uber.org/zap"
)

// UsageRecorder accepts completed usage records for out-of-band persistence
type UsageRecorder interface {
	Record(log *models.UsageLog)
}

// UsageTracker meters completed requests. It is the single hook point per request
// lifecycle: applied once in the middleware chain, directly after authentication,
// it yields exactly one record per request.
type UsageTracker struct {
	recorder UsageRecorder
	logger   *zap.Logger
}

// NewUsageTracker creates a new UsageTracker
func NewUsageTracker(recorder UsageRecorder, logger *zap.Logger) *UsageTracker {
	return &UsageTracker{
		recorder: recorder,
		logger:   logger,
	}
}

// Track measures the full handler execution and hands the record to the recorder
// after the response has been written. Must run after RequireAuth.
func (t *UsageTracker) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		holder := &models.FeatureUsage{}
		ctx = withFeatureUsage(ctx, holder)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r.WithContext(ctx))

		duration := time.Since(start)

		identity := IdentityFromContext(ctx)
		if identity == nil {
			return
		}

		log := models.NewUsageLog(identity.TenantID, identity.UserID, r.URL.Path, r.Method, identity.Tier)
		log.DurationMs = duration.Milliseconds()
		log.StatusCode = recorder.status
		if holder.Model != "" || holder.Tokens > 0 {
			log.WithFeature(holder.Model, holder.Tokens, holder.Cost)
		}

		t.recorder.Record(log)
	})
}

// statusRecorder captures the response status code for the usage record
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
