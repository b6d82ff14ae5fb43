package middleware

import (
	"net/http"

	"github.com/govconone/backend/models"
	"github.com/govconone/backend/utils"
	"go.uber.org/zap"
)

// RequireTier gates an endpoint behind a minimum subscription tier. Must run after
// RequireAuth. Denial is not fatal: the 403 carries both tiers so clients can offer
// an upgrade path.
func RequireTier(required models.Tier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			userTier := identity.Tier
			if userTier == "" {
				userTier = models.TierFree
			}

			if !userTier.Permits(required) {
				logger.Info("tier gate denied",
					zap.String("user_id", identity.UserID.String()),
					zap.String("required_tier", string(required)),
					zap.String("current_tier", string(userTier)))
				_ = utils.WriteUpgradeRequired(w, string(required), string(userTier))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
