package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/govconone/backend/config"
	"github.com/govconone/backend/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// identityKey is the context key for the authenticated identity
	identityKey contextKey = "identity"

	// featureUsageKey is the context key for the feature-usage holder
	featureUsageKey contextKey = "feature_usage"
)

// Identity is the authenticated, tenant-scoped identity carried through one request
type Identity struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Email    string
	Name     string
	Role     models.UserRole
	Tier     models.Tier
	Demo     bool
}

// DemoIdentity returns the fixed synthetic identity used by the demo bypass
func DemoIdentity(cfg config.AuthConfig) *Identity {
	return &Identity{
		UserID:   cfg.DemoUserID,
		TenantID: cfg.DemoTenantID,
		Email:    "demo@govconone.com",
		Name:     "Demo User",
		Role:     models.RoleAdmin,
		Tier:     models.TierPro,
		Demo:     true,
	}
}

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated identity from the context
func IdentityFromContext(ctx context.Context) *Identity {
	if val := ctx.Value(identityKey); val != nil {
		if identity, ok := val.(*Identity); ok {
			return identity
		}
	}
	return nil
}

// withFeatureUsage installs a mutable feature-usage holder for the request.
// Handlers deeper in the stack annotate it; the meter reads it after completion.
func withFeatureUsage(ctx context.Context, holder *models.FeatureUsage) context.Context {
	return context.WithValue(ctx, featureUsageKey, holder)
}

// featureUsageFromContext retrieves the feature-usage holder from the context
func featureUsageFromContext(ctx context.Context) *models.FeatureUsage {
	if val := ctx.Value(featureUsageKey); val != nil {
		if holder, ok := val.(*models.FeatureUsage); ok {
			return holder
		}
	}
	return nil
}

// SetFeatureUsage records feature/model consumption for the current request.
// No-op when the request is not being metered.
func SetFeatureUsage(ctx context.Context, model string, tokens int, cost float64) {
	if holder := featureUsageFromContext(ctx); holder != nil {
		holder.Model = model
		holder.Tokens = tokens
		holder.Cost = cost
	}
}
