package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/govconone/backend/googleid"
	"github.com/govconone/backend/middleware"
	"github.com/govconone/backend/models"
	"github.com/govconone/backend/utils"
	"go.uber.org/zap"
)

// GoogleSignInRequest carries a Google-issued ID token
type GoogleSignInRequest struct {
	Token string `json:"token" validate:"required"`
}

// GoogleExchangeRequest carries an OAuth2 authorization code
type GoogleExchangeRequest struct {
	Code string `json:"code" validate:"required"`
}

// RegisterRequest represents a local registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"omitempty,max=255"`
}

// LoginRequest represents a local login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is the shape returned by every endpoint that establishes a session
type SessionResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

// AssertionVerifier verifies provider-issued identity assertions
type AssertionVerifier interface {
	VerifyAssertion(ctx context.Context, idToken string) (*models.Profile, error)
}

// CodeExchanger exchanges OAuth2 authorization codes for ID tokens
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
}

// TokenIssuer mints session tokens for resolved users
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

// IdentityService resolves credentials and federated profiles to users
type IdentityService interface {
	FindOrCreateUser(ctx context.Context, profile *models.Profile) (*models.User, error)
	RegisterLocal(ctx context.Context, email, password, name string) (*models.User, error)
	LoginLocal(ctx context.Context, email, password string) (*models.User, error)
	GetActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	identities IdentityService
	tokens     TokenIssuer
	verifier   AssertionVerifier
	exchanger  CodeExchanger
	logger     *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(
	identities IdentityService,
	tokens TokenIssuer,
	verifier AssertionVerifier,
	exchanger CodeExchanger,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		identities: identities,
		tokens:     tokens,
		verifier:   verifier,
		exchanger:  exchanger,
		logger:     logger,
	}
}

// HandleGoogleSignIn handles POST /api/v1/auth/google.
// Verifies the provider assertion, resolves or provisions the user and issues a
// session token.
func (h *AuthHandler) HandleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GoogleSignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	profile, err := h.verifier.VerifyAssertion(ctx, req.Token)
	if err != nil {
		h.writeAssertionError(w, err)
		return
	}

	h.establishSession(w, ctx, profile)
}

// HandleGoogleExchange handles POST /api/v1/auth/google/exchange.
// Exchanges an authorization code for an ID token, then proceeds as sign-in.
func (h *AuthHandler) HandleGoogleExchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req GoogleExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	idToken, err := h.exchanger.ExchangeCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, googleid.ErrExchangeFailed) {
			h.logger.Warn("authorization code exchange rejected", zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid authorization code")
			return
		}
		h.logger.Error("authorization code exchange failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Sign-in temporarily unavailable")
		return
	}

	profile, err := h.verifier.VerifyAssertion(ctx, idToken)
	if err != nil {
		h.writeAssertionError(w, err)
		return
	}

	h.establishSession(w, ctx, profile)
}

// HandleRegister handles POST /api/v1/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.identities.RegisterLocal(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeSession(w, user, http.StatusCreated)
}

// HandleLogin handles POST /api/v1/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.identities.LoginLocal(ctx, req.Email, req.Password)
	if err != nil {
		// Bad password and unknown email are indistinguishable to the client.
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeSession(w, user, http.StatusOK)
}

// HandleRefresh handles POST /api/v1/auth/refresh. Requires authentication; issues
// a fresh token for the live user record so claim drift is corrected on refresh.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := middleware.IdentityFromContext(ctx)
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if identity.Demo {
		_ = utils.WriteOK(w, SessionResponse{Token: "demo", User: demoSummary(identity)})
		return
	}

	user, err := h.identities.GetActiveUser(ctx, identity.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := h.identities.TouchLastLogin(ctx, user.ID); err != nil {
		h.logger.Warn("failed to update last login on refresh",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
	}

	h.writeSession(w, user, http.StatusOK)
}

// HandleMe handles GET /api/v1/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := middleware.IdentityFromContext(ctx)
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	if identity.Demo {
		_ = utils.WriteOK(w, demoSummary(identity))
		return
	}

	user, err := h.identities.GetActiveUser(ctx, identity.UserID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, user.Summary())
}

// HandleLogout handles POST /api/v1/auth/logout. Sessions are stateless; the
// client discards its token and expiry does the rest.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) establishSession(w http.ResponseWriter, ctx context.Context, profile *models.Profile) {
	user, err := h.identities.FindOrCreateUser(ctx, profile)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("federated sign-in",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", user.TenantID.String()))

	h.writeSession(w, user, http.StatusOK)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, user *models.User, status int) {
	signed, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("failed to issue session token",
			zap.String("user_id", user.ID.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteJSON(w, status, SessionResponse{
		Token: signed,
		User:  user.Summary(),
	})
}

// writeAssertionError translates provider verification failures. A fetch failure of
// the provider key set is the one retryable case; everything else rejects the
// credential.
func (h *AuthHandler) writeAssertionError(w http.ResponseWriter, err error) {
	if errors.Is(err, googleid.ErrJWKSFetchFailed) {
		h.logger.Error("provider key set unavailable", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Sign-in temporarily unavailable")
		return
	}
	h.logger.Warn("identity assertion rejected", zap.Error(err))
	_ = utils.WriteUnauthorized(w, "Invalid token")
}

func demoSummary(identity *middleware.Identity) models.UserSummary {
	return models.UserSummary{
		ID:         identity.UserID,
		Email:      identity.Email,
		Name:       identity.Name,
		Role:       identity.Role,
		TenantID:   identity.TenantID,
		TenantName: "Demo Tenant",
		Tier:       identity.Tier,
	}
}
