package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/govconone/backend/googleid"
	"github.com/govconone/backend/middleware"
	"github.com/govconone/backend/models"
	"github.com/govconone/backend/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockIdentityService is a mock implementation of IdentityService
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) FindOrCreateUser(ctx context.Context, profile *models.Profile) (*models.User, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockIdentityService) RegisterLocal(ctx context.Context, email, password, name string) (*models.User, error) {
	args := m.Called(ctx, email, password, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockIdentityService) LoginLocal(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockIdentityService) GetActiveUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockIdentityService) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockVerifier is a mock implementation of AssertionVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyAssertion(ctx context.Context, idToken string) (*models.Profile, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

// MockExchanger is a mock implementation of CodeExchanger
type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) ExchangeCode(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

// stubIssuer mints a fixed token string
type stubIssuer struct {
	token string
	err   error
}

func (s *stubIssuer) Issue(user *models.User) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func resolvedUser() *models.User {
	user := models.NewUser(uuid.New(), "alice@example.com", "Alice", models.RoleAdmin)
	user.Tier = models.TierPro
	user.TenantName = "Alice Inc"
	return user
}

func newTestAuthHandler(identities IdentityService, verifier AssertionVerifier, exchanger CodeExchanger) *AuthHandler {
	return NewAuthHandler(identities, &stubIssuer{token: "session-token"}, verifier, exchanger, zap.NewNop())
}

func decodeSession(t *testing.T, w *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleGoogleSignIn(t *testing.T) {
	t.Run("valid assertion establishes session", func(t *testing.T) {
		identities := new(MockIdentityService)
		verifier := new(MockVerifier)
		h := newTestAuthHandler(identities, verifier, new(MockExchanger))

		user := resolvedUser()
		profile := &models.Profile{Subject: "sub", Email: user.Email, Name: user.Name}
		verifier.On("VerifyAssertion", mock.Anything, "google-id-token").Return(profile, nil)
		identities.On("FindOrCreateUser", mock.Anything, profile).Return(user, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google",
			strings.NewReader(`{"token":"google-id-token"}`))
		w := httptest.NewRecorder()
		h.HandleGoogleSignIn(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeSession(t, w)
		assert.Equal(t, "session-token", resp.Token)
		assert.Equal(t, user.ID, resp.User.ID)
		assert.Equal(t, "Alice Inc", resp.User.TenantName)
		assert.Equal(t, models.TierPro, resp.User.Tier)
	})

	t.Run("rejected assertion returns 401", func(t *testing.T) {
		identities := new(MockIdentityService)
		verifier := new(MockVerifier)
		h := newTestAuthHandler(identities, verifier, new(MockExchanger))

		verifier.On("VerifyAssertion", mock.Anything, "bad-token").
			Return(nil, googleid.ErrInvalidAssertion)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google",
			strings.NewReader(`{"token":"bad-token"}`))
		w := httptest.NewRecorder()
		h.HandleGoogleSignIn(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid token")
		identities.AssertNotCalled(t, "FindOrCreateUser")
	})

	t.Run("provider key set unavailable returns 500", func(t *testing.T) {
		verifier := new(MockVerifier)
		h := newTestAuthHandler(new(MockIdentityService), verifier, new(MockExchanger))

		verifier.On("VerifyAssertion", mock.Anything, "any-token").
			Return(nil, googleid.ErrJWKSFetchFailed)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google",
			strings.NewReader(`{"token":"any-token"}`))
		w := httptest.NewRecorder()
		h.HandleGoogleSignIn(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("missing token field returns 400", func(t *testing.T) {
		h := newTestAuthHandler(new(MockIdentityService), new(MockVerifier), new(MockExchanger))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		h.HandleGoogleSignIn(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		h := newTestAuthHandler(new(MockIdentityService), new(MockVerifier), new(MockExchanger))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		h.HandleGoogleSignIn(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("resolution failure returns 500", func(t *testing.T) {
		identities := new(MockIdentityService)
		verifier := new(MockVerifier)
		h := newTestAuthHandler(identities, verifier, new(MockExchanger))

		profile := &models.Profile{Subject: "sub", Email: "alice@example.com"}
		verifier.On("VerifyAssertion", mock.Anything, "ok-token").Return(profile, nil)
		identities.On("FindOrCreateUser", mock.Anything, profile).
			Return(nil, services.WrapUpstream("store down", errors.New("connection refused")))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google",
			strings.NewReader(`{"token":"ok-token"}`))
		w := httptest.NewRecorder()
		h.HandleGoogleSignIn(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandleGoogleExchange(t *testing.T) {
	t.Run("code exchange feeds the sign-in flow", func(t *testing.T) {
		identities := new(MockIdentityService)
		verifier := new(MockVerifier)
		exchanger := new(MockExchanger)
		h := newTestAuthHandler(identities, verifier, exchanger)

		user := resolvedUser()
		profile := &models.Profile{Subject: "sub", Email: user.Email}
		exchanger.On("ExchangeCode", mock.Anything, "auth-code").Return("exchanged-id-token", nil)
		verifier.On("VerifyAssertion", mock.Anything, "exchanged-id-token").Return(profile, nil)
		identities.On("FindOrCreateUser", mock.Anything, profile).Return(user, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/exchange",
			strings.NewReader(`{"code":"auth-code"}`))
		w := httptest.NewRecorder()
		h.HandleGoogleExchange(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "session-token", decodeSession(t, w).Token)
	})

	t.Run("rejected code returns 401", func(t *testing.T) {
		exchanger := new(MockExchanger)
		h := newTestAuthHandler(new(MockIdentityService), new(MockVerifier), exchanger)

		exchanger.On("ExchangeCode", mock.Anything, "used-code").
			Return("", googleid.ErrExchangeFailed)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/google/exchange",
			strings.NewReader(`{"code":"used-code"}`))
		w := httptest.NewRecorder()
		h.HandleGoogleExchange(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleRegister(t *testing.T) {
	t.Run("registration returns 201 with session", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		user := resolvedUser()
		identities.On("RegisterLocal", mock.Anything, "alice@example.com", "hunter2hunter2", "Alice").
			Return(user, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
			strings.NewReader(`{"email":"alice@example.com","password":"hunter2hunter2","name":"Alice"}`))
		w := httptest.NewRecorder()
		h.HandleRegister(w, req)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "session-token", decodeSession(t, w).Token)
	})

	t.Run("duplicate email returns 409", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		identities.On("RegisterLocal", mock.Anything, "alice@example.com", "hunter2hunter2", "").
			Return(nil, services.ErrDuplicateEmail)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
			strings.NewReader(`{"email":"alice@example.com","password":"hunter2hunter2"}`))
		w := httptest.NewRecorder()
		h.HandleRegister(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("short password returns 400", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
			strings.NewReader(`{"email":"alice@example.com","password":"short"}`))
		w := httptest.NewRecorder()
		h.HandleRegister(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		identities.AssertNotCalled(t, "RegisterLocal")
	})

	t.Run("invalid email returns 400", func(t *testing.T) {
		h := newTestAuthHandler(new(MockIdentityService), new(MockVerifier), new(MockExchanger))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
			strings.NewReader(`{"email":"not-an-email","password":"hunter2hunter2"}`))
		w := httptest.NewRecorder()
		h.HandleRegister(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleLogin(t *testing.T) {
	t.Run("valid credentials return session", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		user := resolvedUser()
		identities.On("LoginLocal", mock.Anything, "alice@example.com", "hunter2hunter2").
			Return(user, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"alice@example.com","password":"hunter2hunter2"}`))
		w := httptest.NewRecorder()
		h.HandleLogin(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeSession(t, w)
		assert.Equal(t, "session-token", resp.Token)
		assert.Equal(t, user.Email, resp.User.Email)
	})

	t.Run("bad credentials return 401", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		identities.On("LoginLocal", mock.Anything, "alice@example.com", "wrong").
			Return(nil, services.ErrInvalidCredentials)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
		w := httptest.NewRecorder()
		h.HandleLogin(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("inactive account returns 401", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		identities.On("LoginLocal", mock.Anything, "alice@example.com", "hunter2hunter2").
			Return(nil, services.ErrInactiveAccount)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
			strings.NewReader(`{"email":"alice@example.com","password":"hunter2hunter2"}`))
		w := httptest.NewRecorder()
		h.HandleLogin(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleMe(t *testing.T) {
	t.Run("returns the live user summary", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		user := resolvedUser()
		identities.On("GetActiveUser", mock.Anything, user.ID).Return(user, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), &middleware.Identity{
			UserID:   user.ID,
			TenantID: user.TenantID,
		}))
		w := httptest.NewRecorder()
		h.HandleMe(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var summary models.UserSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
		assert.Equal(t, user.ID, summary.ID)
		assert.Equal(t, user.Email, summary.Email)
	})

	t.Run("demo identity is served without a lookup", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), &middleware.Identity{
			UserID:   uuid.New(),
			TenantID: uuid.New(),
			Email:    "demo@govconone.com",
			Name:     "Demo User",
			Role:     models.RoleAdmin,
			Tier:     models.TierPro,
			Demo:     true,
		}))
		w := httptest.NewRecorder()
		h.HandleMe(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "demo@govconone.com")
		identities.AssertNotCalled(t, "GetActiveUser")
	})

	t.Run("missing identity returns 401", func(t *testing.T) {
		h := newTestAuthHandler(new(MockIdentityService), new(MockVerifier), new(MockExchanger))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		w := httptest.NewRecorder()
		h.HandleMe(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleRefresh(t *testing.T) {
	t.Run("refresh issues a fresh token from the live record", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		user := resolvedUser()
		identities.On("GetActiveUser", mock.Anything, user.ID).Return(user, nil)
		identities.On("TouchLastLogin", mock.Anything, user.ID).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), &middleware.Identity{
			UserID:   user.ID,
			TenantID: user.TenantID,
		}))
		w := httptest.NewRecorder()
		h.HandleRefresh(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "session-token", decodeSession(t, w).Token)
	})

	t.Run("deactivated account cannot refresh", func(t *testing.T) {
		identities := new(MockIdentityService)
		h := newTestAuthHandler(identities, new(MockVerifier), new(MockExchanger))

		id := uuid.New()
		identities.On("GetActiveUser", mock.Anything, id).Return(nil, services.ErrInactiveAccount)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), &middleware.Identity{UserID: id}))
		w := httptest.NewRecorder()
		h.HandleRefresh(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleLogout(t *testing.T) {
	h := newTestAuthHandler(new(MockIdentityService), new(MockVerifier), new(MockExchanger))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	w := httptest.NewRecorder()
	h.HandleLogout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
