package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/govconone/backend/config"
	"github.com/govconone/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:   "test-secret-at-least-32-characters",
		Issuer:   "govconone",
		Audience: "govconone-users",
		TTL:      7 * 24 * time.Hour,
	}
}

func testUser() *models.User {
	user := models.NewUser(uuid.New(), "alice@example.com", "Alice", models.RoleAdmin)
	user.Tier = models.TierPro
	return user
}

func TestIssueAndVerify(t *testing.T) {
	svc := NewService(testConfig())
	user := testUser()

	signed, err := svc.Issue(user)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := svc.Verify(signed)
	require.NoError(t, err)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	tenantID, err := claims.Tenant()
	require.NoError(t, err)
	assert.Equal(t, user.TenantID, tenantID)

	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.Name, claims.Name)
	assert.Equal(t, string(user.Role), claims.Role)
	assert.Equal(t, string(user.Tier), claims.Tier)
	assert.Equal(t, "govconone", claims.Issuer)
	assert.Contains(t, claims.Audience, "govconone-users")
}

func TestVerifyExpiredToken(t *testing.T) {
	svc := NewService(testConfig())
	user := testUser()

	issuedAt := time.Now().Add(-8 * 24 * time.Hour)
	svc.now = func() time.Time { return issuedAt }

	signed, err := svc.Issue(user)
	require.NoError(t, err)

	// Verification at real time, 8 days later, is past the 7 day TTL.
	svc.now = time.Now
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	svc := NewService(testConfig())
	signed, err := svc.Issue(testUser())
	require.NoError(t, err)

	other := testConfig()
	other.Secret = "a-completely-different-signing-secret"
	_, err = NewService(other).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	cfg := testConfig()
	cfg.Issuer = "someone-else"
	signed, err := NewService(cfg).Issue(testUser())
	require.NoError(t, err)

	_, err = NewService(testConfig()).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	cfg := testConfig()
	cfg.Audience = "other-audience"
	signed, err := NewService(cfg).Issue(testUser())
	require.NoError(t, err)

	_, err = NewService(testConfig()).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc := NewService(testConfig())
	signed, err := svc.Issue(testUser())
	require.NoError(t, err)

	tampered := signed[:len(signed)-4] + "AAAA"
	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewService(testConfig())

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.Verify(input)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", input)
	}
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	cfg := testConfig()
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TenantID: uuid.New().String(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = NewService(cfg).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	cfg := testConfig()
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		TenantID: uuid.New().String(),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService(cfg).Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
