// Package token mints and verifies the self-issued session tokens that authenticate
// every request. Verification is stateless: there is no revocation store, expiry is
// the only termination mechanism.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/govconone/backend/config"
	"github.com/govconone/backend/models"
)

var (
	// ErrInvalidToken is returned when the token fails any structural or
	// cryptographic check
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the fixed-shape session token payload. Subject carries the user ID.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Name     string `json:"name"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Tier     string `json:"tier"`
}

// UserID returns the parsed subject claim
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Tenant returns the parsed tenant_id claim
func (c *Claims) Tenant() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

// Service issues and verifies session tokens with a shared HMAC secret
type Service struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewService creates a token service from configuration
func NewService(cfg config.JWTConfig) *Service {
	return &Service{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      time.Now,
	}
}

// Issue mints a signed session token for the user. Pure computation, no side effects.
func (s *Service) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email:    user.Email,
		Name:     user.Name,
		TenantID: user.TenantID.String(),
		Role:     string(user.Role),
		Tier:     string(user.Tier),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and audience and returns the claims.
// A token failing any check is rejected whole; claims are never partially trusted.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: bad subject: %v", ErrInvalidToken, err)
	}
	if _, err := claims.Tenant(); err != nil {
		return nil, fmt.Errorf("%w: bad tenant_id: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
