// Package googleid verifies Google-issued identity assertions and exchanges
// authorization codes against Google's token endpoint.
package googleid

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/govconone/backend/config"
	"github.com/govconone/backend/models"
)

var (
	// ErrInvalidAssertion is returned when the ID token fails verification
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrAssertionExpired is returned when the ID token has expired
	ErrAssertionExpired = errors.New("identity assertion expired")

	// ErrInvalidIssuer is returned when the token issuer is not Google
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience does not match the client ID
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrJWKSFetchFailed is returned when the provider key set cannot be fetched.
	// Retryable: the assertion itself was not judged.
	ErrJWKSFetchFailed = errors.New("failed to fetch provider keys")
)

// Google issues ID tokens under either issuer form
var acceptedIssuers = map[string]bool{
	"https://accounts.google.com": true,
	"accounts.google.com":         true,
}

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// idTokenClaims is the subset of Google's ID token payload the pipeline consumes
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Validator validates Google-signed ID tokens against the provider's public keys
type Validator struct {
	clientID   string
	jwksURL    string
	httpClient *http.Client

	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	cacheMu      sync.RWMutex

	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex
}

// NewValidator creates a new Google ID token validator
func NewValidator(cfg config.GoogleConfig) *Validator {
	ttl := cfg.JWKSCacheTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Validator{
		clientID:     cfg.ClientID,
		jwksURL:      cfg.JWKSURL,
		jwksCacheTTL: ttl,
		httpClient:   &http.Client{Timeout: timeout},
		keyCache:     make(map[string]*rsa.PublicKey),
	}
}

// VerifyAssertion validates an ID token and returns the normalized identity profile
func (v *Validator) VerifyAssertion(ctx context.Context, idToken string) (*models.Profile, error) {
	parsed, err := jwt.ParseWithClaims(idToken, &idTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}

		publicKey, err := v.getPublicKey(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("failed to get public key: %w", err)
		}
		return publicKey, nil
	})

	if err != nil {
		if errors.Is(err, ErrJWKSFetchFailed) {
			return nil, err
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAssertionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	claims, ok := parsed.Claims.(*idTokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidAssertion
	}

	if !acceptedIssuers[claims.Issuer] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIssuer, claims.Issuer)
	}
	if !containsAudience(claims.Audience, v.clientID) {
		return nil, ErrInvalidAudience
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidAssertion)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidAssertion)
	}

	return &models.Profile{
		Subject:       claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}

// FetchJWKS fetches the provider key set, serving from cache within the TTL
func (v *Validator) FetchJWKS(ctx context.Context) (*JWKS, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && time.Now().Before(v.jwksCacheExp) {
		defer v.cacheMu.RUnlock()
		return v.jwksCache, nil
	}
	v.cacheMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	v.cacheMu.Lock()
	v.jwksCache = &jwks
	v.jwksCacheExp = time.Now().Add(v.jwksCacheTTL)
	v.cacheMu.Unlock()

	return &jwks, nil
}

// getPublicKey retrieves the RSA public key for a given kid
func (v *Validator) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.keyCacheMu.RLock()
	if key, exists := v.keyCache[kid]; exists {
		v.keyCacheMu.RUnlock()
		return key, nil
	}
	v.keyCacheMu.RUnlock()

	jwks, err := v.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	var jwk *JWK
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			jwk = &jwks.Keys[i]
			break
		}
	}
	if jwk == nil {
		return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
	}

	publicKey, err := jwkToRSAPublicKey(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to convert JWK to RSA public key: %w", err)
	}

	v.keyCacheMu.Lock()
	v.keyCache[kid] = publicKey
	v.keyCacheMu.Unlock()

	return publicKey, nil
}

// jwkToRSAPublicKey converts a JWK to an RSA public key
func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}

func containsAudience(audiences jwt.ClaimStrings, clientID string) bool {
	for _, aud := range audiences {
		if aud == clientID {
			return true
		}
	}
	return false
}

// InvalidateCache drops cached keys, forcing a refetch on next use
func (v *Validator) InvalidateCache() {
	v.cacheMu.Lock()
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}
	v.cacheMu.Unlock()

	v.keyCacheMu.Lock()
	v.keyCache = make(map[string]*rsa.PublicKey)
	v.keyCacheMu.Unlock()
}
