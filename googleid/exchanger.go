package googleid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/govconone/backend/config"
)

// ErrExchangeFailed is returned when the authorization-code exchange is rejected by
// the provider. Codes are single-use; callers must not retry the same code.
var ErrExchangeFailed = errors.New("authorization code exchange failed")

// TokenResponse represents the OAuth2 token endpoint response
type TokenResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Exchanger exchanges OAuth2 authorization codes for ID tokens at Google's
// token endpoint
type Exchanger struct {
	cfg        config.GoogleConfig
	httpClient *http.Client
}

// NewExchanger creates a new authorization-code exchanger
func NewExchanger(cfg config.GoogleConfig) *Exchanger {
	return &Exchanger{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// ExchangeCode exchanges an authorization code for an ID token
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (string, error) {
	if e.cfg.ClientID == "" {
		return "", fmt.Errorf("google sign-in not configured")
	}

	data := url.Values{
		"grant_type":   {"authorization_code"},
		"client_id":    {e.cfg.ClientID},
		"code":         {code},
		"redirect_uri": {e.cfg.RedirectURI},
	}
	if e.cfg.ClientSecret != "" {
		data.Set("client_secret", e.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d, body: %s", ErrExchangeFailed, resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}

	if tokenResp.IDToken == "" {
		return "", fmt.Errorf("%w: no id_token in response", ErrExchangeFailed)
	}

	return tokenResp.IDToken, nil
}
