package googleid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/govconone/backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exchangerConfig(tokenURL string) config.GoogleConfig {
	return config.GoogleConfig{
		ClientID:     testClientID,
		ClientSecret: "test-secret",
		RedirectURI:  "http://localhost:5173/auth/callback",
		TokenURL:     tokenURL,
		HTTPTimeout:  5 * time.Second,
	}
}

func TestExchangeCode(t *testing.T) {
	t.Run("successful exchange returns id_token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			assert.Equal(t, testClientID, r.PostForm.Get("client_id"))
			assert.Equal(t, "test-secret", r.PostForm.Get("client_secret"))
			assert.Equal(t, "the-code", r.PostForm.Get("code"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id_token":"the-id-token","access_token":"at","expires_in":3600}`))
		}))
		defer server.Close()

		e := NewExchanger(exchangerConfig(server.URL))
		idToken, err := e.ExchangeCode(context.Background(), "the-code")
		require.NoError(t, err)
		assert.Equal(t, "the-id-token", idToken)
	})

	t.Run("provider rejection returns ErrExchangeFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		}))
		defer server.Close()

		e := NewExchanger(exchangerConfig(server.URL))
		_, err := e.ExchangeCode(context.Background(), "used-code")
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})

	t.Run("response without id_token returns ErrExchangeFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token":"at"}`))
		}))
		defer server.Close()

		e := NewExchanger(exchangerConfig(server.URL))
		_, err := e.ExchangeCode(context.Background(), "the-code")
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})

	t.Run("unconfigured client ID fails fast", func(t *testing.T) {
		cfg := exchangerConfig("http://localhost:1")
		cfg.ClientID = ""
		e := NewExchanger(cfg)

		_, err := e.ExchangeCode(context.Background(), "the-code")
		assert.Error(t, err)
	})
}
