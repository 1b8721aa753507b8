package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dzshop/order-orchestrator/internal/config"
	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateSession(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/checkout/sessions", r.URL.Path)
			require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

			var req SessionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, int64(2000), req.Amount)
			assert.Equal(t, "order-1", req.Reference)

			json.NewEncoder(w).Encode(Session{ID: "cs_123", RedirectURL: "https://gateway.example/cs_123"})
		}))
		defer srv.Close()

		c := NewClient(config.Gateway{BaseURL: srv.URL, APIKey: "sk_test", Timeout: time.Second})

		session, err := c.CreateSession(context.Background(), SessionRequest{
			Amount:    2000,
			Currency:  "DZD",
			Reference: "order-1",
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_123", session.ID)
		assert.Equal(t, "https://gateway.example/cs_123", session.RedirectURL)
	})

	t.Run("gateway error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewClient(config.Gateway{BaseURL: srv.URL, APIKey: "sk_test", Timeout: time.Second})

		_, err := c.CreateSession(context.Background(), SessionRequest{Amount: 2000})
		assert.ErrorIs(t, err, entities.ErrUpstreamUnavailable)
	})
}
