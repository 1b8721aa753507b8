package gateway

import (
	"testing"
	"time"

	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"charge.captured"}`)
	now := time.Now()

	t.Run("valid signature", func(t *testing.T) {
		header := Sign(secret, now, payload)
		assert.NoError(t, verifySignature(secret, header, payload, now))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := Sign("whsec_other", now, payload)
		err := verifySignature(secret, header, payload, now)
		assert.ErrorIs(t, err, entities.ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		header := Sign(secret, now, payload)
		err := verifySignature(secret, header, []byte(`{"id":"evt_2"}`), now)
		assert.ErrorIs(t, err, entities.ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := Sign(secret, now.Add(-10*time.Minute), payload)
		err := verifySignature(secret, header, payload, now)
		assert.ErrorIs(t, err, entities.ErrInvalidSignature)
	})

	t.Run("timestamp from the future", func(t *testing.T) {
		header := Sign(secret, now.Add(10*time.Minute), payload)
		err := verifySignature(secret, header, payload, now)
		assert.ErrorIs(t, err, entities.ErrInvalidSignature)
	})

	t.Run("garbage header", func(t *testing.T) {
		err := verifySignature(secret, "not-a-signature", payload, now)
		assert.ErrorIs(t, err, entities.ErrInvalidSignature)
	})

	t.Run("missing v1 part", func(t *testing.T) {
		err := verifySignature(secret, "t=12345", payload, now)
		assert.ErrorIs(t, err, entities.ErrInvalidSignature)
	})
}

func TestClient_ParseEvent(t *testing.T) {
	c := &Client{webhookSecret: "whsec_test"}
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"session_id":"cs_123","amount":2000,"metadata":{"cart_id":"cart-1"}}}`)

	t.Run("round trip", func(t *testing.T) {
		ev, err := c.ParseEvent(payload, Sign("whsec_test", time.Now(), payload))
		require.NoError(t, err)
		assert.Equal(t, "evt_1", ev.ID)
		assert.Equal(t, EventSessionCompleted, ev.Type)
		assert.Equal(t, "cs_123", ev.Data.SessionID)
		assert.Equal(t, int64(2000), ev.Data.Amount)
		assert.Equal(t, "cart-1", ev.Data.Metadata["cart_id"])
	})

	t.Run("bad signature", func(t *testing.T) {
		_, err := c.ParseEvent(payload, Sign("wrong", time.Now(), payload))
		assert.ErrorIs(t, err, entities.ErrInvalidSignature)
	})

	t.Run("valid signature over malformed json", func(t *testing.T) {
		garbage := []byte(`{not json`)
		_, err := c.ParseEvent(garbage, Sign("whsec_test", time.Now(), garbage))
		require.Error(t, err)
		assert.NotErrorIs(t, err, entities.ErrInvalidSignature)
	})
}
