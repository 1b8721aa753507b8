// Package gateway talks to the hosted-checkout payment gateway: creating
// checkout sessions and verifying/decoding inbound webhook events.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dzshop/order-orchestrator/internal/config"
	"github.com/dzshop/order-orchestrator/internal/entities"
)

// Webhook event kinds dispatched by the payment adapter. Anything else is
// acknowledged and ignored.
const (
	EventSessionCompleted = "checkout.session.completed"
	EventChargeCaptured   = "charge.captured"
	EventChargeRefunded   = "charge.refunded"
)

type SessionRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Reference   string            `json:"reference"`
	SuccessURL  string            `json:"success_url"`
	CancelURL   string            `json:"cancel_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"url"`
}

// Event is a verified webhook notification from the gateway.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

type EventData struct {
	SessionID string            `json:"session_id"`
	Reference string            `json:"reference"`
	ChargeID  string            `json:"charge_id,omitempty"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Client struct {
	http          *http.Client
	baseURL       string
	apiKey        string
	webhookSecret string
}

func NewClient(cfg config.Gateway) *Client {
	return &Client{
		http:          &http.Client{Timeout: cfg.Timeout},
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateSession opens a hosted checkout session for a single line item.
// Transport and gateway-side failures come back as ErrUpstreamUnavailable;
// nothing is committed on our side, so the caller may retry.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Session{}, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("failed to build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Session{}, fmt.Errorf("%w: gateway returned %d", entities.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, fmt.Errorf("failed to decode session response: %w", err)
	}
	return session, nil
}

// ParseEvent verifies the signature header against the shared secret and
// decodes the raw webhook body. An unverifiable payload fails with
// ErrInvalidSignature and must not be processed.
func (c *Client) ParseEvent(payload []byte, sigHeader string) (Event, error) {
	if err := verifySignature(c.webhookSecret, sigHeader, payload, time.Now()); err != nil {
		return Event{}, err
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to decode gateway event: %w", err)
	}
	return ev, nil
}
