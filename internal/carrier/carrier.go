// Package carrier talks to the third-party delivery agency: creating parcels
// for confirmed orders and querying live tracking state. It also owns the
// translation of the carrier's status vocabulary into internal delivery
// statuses.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dzshop/order-orchestrator/internal/config"
	"github.com/dzshop/order-orchestrator/internal/entities"
)

// statusMap is the fixed carrier-vocabulary lookup. Unknown carrier statuses
// deliberately map to nothing: the order is left unchanged.
var statusMap = map[string]entities.DeliveryStatus{
	"pending_pickup":   entities.DeliveryConfirmed,
	"collected":        entities.DeliveryShipped,
	"in_transit":       entities.DeliveryInTransit,
	"out_for_delivery": entities.DeliveryOutForDelivery,
	"delivered":        entities.DeliveryDelivered,
	"completed":        entities.DeliveryCompleted,
	"failed_delivery":  entities.DeliveryFailed,
	"returned":         entities.DeliveryReturned,
	"cancelled":        entities.DeliveryCancelled,
}

// MapStatus translates a carrier status string into the internal delivery
// status. The second return is false for vocabulary we do not recognize.
func MapStatus(carrierStatus string) (entities.DeliveryStatus, bool) {
	s, ok := statusMap[carrierStatus]
	return s, ok
}

type ParcelItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type ParcelRequest struct {
	OrderID         string       `json:"order_id"`
	CustomerName    string       `json:"customer_name"`
	CustomerPhone   string       `json:"customer_phone"`
	CustomerAddress string       `json:"customer_address"`
	City            string       `json:"city"`
	Items           []ParcelItem `json:"product_list"`
	Price           int64        `json:"price"`
	WebhookURL      string       `json:"webhook_url"`
}

type TrackingInfo struct {
	TrackingNumber string          `json:"tracking_number"`
	Status         string          `json:"status"`
	Note           string          `json:"note,omitempty"`
	History        []TrackingEvent `json:"history,omitempty"`
}

type TrackingEvent struct {
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Client struct {
	http       *http.Client
	baseURL    string
	webhookURL string
}

func NewClient(cfg config.Carrier) *Client {
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		webhookURL: cfg.WebhookURL,
	}
}

type createParcelResponse struct {
	Success bool `json:"success"`
	Data    struct {
		TrackingNumber string `json:"tracking_number"`
	} `json:"data"`
}

// CreateParcel registers a shipment with the carrier and returns the
// assigned tracking number. Failures surface as ErrUpstreamUnavailable with
// no partial state on our side.
func (c *Client) CreateParcel(ctx context.Context, req ParcelRequest) (string, error) {
	req.WebhookURL = c.webhookURL

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal parcel request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parcels", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build parcel request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: carrier returned %d", entities.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var parcel createParcelResponse
	if err := json.NewDecoder(resp.Body).Decode(&parcel); err != nil {
		return "", fmt.Errorf("failed to decode parcel response: %w", err)
	}
	if !parcel.Success || parcel.Data.TrackingNumber == "" {
		return "", fmt.Errorf("%w: carrier rejected parcel", entities.ErrUpstreamUnavailable)
	}
	return parcel.Data.TrackingNumber, nil
}

type trackingResponse struct {
	Success bool         `json:"success"`
	Data    TrackingInfo `json:"data"`
}

// Parcel fetches live tracking state for a shipment.
func (c *Client) Parcel(ctx context.Context, trackingNumber string) (TrackingInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/parcels/"+trackingNumber, nil)
	if err != nil {
		return TrackingInfo{}, fmt.Errorf("failed to build tracking request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return TrackingInfo{}, fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TrackingInfo{}, fmt.Errorf("%w: carrier returned %d", entities.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var tracking trackingResponse
	if err := json.NewDecoder(resp.Body).Decode(&tracking); err != nil {
		return TrackingInfo{}, fmt.Errorf("failed to decode tracking response: %w", err)
	}
	if !tracking.Success {
		return TrackingInfo{}, fmt.Errorf("%w: carrier rejected tracking query", entities.ErrUpstreamUnavailable)
	}
	return tracking.Data, nil
}
