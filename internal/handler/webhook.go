package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/pkg/utils"
	"github.com/go-chi/chi/v5"
)

const maxWebhookBody = 1 << 20

// EventParser verifies a raw webhook payload and decodes it into an event.
type EventParser interface {
	ParseEvent(payload []byte, sigHeader string) (gateway.Event, error)
}

type PaymentEvents interface {
	HandleEvent(ctx context.Context, ev gateway.Event) error
}

type CarrierEvents interface {
	HandleCarrierEvent(ctx context.Context, orderID, carrierStatus, note string) error
}

// WebhookHandler terminates the two inbound webhook endpoints. Payment
// deliveries are signature-checked before anything else; carrier deliveries
// are always acknowledged so the carrier does not retry forever.
type WebhookHandler struct {
	logger     *slog.Logger
	parser     EventParser
	payments   PaymentEvents
	deliveries CarrierEvents
}

func NewWebhookHandler(logger *slog.Logger, parser EventParser, payments PaymentEvents, deliveries CarrierEvents) *WebhookHandler {
	return &WebhookHandler{
		logger:     logger.With(slog.String("handler", "webhook")),
		parser:     parser,
		payments:   payments,
		deliveries: deliveries,
	}
}

func (h *WebhookHandler) Init(r chi.Router) {
	r.Post("/webhooks/payment", h.PaymentWebhook)
	r.Post("/webhooks/delivery", h.DeliveryWebhook)
}

func (h *WebhookHandler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.WriteError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	ev, err := h.parser.ParseEvent(body, r.Header.Get(gateway.SignatureHeader))
	if errors.Is(err, entities.ErrInvalidSignature) {
		paymentWebhooksRejected.Inc()
		h.logger.WarnContext(ctx, "rejected payment webhook", slog.Any("error", err))
		utils.WriteError(w, "invalid signature", http.StatusBadRequest)
		return
	}
	if err != nil {
		utils.WriteError(w, "malformed event", http.StatusBadRequest)
		return
	}

	// Processing failures are logged but still acknowledged: the gateway
	// redelivers on non-2xx and every handler is idempotent anyway, so a 500
	// here would only amplify retries.
	outcome := "ok"
	if err := h.payments.HandleEvent(ctx, ev); err != nil {
		outcome = "error"
		h.logger.ErrorContext(ctx, "failed to process payment event",
			slog.Any("error", err), slog.String("event_id", ev.ID), slog.String("event_type", ev.Type))
	}
	paymentWebhooksTotal.WithLabelValues(ev.Type, outcome).Inc()

	utils.WriteJSON(w, map[string]bool{"received": true}, http.StatusOK)
}

func (h *WebhookHandler) DeliveryWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req deliveryWebhookRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		h.logger.WarnContext(ctx, "malformed carrier webhook", slog.Any("error", err))
		carrierWebhooksTotal.WithLabelValues("malformed").Inc()
		utils.WriteJSON(w, map[string]bool{"success": true}, http.StatusOK)
		return
	}

	if req.Event != "" && req.Event != "parcel.status.updated" {
		h.logger.DebugContext(ctx, "ignoring carrier event", slog.String("event", req.Event))
		carrierWebhooksTotal.WithLabelValues("ignored").Inc()
		utils.WriteJSON(w, map[string]bool{"success": true}, http.StatusOK)
		return
	}

	outcome := "ok"
	if err := h.deliveries.HandleCarrierEvent(ctx, req.Data.OrderID, req.Data.Status, req.Data.Note); err != nil {
		outcome = "error"
		h.logger.ErrorContext(ctx, "failed to process carrier event",
			slog.Any("error", err), slog.String("order_id", req.Data.OrderID), slog.String("status", req.Data.Status))
	}
	carrierWebhooksTotal.WithLabelValues(outcome).Inc()

	utils.WriteJSON(w, map[string]bool{"success": true}, http.StatusOK)
}
