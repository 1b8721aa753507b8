package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dzshop/order-orchestrator/internal/carrier"
	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/pkg/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// OrderService is the orchestrator surface the HTTP layer exposes.
type OrderService interface {
	CreateCashOrder(ctx context.Context, cartID string, addr entities.ShippingAddress) (entities.Order, error)
	CreateCardCheckout(ctx context.Context, cartID string, addr entities.ShippingAddress) (entities.Order, gateway.Session, error)
	ConfirmOrder(ctx context.Context, orderID string, actor entities.Actor) (entities.Order, error)
	ConfirmCardPayment(ctx context.Context, orderID string, actor entities.Actor) (entities.Order, error)
	ShipOrder(ctx context.Context, orderID string) (entities.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string, actor entities.Actor) (entities.Order, error)
	GetTracking(ctx context.Context, orderID string) (entities.Order, *carrier.TrackingInfo, error)
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	GetOrderBySession(ctx context.Context, sessionID string) (entities.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]entities.Order, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      OrderService
}

func NewHTTPHandler(logger *slog.Logger, svc OrderService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/checkout-session/{cart_id}", h.CreateCardCheckout)
		r.Post("/{cart_id}", h.CreateCashOrder)
		r.Get("/session/{session_id}", h.GetOrderBySession)
		r.Get("/user/{user_id}", h.ListOrdersForUser)
		r.Get("/{order_id}", h.GetOrderByID)
		r.Put("/{order_id}/confirm", h.ConfirmOrder)
		r.Put("/{order_id}/confirm-card", h.ConfirmCardPayment)
		r.Post("/{order_id}/ship", h.ShipOrder)
		r.Put("/{order_id}/cancel", h.CancelOrder)
		r.Get("/{order_id}/tracking", h.GetTracking)
	})
}

func (h *HTTPHandler) CreateCashOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID := chi.URLParam(r, "cart_id")

	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.CreateCashOrder(ctx, cartID, AddressJSONToEntity(req.ShippingAddress))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create cash order", slog.String("cart_id", cartID))
		return
	}

	ordersCreated.WithLabelValues(string(entities.PaymentMethodCash)).Inc()
	utils.WriteJSON(w, OrderResponse{Status: "success", Data: OrderEntityToJSON(order)}, http.StatusCreated)
}

func (h *HTTPHandler) CreateCardCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cartID := chi.URLParam(r, "cart_id")

	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, session, err := h.svc.CreateCardCheckout(ctx, cartID, AddressJSONToEntity(req.ShippingAddress))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create checkout session", slog.String("cart_id", cartID))
		return
	}

	ordersCreated.WithLabelValues(string(entities.PaymentMethodCard)).Inc()
	utils.WriteJSON(w, CheckoutResponse{
		Status:      "success",
		Data:        OrderEntityToJSON(order),
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	}, http.StatusCreated)
}

func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	order, err := h.svc.GetOrderByID(ctx, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get order", slog.String("order_id", orderID))
		return
	}

	utils.WriteJSON(w, OrderResponse{Status: "success", Data: OrderEntityToJSON(order)}, http.StatusOK)
}

func (h *HTTPHandler) GetOrderBySession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "session_id")

	order, err := h.svc.GetOrderBySession(ctx, sessionID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get order by session", slog.String("session_id", sessionID))
		return
	}

	utils.WriteJSON(w, OrderResponse{Status: "success", Data: OrderEntityToJSON(order)}, http.StatusOK)
}

func (h *HTTPHandler) ListOrdersForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	orders, err := h.svc.ListOrdersForUser(ctx, userID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list orders", slog.String("user_id", userID))
		return
	}

	utils.WriteJSON(w, OrdersResponse{
		Status: "success",
		Result: len(orders),
		Data:   OrdersEntityToJSON(orders),
	}, http.StatusOK)
}

func (h *HTTPHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	order, err := h.svc.ConfirmOrder(ctx, orderID, entities.ActorSeller)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to confirm order", slog.String("order_id", orderID))
		return
	}

	utils.WriteJSON(w, OrderResponse{Status: "success", Data: OrderEntityToJSON(order)}, http.StatusOK)
}

func (h *HTTPHandler) ConfirmCardPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	order, err := h.svc.ConfirmCardPayment(ctx, orderID, entities.ActorSeller)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to confirm card payment", slog.String("order_id", orderID))
		return
	}

	utils.WriteJSON(w, OrderResponse{Status: "success", Data: OrderEntityToJSON(order)}, http.StatusOK)
}

func (h *HTTPHandler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	order, err := h.svc.ShipOrder(ctx, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to ship order", slog.String("order_id", orderID))
		return
	}

	utils.WriteJSON(w, OrderResponse{Status: "success", Data: OrderEntityToJSON(order)}, http.StatusOK)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req CancelOrderRequest
	if r.ContentLength > 0 {
		if err := utils.DecodeBody(r, &req); err != nil {
			utils.WriteError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			utils.WriteValidationError(w, err)
			return
		}
	}

	actor := entities.ActorCustomer
	if req.Actor != "" {
		actor = entities.Actor(req.Actor)
	}

	order, err := h.svc.CancelOrder(ctx, orderID, req.Reason, actor)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to cancel order", slog.String("order_id", orderID))
		return
	}

	utils.WriteJSON(w, OrderResponse{Status: "success", Data: OrderEntityToJSON(order)}, http.StatusOK)
}

func (h *HTTPHandler) GetTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	order, info, err := h.svc.GetTracking(ctx, orderID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get tracking", slog.String("order_id", orderID))
		return
	}

	utils.WriteJSON(w, TrackingResponse{
		Status:   "success",
		Data:     OrderEntityToJSON(order),
		Tracking: info,
	}, http.StatusOK)
}

// writeServiceError maps service sentinel errors onto HTTP status codes and
// logs anything unexpected.
func (h *HTTPHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string, attrs ...any) {
	switch {
	case errors.Is(err, entities.ErrOrderNotFound):
		utils.WriteError(w, "order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrCartNotFound):
		utils.WriteError(w, "cart not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrEmptyCart):
		utils.WriteError(w, "cart is empty", http.StatusBadRequest)
	case errors.Is(err, entities.ErrInvalidTransition):
		utils.WriteError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, entities.ErrUpstreamUnavailable), errors.Is(err, entities.ErrShipmentFailed):
		h.logger.ErrorContext(ctx, msg, append([]any{slog.Any("error", err)}, attrs...)...)
		utils.WriteError(w, "upstream service unavailable", http.StatusBadGateway)
	default:
		h.logger.ErrorContext(ctx, msg, append([]any{slog.Any("error", err)}, attrs...)...)
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
