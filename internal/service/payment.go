package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/pkg/audit"
	"github.com/dzshop/order-orchestrator/pkg/trm"

	"github.com/google/uuid"
)

// PaymentService reacts to verified payment-gateway webhook events. Every
// effect is idempotent: the gateway delivers at least once and may deliver
// out of order.
type PaymentService struct {
	logger    *slog.Logger
	txManager trm.Manager
	orders    OrderRepo
	carts     CartRepo
	inventory InventoryRepo
	audit     AuditSink
}

func NewPaymentService(
	logger *slog.Logger,
	txManager trm.Manager,
	orders OrderRepo,
	carts CartRepo,
	inventory InventoryRepo,
	auditSink AuditSink,
) *PaymentService {
	return &PaymentService{
		logger:    logger.With(slog.String("service", "payment")),
		txManager: txManager,
		orders:    orders,
		carts:     carts,
		inventory: inventory,
		audit:     auditSink,
	}
}

// HandleEvent dispatches a verified gateway event. Unrecognized kinds are
// acknowledged and ignored. A returned error means a storage failure worth
// logging; it never reaches the gateway as anything but a 200.
func (s *PaymentService) HandleEvent(ctx context.Context, ev gateway.Event) error {
	switch ev.Type {
	case gateway.EventSessionCompleted:
		return s.handleSessionCompleted(ctx, ev)
	case gateway.EventChargeCaptured:
		return s.handleChargeCaptured(ctx, ev)
	case gateway.EventChargeRefunded:
		return s.handleChargeRefunded(ctx, ev)
	default:
		s.logger.Debug("ignoring gateway event", slog.String("type", ev.Type))
		return nil
	}
}

// handleSessionCompleted materializes an order for a checkout that was
// started without one. When the order already exists for the session, which
// is the usual path, the event is a no-op; duplicate deliveries must not
// create a second order or double-decrement inventory.
func (s *PaymentService) handleSessionCompleted(ctx context.Context, ev gateway.Event) error {
	if ev.Data.SessionID == "" {
		s.logger.Warn("session completed event without session id", slog.String("event_id", ev.ID))
		return nil
	}

	_, err := s.orders.GetOrderBySessionID(ctx, ev.Data.SessionID)
	if err == nil {
		s.logger.Debug("order already exists for session", slog.String("session_id", ev.Data.SessionID))
		return nil
	}
	if !errors.Is(err, entities.ErrOrderNotFound) {
		return fmt.Errorf("failed to look up order by session: %w", err)
	}

	cartID := ev.Data.Metadata["cart_id"]
	userID := ev.Data.Metadata["user_id"]
	if cartID == "" || userID == "" {
		s.logger.Warn("session completed without materialization metadata",
			slog.String("session_id", ev.Data.SessionID))
		return nil
	}

	cart, err := s.carts.GetCart(ctx, cartID)
	if errors.Is(err, entities.ErrCartNotFound) {
		s.logger.Warn("cart not found for completed session",
			slog.String("session_id", ev.Data.SessionID), slog.String("cart_id", cartID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cart for session: %w", err)
	}

	now := time.Now()
	order := entities.Order{
		OrderID:   uuid.NewString(),
		UserID:    userID,
		CartItems: cart.Items,
		ShippingAddress: entities.ShippingAddress{
			Details:    ev.Data.Metadata["shipping_details"],
			Phone:      ev.Data.Metadata["shipping_phone"],
			City:       ev.Data.Metadata["shipping_city"],
			PostalCode: ev.Data.Metadata["shipping_postal_code"],
		},
		TotalOrderPrice:  ev.Data.Amount,
		PaymentMethod:    entities.PaymentMethodCard,
		PaymentStatus:    entities.PaymentAuthorized,
		DeliveryStatus:   entities.DeliveryPending,
		GatewaySessionID: ev.Data.SessionID,
		StatusHistory: []entities.StatusEvent{{
			Status:    string(entities.DeliveryPending),
			Timestamp: now,
			Note:      "Order created. Payment authorized by gateway. Waiting for seller confirmation.",
			Actor:     entities.ActorSystem,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.CreateOrder(ctx, order)
	})
	if errors.Is(err, entities.ErrDuplicateSession) {
		// A concurrent delivery of the same event won the race.
		s.logger.Debug("order already created for session", slog.String("session_id", ev.Data.SessionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create order for session: %w", err)
	}

	adjustInventory(ctx, s.logger, s.txManager, s.inventory, order)

	if err := s.carts.DeleteCart(ctx, cartID); err != nil {
		s.logger.Error("failed to delete cart after session order",
			slog.Any("error", err), slog.String("cart_id", cartID))
	}

	s.audit.Record(ctx, audit.KindOrderCreated, order.OrderID, string(entities.ActorSystem),
		map[string]string{"session_id": ev.Data.SessionID})

	return nil
}

// handleChargeCaptured moves an authorized card payment to confirmed. The
// order is matched by the correlation reference only, never by amount.
func (s *PaymentService) handleChargeCaptured(ctx context.Context, ev gateway.Event) error {
	orderID := ev.Data.Reference
	if orderID == "" {
		s.logger.Warn("charge captured without order reference", slog.String("charge_id", ev.Data.ChargeID))
		return nil
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, entities.ErrOrderNotFound) {
		s.logger.Warn("order not found for captured charge",
			slog.String("order_id", orderID), slog.String("charge_id", ev.Data.ChargeID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load order for charge: %w", err)
	}

	if order.PaymentStatus == entities.PaymentConfirmed || order.PaymentStatus == entities.PaymentCompleted {
		return nil
	}
	if order.PaymentStatus != entities.PaymentAuthorized {
		s.logger.Warn("captured charge for order in unexpected payment status",
			slog.String("order_id", orderID), slog.String("payment_status", string(order.PaymentStatus)))
		return nil
	}

	confirmed := entities.PaymentConfirmed
	paid := true
	now := time.Now()

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, orderID, entities.OrderUpdate{
			PaymentStatus: &confirmed,
			ExpectPayment: []entities.PaymentStatus{entities.PaymentAuthorized},
			IsPaid:        &paid,
			PaidAt:        &now,
			Events: []entities.StatusEvent{{
				Status: "payment_captured",
				Note:   "Payment captured by gateway. Charge: " + ev.Data.ChargeID,
				Actor:  entities.ActorSystem,
			}},
		})
	})
	if errors.Is(err, entities.ErrInvalidTransition) {
		// A duplicate delivery lost the race; the payment is already settled.
		s.logger.Debug("stale charge captured event", slog.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply charge capture: %w", err)
	}

	s.audit.Record(ctx, audit.KindPaymentCaptured, orderID, string(entities.ActorSystem),
		map[string]string{"charge_id": ev.Data.ChargeID})

	return nil
}

func (s *PaymentService) handleChargeRefunded(ctx context.Context, ev gateway.Event) error {
	orderID := ev.Data.Reference
	if orderID == "" {
		s.logger.Warn("charge refunded without order reference", slog.String("charge_id", ev.Data.ChargeID))
		return nil
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, entities.ErrOrderNotFound) {
		s.logger.Warn("order not found for refunded charge",
			slog.String("order_id", orderID), slog.String("charge_id", ev.Data.ChargeID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load order for refund: %w", err)
	}

	if order.PaymentStatus == entities.PaymentRefunded {
		return nil
	}

	refunded := entities.PaymentRefunded
	notPaid := false

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, orderID, entities.OrderUpdate{
			PaymentStatus: &refunded,
			ExpectPayment: []entities.PaymentStatus{
				entities.PaymentAuthorized, entities.PaymentConfirmed, entities.PaymentCompleted,
			},
			IsPaid: &notPaid,
			Events: []entities.StatusEvent{{
				Status: "payment_refunded",
				Note:   "Payment refunded by gateway. Charge: " + ev.Data.ChargeID,
				Actor:  entities.ActorSystem,
			}},
		})
	})
	if errors.Is(err, entities.ErrInvalidTransition) {
		s.logger.Debug("stale charge refunded event", slog.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply charge refund: %w", err)
	}

	s.audit.Record(ctx, audit.KindPaymentRefunded, orderID, string(entities.ActorSystem),
		map[string]string{"charge_id": ev.Data.ChargeID})

	return nil
}
