package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dzshop/order-orchestrator/internal/carrier"
	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/internal/gateway"
	"github.com/dzshop/order-orchestrator/pkg/audit"
	"github.com/dzshop/order-orchestrator/pkg/trm"
	"github.com/dzshop/order-orchestrator/pkg/utils"

	"github.com/google/uuid"
)

// OrderRepo is the persisted order aggregate. UpdateOrder is the single
// conditional-update primitive every status transition goes through.
type OrderRepo interface {
	CreateOrder(ctx context.Context, o entities.Order) error
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (entities.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]entities.Order, error)
	UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error
}

type CartRepo interface {
	GetCart(ctx context.Context, cartID string) (entities.Cart, error)
	DeleteCart(ctx context.Context, cartID string) error
}

type InventoryRepo interface {
	MarkAdjusted(ctx context.Context, orderID string) (bool, error)
	AdjustStock(ctx context.Context, items []entities.CartItem) error
}

type CheckoutGateway interface {
	CreateSession(ctx context.Context, req gateway.SessionRequest) (gateway.Session, error)
}

// Shipments is the delivery adapter surface the orchestrator delegates to.
type Shipments interface {
	CreateShipment(ctx context.Context, orderID string) (entities.Order, error)
	TrackingInfo(ctx context.Context, trackingNumber string) (carrier.TrackingInfo, error)
}

// AuditSink records activity events. It is fire-and-forget: implementations
// must never fail an order mutation.
type AuditSink interface {
	Record(ctx context.Context, kind, orderID, actor string, metadata map[string]string)
}

type TrackingCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

// OrchestratorConfig carries the pricing and checkout redirect settings.
type OrchestratorConfig struct {
	ShippingPrice int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// Orchestrator owns every order state transition. Adapters and handlers
// never mutate orders except through it or the repo's conditional update.
type Orchestrator struct {
	logger    *slog.Logger
	txManager trm.Manager
	orders    OrderRepo
	carts     CartRepo
	inventory InventoryRepo
	gateway   CheckoutGateway
	shipments Shipments
	audit     AuditSink
	cache     TrackingCache
	cfg       OrchestratorConfig
}

func NewOrchestrator(
	logger *slog.Logger,
	txManager trm.Manager,
	orders OrderRepo,
	carts CartRepo,
	inventory InventoryRepo,
	checkout CheckoutGateway,
	shipments Shipments,
	auditSink AuditSink,
	cache TrackingCache,
	cfg OrchestratorConfig,
) *Orchestrator {
	return &Orchestrator{
		logger:    logger.With(slog.String("service", "orchestrator")),
		txManager: txManager,
		orders:    orders,
		carts:     carts,
		inventory: inventory,
		gateway:   checkout,
		shipments: shipments,
		audit:     auditSink,
		cache:     cache,
		cfg:       cfg,
	}
}

// CreateCashOrder turns a cart snapshot into a COD order. The cart is
// deleted and inventory is adjusted best-effort after the order exists.
func (s *Orchestrator) CreateCashOrder(ctx context.Context, cartID string, addr entities.ShippingAddress) (entities.Order, error) {
	cart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return entities.Order{}, err
	}
	if len(cart.Items) == 0 {
		return entities.Order{}, entities.ErrEmptyCart
	}

	total := cart.EffectiveTotal() + s.cfg.ShippingPrice
	now := time.Now()

	order := entities.Order{
		OrderID:         uuid.NewString(),
		UserID:          cart.UserID,
		CartItems:       cart.Items,
		ShippingAddress: addr,
		TotalOrderPrice: total,
		ShippingPrice:   s.cfg.ShippingPrice,
		CODAmount:       total,
		PaymentMethod:   entities.PaymentMethodCash,
		PaymentStatus:   entities.PaymentPending,
		DeliveryStatus:  entities.DeliveryPending,
		StatusHistory: []entities.StatusEvent{{
			Status:    string(entities.DeliveryPending),
			Timestamp: now,
			Note:      "Order created, waiting for seller confirmation",
			Actor:     entities.ActorCustomer,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.CreateOrder(ctx, order)
	})
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to create cash order: %w", err)
	}

	adjustInventory(ctx, s.logger, s.txManager, s.inventory, order)

	if err := s.carts.DeleteCart(ctx, cartID); err != nil {
		s.logger.Error("failed to delete cart after order creation",
			slog.Any("error", err), slog.String("cart_id", cartID))
	}

	s.audit.Record(ctx, audit.KindOrderCreated, order.OrderID, string(entities.ActorCustomer),
		map[string]string{"payment_method": string(entities.PaymentMethodCash)})

	return order, nil
}

// CreateCardCheckout persists a card order up front and opens a hosted
// checkout session for it. Inventory is decremented at session creation, not
// at capture: a small overselling window is traded for simpler
// reconciliation.
func (s *Orchestrator) CreateCardCheckout(ctx context.Context, cartID string, addr entities.ShippingAddress) (entities.Order, gateway.Session, error) {
	cart, err := s.carts.GetCart(ctx, cartID)
	if err != nil {
		return entities.Order{}, gateway.Session{}, err
	}
	if len(cart.Items) == 0 {
		return entities.Order{}, gateway.Session{}, entities.ErrEmptyCart
	}

	total := cart.EffectiveTotal() + s.cfg.ShippingPrice
	now := time.Now()

	order := entities.Order{
		OrderID:         uuid.NewString(),
		UserID:          cart.UserID,
		CartItems:       cart.Items,
		ShippingAddress: addr,
		TotalOrderPrice: total,
		ShippingPrice:   s.cfg.ShippingPrice,
		PaymentMethod:   entities.PaymentMethodCard,
		PaymentStatus:   entities.PaymentAuthorized,
		DeliveryStatus:  entities.DeliveryPending,
		StatusHistory: []entities.StatusEvent{{
			Status:    string(entities.DeliveryPending),
			Timestamp: now,
			Note:      "Order created. Payment authorized by gateway.",
			Actor:     entities.ActorSystem,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.CreateOrder(ctx, order)
	})
	if err != nil {
		return entities.Order{}, gateway.Session{}, fmt.Errorf("failed to create card order: %w", err)
	}

	adjustInventory(ctx, s.logger, s.txManager, s.inventory, order)

	if err := s.carts.DeleteCart(ctx, cartID); err != nil {
		s.logger.Error("failed to delete cart after order creation",
			slog.Any("error", err), slog.String("cart_id", cartID))
	}

	session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		Amount:      total,
		Currency:    s.cfg.Currency,
		Description: "Order " + order.OrderID,
		Reference:   order.OrderID,
		SuccessURL:  s.cfg.SuccessURL + "/" + order.OrderID,
		CancelURL:   s.cfg.CancelURL,
		Metadata: map[string]string{
			"order_id":             order.OrderID,
			"cart_id":              cartID,
			"user_id":              cart.UserID,
			"shipping_details":     addr.Details,
			"shipping_phone":       addr.Phone,
			"shipping_city":        addr.City,
			"shipping_postal_code": addr.PostalCode,
		},
	})
	if err != nil {
		// The order survives without a session; checkout can be restarted.
		s.logger.Error("failed to create checkout session",
			slog.Any("error", err), slog.String("order_id", order.OrderID))
		return entities.Order{}, gateway.Session{}, err
	}

	sessionID := session.ID
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, order.OrderID, entities.OrderUpdate{GatewaySessionID: &sessionID})
	})
	if err != nil {
		return entities.Order{}, gateway.Session{}, fmt.Errorf("failed to attach session to order: %w", err)
	}
	order.GatewaySessionID = sessionID

	s.audit.Record(ctx, audit.KindCheckoutStarted, order.OrderID, string(entities.ActorCustomer),
		map[string]string{"session_id": sessionID})

	return order, session, nil
}

// ConfirmOrder moves an order from pending to confirmed. Any other current
// state, including a repeated confirmation, fails with ErrInvalidTransition.
func (s *Orchestrator) ConfirmOrder(ctx context.Context, orderID string, actor entities.Actor) (entities.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	if order.DeliveryStatus != entities.DeliveryPending {
		return entities.Order{}, fmt.Errorf("%w: order is %s", entities.ErrInvalidTransition, order.DeliveryStatus)
	}

	confirmed := entities.DeliveryConfirmed
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, orderID, entities.OrderUpdate{
			DeliveryStatus: &confirmed,
			ExpectDelivery: []entities.DeliveryStatus{entities.DeliveryPending},
			Events: []entities.StatusEvent{{
				Status: string(entities.DeliveryConfirmed),
				Note:   "Order confirmed by seller",
				Actor:  actor,
			}},
		})
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.audit.Record(ctx, audit.KindOrderConfirmed, orderID, string(actor), nil)

	return s.orders.GetOrderByID(ctx, orderID)
}

// ConfirmCardPayment is the seller's confirmation of a card order whose
// payment is authorized: payment moves to confirmed and the order becomes
// ready to ship.
func (s *Orchestrator) ConfirmCardPayment(ctx context.Context, orderID string, actor entities.Actor) (entities.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	if order.PaymentMethod != entities.PaymentMethodCard {
		return entities.Order{}, fmt.Errorf("%w: not a card order", entities.ErrInvalidTransition)
	}
	if order.PaymentStatus != entities.PaymentAuthorized {
		return entities.Order{}, fmt.Errorf("%w: payment is %s", entities.ErrInvalidTransition, order.PaymentStatus)
	}

	paymentConfirmed := entities.PaymentConfirmed
	deliveryConfirmed := entities.DeliveryConfirmed
	paid := true
	now := time.Now()

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, orderID, entities.OrderUpdate{
			PaymentStatus:  &paymentConfirmed,
			ExpectPayment:  []entities.PaymentStatus{entities.PaymentAuthorized},
			DeliveryStatus: &deliveryConfirmed,
			ExpectDelivery: []entities.DeliveryStatus{entities.DeliveryPending, entities.DeliveryConfirmed},
			IsPaid:         &paid,
			PaidAt:         &now,
			Events: []entities.StatusEvent{{
				Status: string(entities.DeliveryConfirmed),
				Note:   "Payment confirmed. Order ready to ship.",
				Actor:  actor,
			}},
		})
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.audit.Record(ctx, audit.KindOrderConfirmed, orderID, string(actor),
		map[string]string{"payment_method": string(entities.PaymentMethodCard)})

	return s.orders.GetOrderByID(ctx, orderID)
}

// ShipOrder hands a confirmed order to the delivery adapter.
func (s *Orchestrator) ShipOrder(ctx context.Context, orderID string) (entities.Order, error) {
	order, err := s.shipments.CreateShipment(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}

	s.audit.Record(ctx, audit.KindOrderShipped, orderID, string(entities.ActorSystem),
		map[string]string{"tracking_number": order.TrackingNumber})

	return order, nil
}

// CancelOrder cancels an order before a shipment exists. An authorized card
// payment is released as a compensating action.
func (s *Orchestrator) CancelOrder(ctx context.Context, orderID, reason string, actor entities.Actor) (entities.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	if order.DeliveryStatus != entities.DeliveryPending && order.DeliveryStatus != entities.DeliveryConfirmed {
		return entities.Order{}, fmt.Errorf("%w: cannot cancel once shipped", entities.ErrInvalidTransition)
	}

	if reason == "" {
		reason = "Order cancelled by user"
	}

	cancelled := entities.DeliveryCancelled
	upd := entities.OrderUpdate{
		DeliveryStatus: &cancelled,
		ExpectDelivery: []entities.DeliveryStatus{entities.DeliveryPending, entities.DeliveryConfirmed},
	}

	if order.PaymentMethod == entities.PaymentMethodCard && order.PaymentStatus == entities.PaymentAuthorized {
		refunded := entities.PaymentRefunded
		notPaid := false
		upd.PaymentStatus = &refunded
		upd.ExpectPayment = []entities.PaymentStatus{entities.PaymentAuthorized}
		upd.IsPaid = &notPaid
		upd.Events = append(upd.Events, entities.StatusEvent{
			Status: "payment_refunded",
			Note:   "Payment authorization released due to cancellation",
			Actor:  actor,
		})
	}

	upd.Events = append(upd.Events, entities.StatusEvent{
		Status: string(entities.DeliveryCancelled),
		Note:   reason,
		Actor:  actor,
	})

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, orderID, upd)
	})
	if err != nil {
		return entities.Order{}, err
	}

	s.audit.Record(ctx, audit.KindOrderCancelled, orderID, string(actor),
		map[string]string{"reason": reason})

	return s.orders.GetOrderByID(ctx, orderID)
}

// GetTracking returns the order together with a best-effort carrier
// snapshot. A carrier failure is logged and tracking comes back nil; it is
// never a hard error for the caller.
func (s *Orchestrator) GetTracking(ctx context.Context, orderID string) (entities.Order, *carrier.TrackingInfo, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, nil, err
	}
	if order.TrackingNumber == "" {
		return order, nil, nil
	}

	if data, ok := s.cache.Get(order.TrackingNumber); ok {
		var info carrier.TrackingInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return order, &info, nil
		}
		s.cache.Delete(order.TrackingNumber)
	}

	var info carrier.TrackingInfo
	err = utils.Retry(utils.RetryConfig{MaxAttempts: 2, InitialDelay: 100 * time.Millisecond}, func() error {
		var err error
		info, err = s.shipments.TrackingInfo(ctx, order.TrackingNumber)
		return err
	})
	if err != nil {
		s.logger.Warn("failed to fetch tracking info",
			slog.Any("error", err), slog.String("tracking_number", order.TrackingNumber))
		return order, nil, nil
	}

	if data, err := json.Marshal(info); err == nil {
		s.cache.Set(order.TrackingNumber, data)
	}
	return order, &info, nil
}

func (s *Orchestrator) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	return s.orders.GetOrderByID(ctx, orderID)
}

func (s *Orchestrator) GetOrderBySession(ctx context.Context, sessionID string) (entities.Order, error) {
	return s.orders.GetOrderBySessionID(ctx, sessionID)
}

func (s *Orchestrator) ListOrdersForUser(ctx context.Context, userID string) ([]entities.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

// adjustInventory applies the stock decrement for one order exactly once.
// It is best-effort: a failure is logged and left to the reconciliation
// sweep, never failing the order itself.
func adjustInventory(ctx context.Context, logger *slog.Logger, txManager trm.Manager, inventory InventoryRepo, order entities.Order) {
	err := txManager.Do(ctx, func(ctx context.Context) error {
		claimed, err := inventory.MarkAdjusted(ctx, order.OrderID)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		return inventory.AdjustStock(ctx, order.CartItems)
	})
	if err != nil {
		logger.Error("inventory adjustment failed",
			slog.Any("error", err), slog.String("order_id", order.OrderID))
	}
}
