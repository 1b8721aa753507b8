package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dzshop/order-orchestrator/internal/carrier"
	"github.com/dzshop/order-orchestrator/internal/entities"
	"github.com/dzshop/order-orchestrator/pkg/audit"
	"github.com/dzshop/order-orchestrator/pkg/trm"
)

// ShipmentCarrier is the outbound carrier API surface.
type ShipmentCarrier interface {
	CreateParcel(ctx context.Context, req carrier.ParcelRequest) (string, error)
	Parcel(ctx context.Context, trackingNumber string) (carrier.TrackingInfo, error)
}

// DeliveryService is the delivery-carrier adapter: it creates shipments for
// confirmed orders and applies carrier webhook updates to the order's
// delivery axis.
type DeliveryService struct {
	logger    *slog.Logger
	txManager trm.Manager
	orders    OrderRepo
	carrier   ShipmentCarrier
	audit     AuditSink
	cache     TrackingCache
}

func NewDeliveryService(
	logger *slog.Logger,
	txManager trm.Manager,
	orders OrderRepo,
	shipmentCarrier ShipmentCarrier,
	auditSink AuditSink,
	cache TrackingCache,
) *DeliveryService {
	return &DeliveryService{
		logger:    logger.With(slog.String("service", "delivery")),
		txManager: txManager,
		orders:    orders,
		carrier:   shipmentCarrier,
		audit:     auditSink,
		cache:     cache,
	}
}

// CreateShipment submits a confirmed order to the carrier. On carrier
// failure the order stays confirmed with no partial state, and the caller
// gets ErrShipmentFailed for a manual retry.
func (s *DeliveryService) CreateShipment(ctx context.Context, orderID string) (entities.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return entities.Order{}, err
	}
	if order.DeliveryStatus != entities.DeliveryConfirmed {
		return entities.Order{}, fmt.Errorf("%w: order must be confirmed before shipping", entities.ErrInvalidTransition)
	}

	items := make([]carrier.ParcelItem, 0, len(order.CartItems))
	for _, it := range order.CartItems {
		items = append(items, carrier.ParcelItem{
			Name:     it.ProductID,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}

	trackingNumber, err := s.carrier.CreateParcel(ctx, carrier.ParcelRequest{
		OrderID:         order.OrderID,
		CustomerPhone:   order.ShippingAddress.Phone,
		CustomerAddress: order.ShippingAddress.Details,
		City:            order.ShippingAddress.City,
		Items:           items,
		Price:           order.TotalOrderPrice,
	})
	if err != nil {
		return entities.Order{}, fmt.Errorf("%w: %v", entities.ErrShipmentFailed, err)
	}

	shipped := entities.DeliveryShipped
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, orderID, entities.OrderUpdate{
			DeliveryStatus: &shipped,
			ExpectDelivery: []entities.DeliveryStatus{entities.DeliveryConfirmed},
			TrackingNumber: &trackingNumber,
			Events: []entities.StatusEvent{{
				Status: string(entities.DeliveryShipped),
				Note:   "Package handed to delivery agency. Tracking: " + trackingNumber,
				Actor:  entities.ActorSystem,
			}},
		})
	})
	if err != nil {
		return entities.Order{}, err
	}

	return s.orders.GetOrderByID(ctx, orderID)
}

// HandleCarrierEvent applies one carrier webhook update. Unknown carrier
// vocabulary and regressions leave the order unchanged; re-applying the
// current status is a no-op. Reaching delivered on a COD order completes
// its payment in the same write.
func (s *DeliveryService) HandleCarrierEvent(ctx context.Context, orderID, carrierStatus, note string) error {
	mapped, ok := carrier.MapStatus(carrierStatus)
	if !ok {
		s.logger.Warn("unknown carrier status",
			slog.String("order_id", orderID), slog.String("carrier_status", carrierStatus))
		return nil
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if mapped == order.DeliveryStatus {
		return nil
	}
	if !entities.CanAdvanceDelivery(order.DeliveryStatus, mapped) {
		s.logger.Warn("ignoring carrier update that would regress the order",
			slog.String("order_id", orderID),
			slog.String("current", string(order.DeliveryStatus)),
			slog.String("incoming", string(mapped)),
		)
		return nil
	}

	if note == "" {
		note = "Delivery status: " + carrierStatus
	}

	now := time.Now()
	upd := entities.OrderUpdate{
		DeliveryStatus: &mapped,
		ExpectDelivery: []entities.DeliveryStatus{order.DeliveryStatus},
		Events: []entities.StatusEvent{{
			Status: string(mapped),
			Note:   note,
			Actor:  entities.ActorDeliveryAgency,
		}},
	}

	delivered := true
	switch mapped {
	case entities.DeliveryDelivered:
		upd.IsDelivered = &delivered
		upd.DeliveredAt = &now
		if order.PaymentMethod == entities.PaymentMethodCash {
			// COD: the carrier collected the cash at handoff.
			completed := entities.PaymentCompleted
			paid := true
			upd.PaymentStatus = &completed
			upd.IsPaid = &paid
			upd.PaidAt = &now
		}
	case entities.DeliveryCompleted:
		completed := entities.PaymentCompleted
		paid := true
		upd.PaymentStatus = &completed
		upd.IsPaid = &paid
		upd.IsDelivered = &delivered
		if !order.IsDelivered {
			upd.DeliveredAt = &now
		}
		if !order.IsPaid {
			upd.PaidAt = &now
		}
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.orders.UpdateOrder(ctx, orderID, upd)
	})
	if errors.Is(err, entities.ErrInvalidTransition) {
		// A concurrent update moved the order first; this delivery is stale.
		s.logger.Debug("stale carrier update", slog.String("order_id", orderID))
		return nil
	}
	if err != nil {
		return err
	}

	if order.TrackingNumber != "" {
		s.cache.Delete(order.TrackingNumber)
	}

	switch mapped {
	case entities.DeliveryDelivered:
		s.audit.Record(ctx, audit.KindOrderDelivered, orderID, string(entities.ActorDeliveryAgency), nil)
	case entities.DeliveryCompleted:
		s.audit.Record(ctx, audit.KindOrderCompleted, orderID, string(entities.ActorDeliveryAgency), nil)
	default:
		s.audit.Record(ctx, audit.KindDeliveryUpdated, orderID, string(entities.ActorDeliveryAgency),
			map[string]string{"status": string(mapped)})
	}

	return nil
}

// TrackingInfo is a pass-through query to the carrier. Transient failure
// propagates as a recoverable error; the caller decides how to degrade.
func (s *DeliveryService) TrackingInfo(ctx context.Context, trackingNumber string) (carrier.TrackingInfo, error) {
	return s.carrier.Parcel(ctx, trackingNumber)
}
