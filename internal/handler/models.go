package handler

import (
	"time"

	"github.com/dzshop/order-orchestrator/internal/carrier"
	"github.com/dzshop/order-orchestrator/internal/entities"
)

type ShippingAddress struct {
	Details    string `json:"details" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" validate:"required"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor,omitempty" validate:"omitempty,oneof=customer seller"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Price     int64  `json:"price"`
}

type StatusEvent struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	Actor     string    `json:"updated_by"`
}

// Order is the serialized order aggregate.
type Order struct {
	OrderID          string          `json:"order_id"`
	UserID           string          `json:"user_id"`
	CartItems        []CartItem      `json:"cart_items"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	TotalOrderPrice  int64           `json:"total_order_price"`
	ShippingPrice    int64           `json:"shipping_price"`
	TaxPrice         int64           `json:"tax_price"`
	CODAmount        int64           `json:"cod_amount,omitempty"`
	PaymentMethod    string          `json:"payment_method_type"`
	PaymentStatus    string          `json:"payment_status"`
	DeliveryStatus   string          `json:"delivery_status"`
	IsPaid           bool            `json:"is_paid"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	IsDelivered      bool            `json:"is_delivered"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	TrackingNumber   string          `json:"tracking_number,omitempty"`
	GatewaySessionID string          `json:"gateway_session_id,omitempty"`
	StatusHistory    []StatusEvent   `json:"status_history"`
	CreatedAt        time.Time       `json:"created_at"`
}

type OrderResponse struct {
	Status string `json:"status"`
	Data   Order  `json:"data"`
}

type OrdersResponse struct {
	Status string  `json:"status"`
	Result int     `json:"result"`
	Data   []Order `json:"data"`
}

type CheckoutResponse struct {
	Status      string `json:"status"`
	Data        Order  `json:"data"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type TrackingResponse struct {
	Status   string                `json:"status"`
	Data     Order                 `json:"data"`
	Tracking *carrier.TrackingInfo `json:"tracking"`
}

type deliveryWebhookRequest struct {
	Event string `json:"event"`
	Data  struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Note    string `json:"note"`
	} `json:"data"`
}

func AddressJSONToEntity(a ShippingAddress) entities.ShippingAddress {
	return entities.ShippingAddress{
		Details:    a.Details,
		Phone:      a.Phone,
		City:       a.City,
		PostalCode: a.PostalCode,
	}
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]CartItem, 0, len(o.CartItems))
	for _, it := range o.CartItems {
		items = append(items, CartItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Color:     it.Color,
			Price:     it.Price,
		})
	}

	history := make([]StatusEvent, 0, len(o.StatusHistory))
	for _, ev := range o.StatusHistory {
		history = append(history, StatusEvent{
			Status:    ev.Status,
			Timestamp: ev.Timestamp,
			Note:      ev.Note,
			Actor:     string(ev.Actor),
		})
	}

	order := Order{
		OrderID: o.OrderID,
		UserID:  o.UserID,
		ShippingAddress: ShippingAddress{
			Details:    o.ShippingAddress.Details,
			Phone:      o.ShippingAddress.Phone,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
		},
		CartItems:        items,
		TotalOrderPrice:  o.TotalOrderPrice,
		ShippingPrice:    o.ShippingPrice,
		TaxPrice:         o.TaxPrice,
		CODAmount:        o.CODAmount,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentStatus:    string(o.PaymentStatus),
		DeliveryStatus:   string(o.DeliveryStatus),
		IsPaid:           o.IsPaid,
		IsDelivered:      o.IsDelivered,
		TrackingNumber:   o.TrackingNumber,
		GatewaySessionID: o.GatewaySessionID,
		StatusHistory:    history,
		CreatedAt:        o.CreatedAt,
	}

	if !o.PaidAt.IsZero() {
		paidAt := o.PaidAt
		order.PaidAt = &paidAt
	}
	if !o.DeliveredAt.IsZero() {
		deliveredAt := o.DeliveredAt
		order.DeliveredAt = &deliveredAt
	}

	return order
}

func OrdersEntityToJSON(orders []entities.Order) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderEntityToJSON(o))
	}
	return out
}
