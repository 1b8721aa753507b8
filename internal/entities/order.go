package entities

import (
	"errors"
	"time"
)

type ShippingAddress struct {
	Details    string
	Phone      string
	City       string
	PostalCode string
}

// CartItem is a line item with the price snapshotted at the moment of
// purchase. It is never re-read from the live catalog.
type CartItem struct {
	ProductID string
	Quantity  int
	Color     string
	Price     int64 // minor currency units
}

// StatusEvent is one entry of the append-only status history.
type StatusEvent struct {
	Status    string
	Timestamp time.Time
	Note      string
	Actor     Actor
}

type Order struct {
	OrderID          string
	UserID           string
	CartItems        []CartItem
	ShippingAddress  ShippingAddress
	TotalOrderPrice  int64
	ShippingPrice    int64
	TaxPrice         int64
	CODAmount        int64
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	DeliveryStatus   DeliveryStatus
	IsPaid           bool
	PaidAt           time.Time
	IsDelivered      bool
	DeliveredAt      time.Time
	TrackingNumber   string
	GatewaySessionID string
	StatusHistory    []StatusEvent
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrCartNotFound        = errors.New("cart not found")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrShipmentFailed      = errors.New("shipment creation failed")
	ErrDuplicateSession    = errors.New("order already exists for this session")
)

// Cart is a read-only snapshot of the customer's cart at checkout time.
type Cart struct {
	CartID                  string
	UserID                  string
	Items                   []CartItem
	TotalPrice              int64
	TotalPriceAfterDiscount int64
}

// EffectiveTotal returns the discounted total when a coupon was applied,
// the raw total otherwise.
func (c Cart) EffectiveTotal() int64 {
	if c.TotalPriceAfterDiscount > 0 {
		return c.TotalPriceAfterDiscount
	}
	return c.TotalPrice
}

// OrderUpdate describes one conditional order mutation. The Expect slices
// are compare-and-set guards: the write applies only if the order's current
// statuses are still in the expected sets, otherwise it fails with
// ErrInvalidTransition. Events are appended to the status history in the
// same persisted write.
type OrderUpdate struct {
	DeliveryStatus *DeliveryStatus
	ExpectDelivery []DeliveryStatus
	PaymentStatus  *PaymentStatus
	ExpectPayment  []PaymentStatus

	IsPaid      *bool
	PaidAt      *time.Time
	IsDelivered *bool
	DeliveredAt *time.Time

	TrackingNumber   *string
	GatewaySessionID *string

	Events []StatusEvent
}
