package entities

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentConfirmed         PaymentStatus = "confirmed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentCompleted         PaymentStatus = "completed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentAuthorized, PaymentConfirmed, PaymentFailed,
		PaymentRefunded, PaymentPartiallyRefunded, PaymentCompleted:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliveryPending        DeliveryStatus = "pending"
	DeliveryConfirmed      DeliveryStatus = "confirmed"
	DeliveryShipped        DeliveryStatus = "shipped"
	DeliveryInTransit      DeliveryStatus = "in_transit"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
	DeliveryCompleted      DeliveryStatus = "completed"
	DeliveryFailed         DeliveryStatus = "failed"
	DeliveryReturned       DeliveryStatus = "returned"
	DeliveryCancelled      DeliveryStatus = "cancelled"
)

// deliveryRank orders the forward chain pending -> ... -> completed.
// Side-exit statuses (cancelled, failed, returned) have no rank.
var deliveryRank = map[DeliveryStatus]int{
	DeliveryPending:        0,
	DeliveryConfirmed:      1,
	DeliveryShipped:        2,
	DeliveryInTransit:      3,
	DeliveryOutForDelivery: 4,
	DeliveryDelivered:      5,
	DeliveryCompleted:      6,
}

func (s DeliveryStatus) Valid() bool {
	if _, ok := deliveryRank[s]; ok {
		return true
	}
	switch s {
	case DeliveryFailed, DeliveryReturned, DeliveryCancelled:
		return true
	}
	return false
}

func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryCompleted, DeliveryCancelled, DeliveryFailed, DeliveryReturned:
		return true
	}
	return false
}

// CanAdvanceDelivery reports whether moving from one delivery status to
// another is legal. Transitions are one-directional: the forward chain only
// moves towards completed, cancellation is possible before a shipment exists,
// and failed/returned are reachable from any non-terminal status.
func CanAdvanceDelivery(from, to DeliveryStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case DeliveryCancelled:
		return from == DeliveryPending || from == DeliveryConfirmed
	case DeliveryFailed, DeliveryReturned:
		return !from.Terminal()
	}
	fromRank, ok := deliveryRank[from]
	if !ok {
		return false
	}
	toRank, ok := deliveryRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// PaidFor reports whether a payment status means "paid" for the given
// payment method. COD orders are paid only once the carrier has collected.
func PaidFor(method PaymentMethod, status PaymentStatus) bool {
	switch method {
	case PaymentMethodCard:
		return status == PaymentConfirmed || status == PaymentCompleted
	case PaymentMethodCash:
		return status == PaymentCompleted
	}
	return false
}

func DeliveredFor(status DeliveryStatus) bool {
	return status == DeliveryDelivered || status == DeliveryCompleted
}

// Actor identifies who triggered a status change.
type Actor string

const (
	ActorCustomer       Actor = "customer"
	ActorSeller         Actor = "seller"
	ActorDeliveryAgency Actor = "delivery_agency"
	ActorSystem         Actor = "system"
)
