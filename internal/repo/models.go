package repo

import (
	"database/sql"
	"time"

	"github.com/dzshop/order-orchestrator/internal/entities"
)

type Order struct {
	OrderID          string         `db:"order_id"`
	UserID           string         `db:"user_id"`
	AddressDetails   sql.NullString `db:"address_details"`
	AddressPhone     sql.NullString `db:"address_phone"`
	AddressCity      sql.NullString `db:"address_city"`
	AddressPostal    sql.NullString `db:"address_postal_code"`
	TotalOrderPrice  int64          `db:"total_order_price"`
	ShippingPrice    int64          `db:"shipping_price"`
	TaxPrice         int64          `db:"tax_price"`
	CODAmount        int64          `db:"cod_amount"`
	PaymentMethod    string         `db:"payment_method"`
	PaymentStatus    string         `db:"payment_status"`
	DeliveryStatus   string         `db:"delivery_status"`
	IsPaid           bool           `db:"is_paid"`
	PaidAt           sql.NullTime   `db:"paid_at"`
	IsDelivered      bool           `db:"is_delivered"`
	DeliveredAt      sql.NullTime   `db:"delivered_at"`
	TrackingNumber   sql.NullString `db:"tracking_number"`
	GatewaySessionID sql.NullString `db:"gateway_session_id"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

type OrderItem struct {
	OrderID   string         `db:"order_id"`
	ProductID string         `db:"product_id"`
	Quantity  int            `db:"quantity"`
	Color     sql.NullString `db:"color"`
	Price     int64          `db:"price"`
}

type StatusEvent struct {
	OrderID   string         `db:"order_id"`
	Status    string         `db:"status"`
	Note      sql.NullString `db:"note"`
	Actor     string         `db:"actor"`
	CreatedAt time.Time      `db:"created_at"`
}

type Cart struct {
	CartID                  string        `db:"cart_id"`
	UserID                  string        `db:"user_id"`
	TotalPrice              int64         `db:"total_price"`
	TotalPriceAfterDiscount sql.NullInt64 `db:"total_price_after_discount"`
}

type CartItem struct {
	CartID    string         `db:"cart_id"`
	ProductID string         `db:"product_id"`
	Quantity  int            `db:"quantity"`
	Color     sql.NullString `db:"color"`
	Price     int64          `db:"price"`
}

func OrderToEntity(o Order, items []OrderItem, history []StatusEvent) entities.Order {
	order := entities.Order{
		OrderID: o.OrderID,
		UserID:  o.UserID,
		ShippingAddress: entities.ShippingAddress{
			Details:    nullStringToString(o.AddressDetails),
			Phone:      nullStringToString(o.AddressPhone),
			City:       nullStringToString(o.AddressCity),
			PostalCode: nullStringToString(o.AddressPostal),
		},
		TotalOrderPrice:  o.TotalOrderPrice,
		ShippingPrice:    o.ShippingPrice,
		TaxPrice:         o.TaxPrice,
		CODAmount:        o.CODAmount,
		PaymentMethod:    entities.PaymentMethod(o.PaymentMethod),
		PaymentStatus:    entities.PaymentStatus(o.PaymentStatus),
		DeliveryStatus:   entities.DeliveryStatus(o.DeliveryStatus),
		IsPaid:           o.IsPaid,
		IsDelivered:      o.IsDelivered,
		TrackingNumber:   nullStringToString(o.TrackingNumber),
		GatewaySessionID: nullStringToString(o.GatewaySessionID),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}

	if o.PaidAt.Valid {
		order.PaidAt = o.PaidAt.Time
	}
	if o.DeliveredAt.Valid {
		order.DeliveredAt = o.DeliveredAt.Time
	}

	if len(items) > 0 {
		order.CartItems = make([]entities.CartItem, 0, len(items))
		for _, it := range items {
			order.CartItems = append(order.CartItems, entities.CartItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Color:     nullStringToString(it.Color),
				Price:     it.Price,
			})
		}
	}

	if len(history) > 0 {
		order.StatusHistory = make([]entities.StatusEvent, 0, len(history))
		for _, ev := range history {
			order.StatusHistory = append(order.StatusHistory, entities.StatusEvent{
				Status:    ev.Status,
				Timestamp: ev.CreatedAt,
				Note:      nullStringToString(ev.Note),
				Actor:     entities.Actor(ev.Actor),
			})
		}
	}

	return order
}

func CartToEntity(c Cart, items []CartItem) entities.Cart {
	cart := entities.Cart{
		CartID:                  c.CartID,
		UserID:                  c.UserID,
		TotalPrice:              c.TotalPrice,
		TotalPriceAfterDiscount: nullInt64ToInt64(c.TotalPriceAfterDiscount),
	}
	if len(items) > 0 {
		cart.Items = make([]entities.CartItem, 0, len(items))
		for _, it := range items {
			cart.Items = append(cart.Items, entities.CartItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Color:     nullStringToString(it.Color),
				Price:     it.Price,
			})
		}
	}
	return cart
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullInt64ToInt64(ni sql.NullInt64) int64 {
	if ni.Valid {
		return ni.Int64
	}
	return 0
}
