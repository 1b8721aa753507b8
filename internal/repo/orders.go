package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dzshop/order-orchestrator/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var orderColumns = []string{
	"order_id", "user_id",
	"address_details", "address_phone", "address_city", "address_postal_code",
	"total_order_price", "shipping_price", "tax_price", "cod_amount",
	"payment_method", "payment_status", "delivery_status",
	"is_paid", "paid_at", "is_delivered", "delivered_at",
	"tracking_number", "gateway_session_id",
	"created_at", "updated_at",
}

type OrdersRepo struct {
	queryer
	qb sq.StatementBuilderType
}

func NewOrdersRepo(db *sqlx.DB) *OrdersRepo {
	return &OrdersRepo{
		queryer: queryer{db: db},
		qb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// CreateOrder persists a new order aggregate: the orders row, its line items
// and the initial status history entries. Callers are expected to run it
// inside a trm transaction. A second order for the same gateway session
// fails with ErrDuplicateSession (uniqueness enforced by the store).
func (r *OrdersRepo) CreateOrder(ctx context.Context, o entities.Order) error {
	now := time.Now()

	query, args := r.qb.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.OrderID, o.UserID,
			nullString(o.ShippingAddress.Details),
			nullString(o.ShippingAddress.Phone),
			nullString(o.ShippingAddress.City),
			nullString(o.ShippingAddress.PostalCode),
			o.TotalOrderPrice, o.ShippingPrice, o.TaxPrice, o.CODAmount,
			string(o.PaymentMethod), string(o.PaymentStatus), string(o.DeliveryStatus),
			o.IsPaid, nullTime(o.PaidAt), o.IsDelivered, nullTime(o.DeliveredAt),
			nullString(o.TrackingNumber), nullString(o.GatewaySessionID),
			now, now,
		).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return entities.ErrDuplicateSession
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if len(o.CartItems) > 0 {
		q := r.qb.Insert("order_items").
			Columns("order_id", "product_id", "quantity", "color", "price")
		for _, it := range o.CartItems {
			q = q.Values(o.OrderID, it.ProductID, it.Quantity, nullString(it.Color), it.Price)
		}
		query, args = q.MustSql()
		if _, err := r.execContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert order items: %w", err)
		}
	}

	if err := r.insertHistory(ctx, o.OrderID, o.StatusHistory); err != nil {
		return err
	}
	return nil
}

func (r *OrdersRepo) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"order_id": orderID}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return r.assemble(ctx, order)
}

func (r *OrdersRepo) GetOrderBySessionID(ctx context.Context, sessionID string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"gateway_session_id": sessionID}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order by session: %w", err)
	}

	return r.assemble(ctx, order)
}

func (r *OrdersRepo) ListOrdersByUser(ctx context.Context, userID string) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		MustSql()

	var orders []Order
	if err := r.selectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	if len(orders) == 0 {
		return []entities.Order{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}

	query, args = r.qb.Select("order_id", "product_id", "quantity", "color", "price").
		From("order_items").
		Where(sq.Eq{"order_id": ids}).
		MustSql()

	var items []OrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select order items: %w", err)
	}
	itemsMap := make(map[string][]OrderItem, len(ids))
	for _, it := range items {
		itemsMap[it.OrderID] = append(itemsMap[it.OrderID], it)
	}

	query, args = r.qb.Select("order_id", "status", "note", "actor", "created_at").
		From("order_status_history").
		Where(sq.Eq{"order_id": ids}).
		OrderBy("created_at ASC, id ASC").
		MustSql()

	var history []StatusEvent
	if err := r.selectContext(ctx, &history, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select status history: %w", err)
	}
	historyMap := make(map[string][]StatusEvent, len(ids))
	for _, ev := range history {
		historyMap[ev.OrderID] = append(historyMap[ev.OrderID], ev)
	}

	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, OrderToEntity(o, itemsMap[o.OrderID], historyMap[o.OrderID]))
	}
	return result, nil
}

// UpdateOrder applies one conditional mutation. The WHERE clause pins the
// expected current statuses, so a write racing a newer state affects zero
// rows and fails with ErrInvalidTransition instead of overwriting it. The
// history entries land in the same transaction as the status change.
func (r *OrdersRepo) UpdateOrder(ctx context.Context, orderID string, upd entities.OrderUpdate) error {
	q := r.qb.Update("orders").
		Set("updated_at", time.Now()).
		Where(sq.Eq{"order_id": orderID})

	if upd.DeliveryStatus != nil {
		q = q.Set("delivery_status", string(*upd.DeliveryStatus))
	}
	if upd.PaymentStatus != nil {
		q = q.Set("payment_status", string(*upd.PaymentStatus))
	}
	if upd.IsPaid != nil {
		q = q.Set("is_paid", *upd.IsPaid)
	}
	if upd.PaidAt != nil {
		q = q.Set("paid_at", *upd.PaidAt)
	}
	if upd.IsDelivered != nil {
		q = q.Set("is_delivered", *upd.IsDelivered)
	}
	if upd.DeliveredAt != nil {
		q = q.Set("delivered_at", *upd.DeliveredAt)
	}
	if upd.TrackingNumber != nil {
		q = q.Set("tracking_number", *upd.TrackingNumber)
	}
	if upd.GatewaySessionID != nil {
		q = q.Set("gateway_session_id", *upd.GatewaySessionID)
	}

	if len(upd.ExpectDelivery) > 0 {
		q = q.Where(sq.Eq{"delivery_status": deliveryStatusStrings(upd.ExpectDelivery)})
	}
	if len(upd.ExpectPayment) > 0 {
		q = q.Where(sq.Eq{"payment_status": paymentStatusStrings(upd.ExpectPayment)})
	}

	query, args := q.MustSql()
	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		// Zero rows means either the order does not exist or the guard lost
		// the race. Tell them apart for the caller.
		query, args := r.qb.Select("1").From("orders").Where(sq.Eq{"order_id": orderID}).MustSql()
		var one int
		err := r.getContext(ctx, &one, query, args...)
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check order existence: %w", err)
		}
		return entities.ErrInvalidTransition
	}

	return r.insertHistory(ctx, orderID, upd.Events)
}

func (r *OrdersRepo) insertHistory(ctx context.Context, orderID string, events []entities.StatusEvent) error {
	if len(events) == 0 {
		return nil
	}

	q := r.qb.Insert("order_status_history").
		Columns("order_id", "status", "note", "actor", "created_at")
	for _, ev := range events {
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		q = q.Values(orderID, ev.Status, nullString(ev.Note), string(ev.Actor), ts)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}
	return nil
}

func (r *OrdersRepo) assemble(ctx context.Context, order Order) (entities.Order, error) {
	query, args := r.qb.Select("order_id", "product_id", "quantity", "color", "price").
		From("order_items").
		Where(sq.Eq{"order_id": order.OrderID}).
		MustSql()

	var items []OrderItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order items: %w", err)
	}

	query, args = r.qb.Select("order_id", "status", "note", "actor", "created_at").
		From("order_status_history").
		Where(sq.Eq{"order_id": order.OrderID}).
		OrderBy("created_at ASC, id ASC").
		MustSql()

	var history []StatusEvent
	if err := r.selectContext(ctx, &history, query, args...); err != nil {
		return entities.Order{}, fmt.Errorf("failed to get status history: %w", err)
	}

	return OrderToEntity(order, items, history), nil
}

func deliveryStatusStrings(statuses []entities.DeliveryStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func paymentStatusStrings(statuses []entities.PaymentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
