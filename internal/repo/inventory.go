package repo

import (
	"context"
	"fmt"

	"github.com/dzshop/order-orchestrator/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// InventoryRepo applies best-effort bulk stock adjustments when an order is
// confirmed to exist. The inventory_adjustments marker makes the adjustment
// idempotent per order: re-running it is a no-op, which also leaves a seam
// for an external reconciliation sweep.
type InventoryRepo struct {
	queryer
	qb sq.StatementBuilderType
}

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo {
	return &InventoryRepo{
		queryer: queryer{db: db},
		qb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// MarkAdjusted claims the adjustment for an order. It returns false when the
// order's inventory was already adjusted.
func (r *InventoryRepo) MarkAdjusted(ctx context.Context, orderID string) (bool, error) {
	query, args := r.qb.Insert("inventory_adjustments").
		Columns("order_id").
		Values(orderID).
		Suffix("ON CONFLICT (order_id) DO NOTHING").
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark inventory adjusted: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

// AdjustStock decrements stock and increments sold counters for each line
// item of one order.
func (r *InventoryRepo) AdjustStock(ctx context.Context, items []entities.CartItem) error {
	for _, it := range items {
		query, args := r.qb.Update("products").
			Set("quantity", sq.Expr("quantity - ?", it.Quantity)).
			Set("sold", sq.Expr("sold + ?", it.Quantity)).
			Where(sq.Eq{"product_id": it.ProductID}).
			MustSql()

		if _, err := r.execContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to adjust stock for product %s: %w", it.ProductID, err)
		}
	}
	return nil
}
