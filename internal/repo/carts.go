package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dzshop/order-orchestrator/internal/entities"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// CartsRepo reads cart snapshots at checkout time. The cart belongs to the
// catalog side of the system; this core only reads it once and deletes it
// after the order is created.
type CartsRepo struct {
	queryer
	qb sq.StatementBuilderType
}

func NewCartsRepo(db *sqlx.DB) *CartsRepo {
	return &CartsRepo{
		queryer: queryer{db: db},
		qb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *CartsRepo) GetCart(ctx context.Context, cartID string) (entities.Cart, error) {
	query, args := r.qb.Select("cart_id", "user_id", "total_price", "total_price_after_discount").
		From("carts").
		Where(sq.Eq{"cart_id": cartID}).
		MustSql()

	var cart Cart
	err := r.getContext(ctx, &cart, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Cart{}, entities.ErrCartNotFound
	}
	if err != nil {
		return entities.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}

	query, args = r.qb.Select("cart_id", "product_id", "quantity", "color", "price").
		From("cart_items").
		Where(sq.Eq{"cart_id": cartID}).
		MustSql()

	var items []CartItem
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return entities.Cart{}, fmt.Errorf("failed to get cart items: %w", err)
	}

	return CartToEntity(cart, items), nil
}

func (r *CartsRepo) DeleteCart(ctx context.Context, cartID string) error {
	query, args := r.qb.Delete("cart_items").Where(sq.Eq{"cart_id": cartID}).MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	query, args = r.qb.Delete("carts").Where(sq.Eq{"cart_id": cartID}).MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
