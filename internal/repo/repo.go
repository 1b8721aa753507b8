// Package repo is the Postgres persistence layer. Repositories are
// transaction-aware: when the context carries a trm transaction, statements
// run inside it, otherwise they go straight to the pool.
package repo

import (
	"context"
	"database/sql"

	"github.com/dzshop/order-orchestrator/pkg/trm"

	"github.com/jmoiron/sqlx"
)

type queryer struct {
	db *sqlx.DB
}

func (r queryer) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r queryer) getContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}

func (r queryer) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	if tx := trm.ExtractTx(ctx); tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}
