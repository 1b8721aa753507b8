// Package mocks provides test doubles for trm.Manager.
package mocks

import (
	"context"

	"github.com/dzshop/order-orchestrator/pkg/trm"
)

// NopManager runs callbacks directly, without a database transaction.
type NopManager struct{}

func (NopManager) BeginTx(ctx context.Context) (context.Context, trm.Transaction, error) {
	return ctx, nopTx{}, nil
}

func (NopManager) Do(ctx context.Context, callback func(ctx context.Context) error) error {
	return callback(ctx)
}

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }
