// Package postgres is the sqlx+lib/pq backed primary store for agents,
// reports, decisions, and alerts (spec.md §3 "Ownership"). Grounded on
// pkg/storage/postgres/base_store.go's Querier/WithTx pattern, adapted from
// database/sql to sqlx's named-query helpers.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Open connects to databaseURL and verifies it with a ping.
func Open(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

type txKey struct{}

// BaseStore centralizes the querier-or-transaction resolution and
// transaction lifecycle shared by every entity-specific store.
type BaseStore struct {
	db *sqlx.DB
}

// NewBaseStore wraps db.
func NewBaseStore(db *sqlx.DB) *BaseStore {
	return &BaseStore{db: db}
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

func withTxContext(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// ExtContext returns whichever of (transaction, pooled db) is active for ctx.
func (s *BaseStore) ExtContext(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error (including a panic, which is re-raised after rollback).
func (s *BaseStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txCtx := withTxContext(ctx, tx)

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
