// Package storage provides the shared pgx plumbing for repositories.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx used by repositories. It is satisfied by
// *pgxpool.Pool, pgx.Tx and pgxmock, so the same repository code runs
// inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

var _ Beginner = (*pgxpool.Pool)(nil)
var _ Querier = (*pgxpool.Pool)(nil)

// WithTx runs fn inside a read-committed transaction, committing on nil
// error and rolling back otherwise. Every multi-step mutation in the core
// goes through here so its guards and writes land atomically.
func WithTx(ctx context.Context, db Beginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}

// IsNoRows reports whether err is pgx's no-rows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// LockDate takes a transaction-scoped advisory lock keyed on the calendar
// day. Competing bookings for the same date serialize on it, which closes
// the check-then-insert race on slot capacity.
func LockDate(ctx context.Context, q Querier, dateKey int64) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, dateKey); err != nil {
		return fmt.Errorf("storage: lock date: %w", err)
	}
	return nil
}
