package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Executor is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Service
// methods that accept an optional session take a pgx.Tx; their SQL runs
// against the pool when the tx is nil.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transaction retry policy for the accept path: bounded attempts, bounded
// backoff.
const (
	txMaxRetries      = 3
	txInitialInterval = 50 * time.Millisecond
	txMaxInterval     = 500 * time.Millisecond
)

// InTransaction runs fn inside a transaction, retrying the whole function
// with a fresh transaction on transient transaction errors. fn must thread
// the given tx through every mutation it performs.
func InTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(newTxBackoff(), txMaxRetries), ctx)
	return backoff.Retry(func() error {
		err := runTx(ctx, pool, fn)
		if err == nil {
			return nil
		}
		if IsTransientTx(err) {
			log.Warn().Err(err).Msg("retrying transaction after transient error")
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

func runTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func newTxBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = txInitialInterval
	b.MaxInterval = txMaxInterval
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries
	return b
}
