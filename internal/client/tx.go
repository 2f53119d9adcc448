package client

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/database"
	"eventmarket/internal/events"
	"eventmarket/internal/metrics"
)

// TxOptions bound an interactive transaction. MaxWait limits the wait for a
// connection; Timeout limits the body.
type TxOptions struct {
	MaxWait time.Duration
	Timeout time.Duration
}

type TxOption func(*TxOptions)

func WithMaxWait(d time.Duration) TxOption {
	return func(o *TxOptions) { o.MaxWait = d }
}

func WithTimeout(d time.Duration) TxOption {
	return func(o *TxOptions) { o.Timeout = d }
}

// Transaction runs fn against a client bound to one database transaction.
// Every write inside commits together or not at all. Events raised inside are
// published after commit. On a transaction-scoped client fn joins the open
// transaction.
func (c *Client) Transaction(ctx context.Context, fn func(ctx context.Context, tx *Client) error, opts ...TxOption) error {
	if c.tx != nil {
		return fn(ctx, c)
	}

	o := TxOptions{MaxWait: c.txCfg.MaxWait, Timeout: c.txCfg.Timeout}
	for _, opt := range opts {
		opt(&o)
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, o.MaxWait)
	conn, err := c.db.Conn(waitCtx)
	cancelWait()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return c.txFailed("timeout", apperrors.Timeout(err, "transaction not started within maxWait %s", o.MaxWait))
		}
		return c.txFailed("rolled_back", database.Classify(err, database.ActionRead))
	}
	defer conn.Close()

	txCtx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	// database/sql drops the connection of a tx whose context ends. With a
	// single in-memory connection that would drop the database, so the tx
	// outlives txCtx and the deadline is enforced below.
	tx, err := conn.BeginTx(context.WithoutCancel(txCtx), nil)
	if err != nil {
		return c.txFailed("rolled_back", database.Classify(err, database.ActionRead))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	scoped := c.withTx(tx)
	err = fn(txCtx, scoped)

	if errors.Is(txCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		_ = tx.Rollback()
		return c.txFailed("timeout", apperrors.Timeout(err, "transaction exceeded timeout %s", o.Timeout))
	}
	if err != nil {
		_ = tx.Rollback()
		return c.txFailed("rolled_back", err)
	}
	if err := tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return c.txFailed("timeout", apperrors.Timeout(err, "transaction closed before commit"))
		}
		return c.txFailed("rolled_back", database.Classify(err, database.ActionWrite))
	}

	metrics.IncTransaction("committed")
	scoped.pending.Flush(c.bus)
	return nil
}

func (c *Client) txFailed(outcome string, err error) error {
	metrics.IncTransaction(outcome)
	c.logger.Debug().Err(err).Str("outcome", outcome).Msg("Transaction aborted")
	return err
}

// Op is one pre-built operation of a batch.
type Op func(ctx context.Context, tx *Client) (any, error)

// Batch runs ops in order inside one transaction and returns their results in
// the same order. The first failure rolls back every op.
func (c *Client) Batch(ctx context.Context, ops []Op, opts ...TxOption) ([]any, error) {
	results := make([]any, len(ops))
	err := c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		for i, op := range ops {
			res, err := op(ctx, tx)
			if err != nil {
				return err
			}
			results[i] = res
		}
		return nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) withTx(tx *sql.Tx) *Client {
	scoped := *c
	scoped.ex = tx
	scoped.tx = tx
	scoped.pending = &events.Buffer{}
	scoped.bind()
	return &scoped
}
