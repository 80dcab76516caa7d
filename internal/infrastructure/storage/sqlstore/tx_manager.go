package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"seedgraph/internal/core/tx"
	"seedgraph/pkg/logger"
)

var tracer = otel.Tracer("seedgraph/tx")

var _ tx.Manager = (*TxManager)(nil)

// TxOptions configures one RunInTransactionWithOptions call. Isolation and
// ReadOnly apply only when a new transaction is started.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
	// UseSavepoint isolates a nested call: its failure rolls back to the
	// savepoint and leaves the outer transaction usable.
	UseSavepoint bool
}

// TxManager keeps the active *sql.Tx in the context so that the store, the
// sequence table and the orchestrator all write inside one persistence unit.
type TxManager struct {
	db        *sql.DB
	savepoint atomic.Uint64
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

type txKey struct{}

// RunInTransaction joins the transaction in ctx or starts a new one.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, TxOptions{}, fn)
}

func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "transaction", trace.WithAttributes(
		attribute.String("tx.isolation", opts.Isolation.String()),
		attribute.Bool("tx.read_only", opts.ReadOnly),
		attribute.Bool("tx.savepoint", opts.UseSavepoint),
	))
	defer span.End()

	existing := m.GetTx(ctx)
	switch {
	case existing == nil:
		err := m.begin(ctx, opts, fn)
		if err != nil {
			span.RecordError(err)
		}
		return err
	case opts.UseSavepoint:
		return m.withSavepoint(ctx, existing, fn)
	default:
		return fn(ctx)
	}
}

func (m *TxManager) begin(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) (err error) {
	sqlTx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, sqlTx)); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (m *TxManager) withSavepoint(ctx context.Context, sqlTx *sql.Tx, fn func(ctx context.Context) error) error {
	name := fmt.Sprintf("sp_%d", m.savepoint.Add(1))
	if _, err := sqlTx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := sqlTx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			logger.Error(ctx, "rollback to savepoint failed", "savepoint", name, "error", rbErr)
		}
		return err
	}

	if _, err := sqlTx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// GetTx returns the transaction carried by ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) *sql.Tx {
	t, _ := ctx.Value(txKey{}).(*sql.Tx)
	return t
}

// Querier is satisfied by *sql.DB and *sql.Tx, and accepted by sqlscan.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetQuerier returns the transaction in ctx, otherwise the database handle.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.db
}
