// Package tx provides transaction management abstractions.
// The persistence orchestration depends on this interface so that one generated
// graph is written as a single all-or-nothing unit regardless of the backing store.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Implementations handle BEGIN, COMMIT, ROLLBACK, and nested transaction support.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Func adapts a plain function to Manager. Useful for sinks without
// transactional storage (in-memory stores in tests).
type Func func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction implements Manager.
func (f Func) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Passthrough runs fn directly without any transaction.
var Passthrough Manager = Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
