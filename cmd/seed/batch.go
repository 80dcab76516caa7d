package main

import (
	"context"
	"fmt"

	"seedgraph/internal/infrastructure/storage/sqlstore"
	"seedgraph/pkg/logger"
)

// seedBatch calls generate count times inside one transaction. Every graph
// runs under its own savepoint: a failed graph is rolled back alone and the
// others still commit. The batch fails when no graph succeeds.
func seedBatch(ctx context.Context, txm *sqlstore.TxManager, count int, generate func(ctx context.Context, i int) error) (int, error) {
	failed := 0
	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		for i := 0; i < count; i++ {
			err := txm.RunInTransactionWithOptions(ctx, sqlstore.TxOptions{UseSavepoint: true}, func(ctx context.Context) error {
				return generate(ctx, i)
			})
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return err
			}
			failed++
			logger.Warn(ctx, "graph rolled back", "index", i, "error", err)
		}
		if count > 0 && failed == count {
			return fmt.Errorf("all %d graphs failed", count)
		}
		return nil
	})
	return failed, err
}
