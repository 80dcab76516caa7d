// Package main provides a CLI tool for seeding the database with fixture graphs.
//
// Configuration is read from the environment:
//
//	DATABASE_URL     postgres:// URL or SQLite file (default: in-memory SQLite)
//	SEED_TYPE        root type name (default: lineitem)
//	SEED_COUNT       number of graphs (default: 10)
//	SEED_SCAN_MODE   ignore-optional | include-optional
//	SEED_RANDOM_SEED fixed seed for reproducible values
//	SEED_CLEANUP     true deletes previously seeded rows instead
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	appctx "seedgraph/internal/core/context"
	"seedgraph/internal/demo"
	"seedgraph/internal/domain/materialize"
	"seedgraph/internal/domain/persist"
	"seedgraph/internal/fixture"
	"seedgraph/internal/infrastructure/storage"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/logger"
	"seedgraph/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())

	db, err := storage.Open(ctx, getEnv("DATABASE_URL", ""))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx, demo.DDL(db.Pool == nil)); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}
	log.Info("connected to database")

	name := getEnv("SEED_TYPE", "lineitem")
	root, ok := demo.Schema().Lookup(name)
	if !ok {
		log.Fatalw("unknown SEED_TYPE", "value", name, "known", demo.Schema().Names())
	}
	mode, ok := metadata.ParseScanMode(getEnv("SEED_SCAN_MODE", "ignore-optional"))
	if !ok {
		log.Fatalw("invalid SEED_SCAN_MODE", "value", os.Getenv("SEED_SCAN_MODE"))
	}

	hooks := persist.NewHookRegistry()
	hooks.OnAfterPersist(func(ctx context.Context, items []materialize.Item) ([]materialize.Item, error) {
		logger.Debug(ctx, "graph persisted", "items", len(items))
		return nil, nil
	})

	opts := []fixture.Option{
		fixture.WithConstructors(demo.Constructors()),
		fixture.WithScanMode(mode),
		fixture.WithSink(db.Store, db.TxManager),
		fixture.WithSequences(numerator.New(db.Sequences), nil),
		fixture.WithHooks(hooks),
	}
	if seed := getEnvInt("SEED_RANDOM_SEED", 0); seed > 0 {
		opts = append(opts, fixture.WithRandomSeed(uint64(seed)))
	}
	b, err := fixture.New(opts...)
	if err != nil {
		log.Fatalw("failed to configure fixtures", "error", err)
	}

	if getEnv("SEED_CLEANUP", "false") == "true" {
		n, err := b.Cleanup(ctx, root)
		if err != nil {
			log.Fatalw("cleanup failed", "error", err)
		}
		log.Infow("cleanup completed", "type", root.Name(), "deleted", n)
		return
	}

	start := time.Now()
	count := getEnvInt("SEED_COUNT", 10)
	var warnings int
	failed, err := seedBatch(ctx, db.TxManager, count, func(ctx context.Context, i int) error {
		res, err := b.Generate(ctx, root)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			log.Warnw("field skipped", "index", i, "warning", w.String())
		}
		for _, w := range res.Associations {
			log.Warnw("association not wired", "index", i, "warning", w.String())
		}
		warnings += len(res.Warnings) + len(res.Associations)
		return nil
	})
	if err != nil {
		log.Fatalw("failed to seed graphs", "type", root.Name(), "error", err)
	}

	for _, table := range demo.Tables {
		n, err := db.Store.Count(ctx, table)
		if err != nil {
			log.Warnw("failed to count rows", "table", table, "error", err)
			continue
		}
		log.Infow("table", "name", table, "rows", n)
	}
	if db.Pool != nil {
		db.Pool.LogStats(ctx)
	}

	log.Infow("seeding completed successfully",
		"type", root.Name(),
		"graphs", count-failed,
		"failed", failed,
		"warnings", warnings,
		"elapsed", time.Since(start),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
