// Package main is the entry point for the seedgraph fixture service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seedgraph/internal/demo"
	"seedgraph/internal/fixture"
	v1 "seedgraph/internal/infrastructure/http/v1"
	"seedgraph/internal/infrastructure/storage"
	"seedgraph/pkg/logger"
	"seedgraph/pkg/numerator"
)

const version = "0.1.0"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	if err := run(ctx, cfg, log); err != nil {
		log.Errorw("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, log *logger.Logger) error {
	rc := v1.RouterConfig{
		Logger:  log,
		Schema:  demo.Schema(),
		Version: version,
		Options: []fixture.Option{
			fixture.WithConstructors(demo.Constructors()),
			fixture.WithScanMode(cfg.ScanMode),
			fixture.WithCacheSize(cfg.CacheSize),
		},
	}

	// Without a database sequences still continue across requests.
	seqs := numerator.New(numerator.NewMemoryAllocator())
	if cfg.DatabaseURL != "" {
		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		if cfg.Migrate {
			if err := db.Migrate(ctx, demo.DDL(db.Pool == nil)); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		rc.Sink, rc.TxManager = db.Store, db.TxManager
		rc.DB, rc.Stats = db, db
		seqs = numerator.New(db.Sequences)
		log.Infow("persistence enabled", "dialect", db.Dialect.String())
	} else {
		log.Info("DATABASE_URL not set, persistence disabled")
	}
	rc.Options = append(rc.Options, fixture.WithSequences(seqs, cfg.sequenceOptions()))

	router, err := v1.NewRouter(rc)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server starting", "port", cfg.Port, "scan_mode", cfg.ScanMode.String(), "version", version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
