// Package storage opens the database a DSN points at and assembles the SQL
// store on top of it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"seedgraph/internal/infrastructure/storage/postgres"
	"seedgraph/internal/infrastructure/storage/sqlstore"
	"seedgraph/pkg/logger"
)

// Database bundles the connection and the store built on it.
type Database struct {
	DB        *sql.DB
	Pool      *postgres.Pool // nil for SQLite
	Dialect   sqlstore.Dialect
	TxManager *sqlstore.TxManager
	Store     *sqlstore.Store
	Sequences *sqlstore.Sequences
}

// Open connects to dsn. postgres:// and postgresql:// URLs go through a pgx
// pool; anything else is a SQLite file name, optionally prefixed sqlite://.
func Open(ctx context.Context, dsn string) (*Database, error) {
	d := &Database{}
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
		if err != nil {
			return nil, err
		}
		d.Pool, d.DB, d.Dialect = pool, pool.OpenDB(), sqlstore.Postgres
	default:
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		d.DB, d.Dialect = db, sqlstore.SQLite
	}

	d.TxManager = sqlstore.NewTxManager(d.DB)
	d.Store = sqlstore.New(d.TxManager, d.Dialect)
	d.Sequences = sqlstore.NewSequences(d.Store)
	logger.Info(ctx, "database opened", "dialect", d.Dialect.String())
	return d, nil
}

func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if dsn == "" {
		dsn = "file:seedgraph?mode=memory"
	}
	if !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)"
	}
	return dsn
}

// Migrate executes stmts in one transaction.
func (d *Database) Migrate(ctx context.Context, stmts []string) error {
	return d.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := d.TxManager.GetQuerier(ctx)
		for i, stmt := range stmts {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// PingContext checks the connection.
func (d *Database) PingContext(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Stats reports connection usage.
func (d *Database) Stats() map[string]any {
	if d.Pool != nil {
		stats := d.Pool.Stats()
		stats["dialect"] = d.Dialect.String()
		return stats
	}
	s := d.DB.Stats()
	return map[string]any{
		"dialect":          d.Dialect.String(),
		"open_connections": s.OpenConnections,
		"in_use":           s.InUse,
		"idle":             s.Idle,
	}
}

// Close releases the connection and, for PostgreSQL, the pool.
func (d *Database) Close() error {
	err := d.DB.Close()
	if d.Pool != nil {
		d.Pool.Close()
	}
	return err
}
