// Package postgres opens the pgx pool that backs the SQL store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"seedgraph/pkg/logger"
)

type PoolConfig struct {
	DSN     string
	AppName string // reported as application_name; empty skips the SET

	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultPoolConfig sizes the pool for a seeding run: a handful of
// connections, since one persistence unit holds a single transaction.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:               dsn,
		AppName:           "seedgraph",
		MaxConns:          10,
		MinConns:          1,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

func (c PoolConfig) pgxConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pc.MaxConns, pc.MinConns = c.MaxConns, c.MinConns
	pc.MaxConnLifetime, pc.MaxConnIdleTime = c.MaxConnLifetime, c.MaxConnIdleTime
	pc.HealthCheckPeriod = c.HealthCheckPeriod
	if name := c.AppName; name != "" {
		pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SELECT set_config('application_name', $1, false)", name)
			return err
		}
	}
	return pc, nil
}

type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and pings. The pool is closed again when the ping fails.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pc, err := cfg.pgxConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// OpenDB returns a *sql.DB backed by the pool. Closing it does not close the pool.
func (p *Pool) OpenDB() *sql.DB {
	return stdlib.OpenDBFromPool(p.Pool)
}

// Stats reports connection usage keyed the way the health endpoint prints it.
func (p *Pool) Stats() map[string]any {
	s := p.Pool.Stat()
	return map[string]any{
		"total_conns":      s.TotalConns(),
		"acquired_conns":   s.AcquiredConns(),
		"idle_conns":       s.IdleConns(),
		"max_conns":        s.MaxConns(),
		"acquire_count":    s.AcquireCount(),
		"acquire_duration": s.AcquireDuration().String(),
	}
}

func (p *Pool) LogStats(ctx context.Context) {
	s := p.Pool.Stat()
	logger.Info(ctx, "database pool stats",
		"total", s.TotalConns(),
		"acquired", s.AcquiredConns(),
		"idle", s.IdleConns(),
		"max", s.MaxConns(),
	)
}
