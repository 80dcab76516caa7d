package sqlstore

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"seedgraph/pkg/numerator"
)

// SequenceTable stores one row per sequence key: (key TEXT PRIMARY KEY, value BIGINT).
const SequenceTable = "sys_sequences"

// Compile-time check that Sequences implements numerator.Allocator interface.
var _ numerator.Allocator = (*Sequences)(nil)

// Sequences allocates sequence ranges in SequenceTable so values stay unique
// across processes sharing the database.
type Sequences struct {
	store *Store
}

// NewSequences creates a table-backed allocator.
func NewSequences(store *Store) *Sequences {
	return &Sequences{store: store}
}

// Reserve atomically advances key by n and returns the last reserved value.
func (s *Sequences) Reserve(ctx context.Context, key string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %q: non-positive size %d", key, n)
	}
	query, args, err := s.store.Builder().
		Insert(SequenceTable).
		Columns("key", "value").
		Values(key, n).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = " + SequenceTable + ".value + excluded.value RETURNING value").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reserve: %w", err)
	}

	var last int64
	if err := sqlscan.Get(ctx, s.store.txm.GetQuerier(ctx), &last, query, args...); err != nil {
		return 0, fmt.Errorf("reserve %q: %w", key, err)
	}
	return last, nil
}

// Set overwrites the current value of key.
func (s *Sequences) Set(ctx context.Context, key string, value int64) error {
	query, args, err := s.store.Builder().
		Insert(SequenceTable).
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set: %w", err)
	}
	if _, err := s.store.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Current returns the last allocated value of key, or 0.
func (s *Sequences) Current(ctx context.Context, key string) (int64, error) {
	query, args, err := s.store.Builder().
		Select("COALESCE(MAX(value), 0)").
		From(SequenceTable).
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build current: %w", err)
	}
	var v int64
	if err := sqlscan.Get(ctx, s.store.txm.GetQuerier(ctx), &v, query, args...); err != nil {
		return 0, fmt.Errorf("current %q: %w", key, err)
	}
	return v, nil
}
