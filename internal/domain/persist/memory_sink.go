package persist

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"seedgraph/internal/metadata"
)

// Row is one stored instance.
type Row struct {
	ID       any
	Instance any
}

// MemorySink keeps rows in memory. It also implements tx.Manager: a failed
// unit restores the state captured when the outermost transaction began.
type MemorySink struct {
	mu     sync.RWMutex
	rows   map[string][]Row
	links  map[string][]Link
	nextID int64
}

type memTxKey struct{}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		rows:  make(map[string][]Row),
		links: make(map[string][]Link),
	}
}

// HasIdentity implements Sink.
func (m *MemorySink) HasIdentity(d *metadata.Descriptor, instance reflect.Value) bool {
	_, ok := IdentityOf(d, instance)
	return ok
}

// Insert implements Sink.
func (m *MemorySink) Insert(_ context.Context, d *metadata.Descriptor, instance reflect.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	idValue, err := AssignIdentity(d, instance, m.nextID)
	if err != nil {
		return err
	}
	table := d.TableName()
	m.rows[table] = append(m.rows[table], Row{ID: idValue, Instance: instance.Interface()})
	return nil
}

// Link implements Sink.
func (m *MemorySink) Link(_ context.Context, link Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.links[link.Name] {
		if l.OwnerID == link.OwnerID && l.TargetID == link.TargetID {
			return nil
		}
	}
	m.links[link.Name] = append(m.links[link.Name], link)
	return nil
}

// DeleteAll implements Sink.
func (m *MemorySink) DeleteAll(_ context.Context, d *metadata.Descriptor, exclude []any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := d.TableName()
	before := len(m.rows[table])
	m.rows[table] = slices.DeleteFunc(m.rows[table], func(r Row) bool {
		return !slices.Contains(exclude, r.ID)
	})
	return int64(before - len(m.rows[table])), nil
}

// Unlink implements Sink.
func (m *MemorySink) Unlink(_ context.Context, table AssocTable, exclude []any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.links[table.Name])
	m.links[table.Name] = slices.DeleteFunc(m.links[table.Name], func(l Link) bool {
		return !slices.Contains(exclude, l.OwnerID)
	})
	return int64(before - len(m.links[table.Name])), nil
}

// RunInTransaction implements tx.Manager. Nested calls join the outer unit.
func (m *MemorySink) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.mu.RLock()
	rows, links, next := cloneMap(m.rows), cloneMap(m.links), m.nextID
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.rows, m.links, m.nextID = rows, links, next
		m.mu.Unlock()
		return err
	}
	return nil
}

// Rows returns a copy of the rows stored in table.
func (m *MemorySink) Rows(table string) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rows[table])
}

// Links returns a copy of the association rows stored in table.
func (m *MemorySink) Links(table string) []Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.links[table])
}

func cloneMap[T any](in map[string][]T) map[string][]T {
	out := make(map[string][]T, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}
