// Package holder keeps the current instance per record type for one
// materialization run.
package holder

import (
	"reflect"

	"seedgraph/internal/metadata"
)

// Registry maps a record type to at most one live instance.
// Only the most recently registered instance of a type is reachable;
// a graph with several siblings of one type wires the last one only.
// Not safe for concurrent use.
type Registry struct {
	items map[reflect.Type]reflect.Value
	order []reflect.Type
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{items: make(map[reflect.Type]reflect.Value)}
}

// Put records instance (a pointer to a struct) under its type.
// Nil instances are ignored.
func (r *Registry) Put(instance reflect.Value) {
	if !instance.IsValid() {
		return
	}
	if instance.Kind() == reflect.Interface {
		instance = instance.Elem()
	}
	if instance.Kind() != reflect.Pointer || instance.IsNil() {
		return
	}
	t := instance.Type().Elem()
	if _, ok := r.items[t]; !ok {
		r.order = append(r.order, t)
	}
	r.items[t] = instance
}

// PutValue is Put for a plain Go value.
func (r *Registry) PutValue(v any) {
	if v == nil {
		return
	}
	r.Put(reflect.ValueOf(v))
}

// Get returns the current instance of t, if any.
func (r *Registry) Get(t reflect.Type) (reflect.Value, bool) {
	v, ok := r.items[metadata.Indirect(t)]
	return v, ok
}

// Has reports whether an instance of t is held.
func (r *Registry) Has(t reflect.Type) bool {
	_, ok := r.items[metadata.Indirect(t)]
	return ok
}

// Len returns the number of held types.
func (r *Registry) Len() int { return len(r.items) }

// Types returns held types in first-registration order.
func (r *Registry) Types() []reflect.Type {
	out := make([]reflect.Type, len(r.order))
	copy(out, r.order)
	return out
}

// Clear drops every entry.
func (r *Registry) Clear() {
	clear(r.items)
	r.order = r.order[:0]
}

// MergeFrom copies every entry of other, overwriting on type collision.
func (r *Registry) MergeFrom(other *Registry) {
	if other == nil {
		return
	}
	for _, t := range other.order {
		r.Put(other.items[t])
	}
}

// Snapshot is a read-only export of a registry used to seed later runs.
type Snapshot struct {
	entries []reflect.Value
}

// Len returns the number of exported instances.
func (s Snapshot) Len() int { return len(s.entries) }

// Instances returns the exported instances as plain values.
func (s Snapshot) Instances() []any {
	out := make([]any, 0, len(s.entries))
	for _, v := range s.entries {
		out = append(out, v.Interface())
	}
	return out
}

// Snapshot exports the current entries.
func (r *Registry) Snapshot() Snapshot {
	entries := make([]reflect.Value, 0, len(r.order))
	for _, t := range r.order {
		entries = append(entries, r.items[t])
	}
	return Snapshot{entries: entries}
}

// Seed imports a snapshot, overwriting on type collision.
func (r *Registry) Seed(s Snapshot) {
	for _, v := range s.entries {
		r.Put(v)
	}
}
