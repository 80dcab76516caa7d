package persist

import (
	"context"
	"fmt"
	"reflect"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/core/tx"
	"seedgraph/internal/domain/materialize"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/logger"
)

// Orchestrator persists construction queues.
type Orchestrator struct {
	sink  Sink
	txm   tx.Manager
	hooks *HookRegistry
}

// New creates an orchestrator. A nil tx manager runs without a transaction.
func New(sink Sink, txm tx.Manager) *Orchestrator {
	if txm == nil {
		txm = tx.Passthrough
	}
	return &Orchestrator{sink: sink, txm: txm, hooks: NewHookRegistry()}
}

// Hooks returns the hook registry for external registration.
func (o *Orchestrator) Hooks() *HookRegistry { return o.hooks }

// Sink returns the underlying sink.
func (o *Orchestrator) Sink() Sink { return o.sink }

// Persist writes items in order inside one transaction: every instance without
// an identity is inserted, then owning many-to-many rows are linked. Before
// hooks may replace the sequence; after hooks run once the unit is committed.
// On failure nothing is kept and assigned identities are reset.
func (o *Orchestrator) Persist(ctx context.Context, items []materialize.Item) ([]materialize.Item, error) {
	items, err := o.hooks.Run(ctx, BeforePersist, items)
	if err != nil {
		return nil, fmt.Errorf("before persist hook: %w", err)
	}

	var inserted []materialize.Item
	err = o.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		seen := make(map[uintptr]bool)
		for _, it := range items {
			if !it.Descriptor.IsEntity() || it.Instance.Kind() != reflect.Pointer {
				continue
			}
			if seen[it.Instance.Pointer()] || o.sink.HasIdentity(it.Descriptor, it.Instance) {
				continue
			}
			seen[it.Instance.Pointer()] = true
			inserted = append(inserted, it)
			if err := o.sink.Insert(ctx, it.Descriptor, it.Instance); err != nil {
				return apperror.NewPersistence(it.Descriptor.Name(), err)
			}
		}
		return o.linkAll(ctx, items)
	})
	if err != nil {
		for _, it := range inserted {
			ResetIdentity(it.Descriptor, it.Instance)
		}
		if !apperror.IsAppError(err) {
			err = apperror.NewPersistence("graph", err)
		}
		return nil, err
	}
	logger.Debug(ctx, "graph persisted", "items", len(items), "inserted", len(inserted))

	items, err = o.hooks.Run(ctx, AfterPersist, items)
	if err != nil {
		return nil, fmt.Errorf("after persist hook: %w", err)
	}
	return items, nil
}

func (o *Orchestrator) linkAll(ctx context.Context, items []materialize.Item) error {
	type linkKey struct {
		table         string
		owner, target any
	}
	done := make(map[linkKey]bool)

	for _, it := range items {
		ownerID, ok := IdentityOf(it.Descriptor, it.Instance)
		if !ok {
			continue
		}
		for _, el := range it.Descriptor.ManyToMany() {
			assoc := AssociationOf(it.Descriptor, el)
			targetDesc, err := it.Descriptor.Factory().Describe(metadata.Target(el), it.Descriptor.Mode())
			if err != nil {
				return err
			}
			for _, target := range collectionItems(el, it.Instance) {
				targetID, ok := IdentityOf(targetDesc, target)
				if !ok {
					logger.Warn(ctx, "association target has no identity", "type", it.Descriptor.Name(), "field", el.Name())
					continue
				}
				key := linkKey{table: assoc.Name, owner: ownerID, target: targetID}
				if done[key] {
					continue
				}
				done[key] = true
				if err := o.sink.Link(ctx, Link{AssocTable: assoc, OwnerID: ownerID, TargetID: targetID}); err != nil {
					return apperror.NewPersistence(it.Descriptor.Name(), err).WithDetail("table", assoc.Name)
				}
			}
		}
	}
	return nil
}

// collectionItems returns the members of a slice-valued element as pointers.
func collectionItems(el metadata.Element, instance reflect.Value) []reflect.Value {
	v, ok := el.Get(instance)
	if !ok {
		return nil
	}
	v = reflect.Indirect(v)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return nil
	}
	out := make([]reflect.Value, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		switch {
		case item.Kind() == reflect.Pointer && !item.IsNil():
			out = append(out, item)
		case item.Kind() == reflect.Struct && item.CanAddr():
			out = append(out, item.Addr())
		}
	}
	return out
}

// Cleanup deletes the rows of the given types in reverse dependency order
// (types are expected leaves first, as returned by a scan), association tables
// first. Rows whose identity is in exclude are kept.
func (o *Orchestrator) Cleanup(ctx context.Context, types []*metadata.Descriptor, exclude ...any) (int64, error) {
	var total int64
	err := o.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		tables := make(map[string]bool)
		for _, d := range types {
			for _, el := range d.ManyToMany() {
				assoc := AssociationOf(d, el)
				if tables[assoc.Name] {
					continue
				}
				tables[assoc.Name] = true
				n, err := o.sink.Unlink(ctx, assoc, exclude)
				if err != nil {
					return apperror.NewPersistence(d.Name(), err).WithDetail("table", assoc.Name)
				}
				total += n
			}
		}

		for i := len(types) - 1; i >= 0; i-- {
			d := types[i]
			if !d.IsEntity() {
				continue
			}
			n, err := o.sink.DeleteAll(ctx, d, exclude)
			if err != nil {
				return apperror.NewPersistence(d.Name(), err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, "cleanup finished", "types", len(types), "rows", total)
	return total, nil
}
