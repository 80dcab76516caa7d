package persist

import (
	"context"

	"seedgraph/internal/domain/materialize"
)

// HookEvent represents lifecycle event type.
type HookEvent string

const (
	BeforePersist HookEvent = "before_persist"
	AfterPersist  HookEvent = "after_persist"
)

// Hook runs at a lifecycle point. It may inspect the sequence or return a
// replacement; returning nil keeps the current one.
type Hook func(ctx context.Context, items []materialize.Item) ([]materialize.Item, error)

// HookRegistry stores lifecycle hooks.
type HookRegistry struct {
	hooks map[HookEvent][]Hook
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		hooks: make(map[HookEvent][]Hook),
	}
}

// On registers a hook for the specified event.
func (r *HookRegistry) On(event HookEvent, hook Hook) {
	r.hooks[event] = append(r.hooks[event], hook)
}

// Run executes the hooks of event in registration order, threading the
// sequence through them.
func (r *HookRegistry) Run(ctx context.Context, event HookEvent, items []materialize.Item) ([]materialize.Item, error) {
	for _, hook := range r.hooks[event] {
		next, err := hook(ctx, items)
		if err != nil {
			return nil, err
		}
		if next != nil {
			items = next
		}
	}
	return items, nil
}

// OnBeforePersist registers a hook to run before the unit is written.
func (r *HookRegistry) OnBeforePersist(hook Hook) {
	r.On(BeforePersist, hook)
}

// OnAfterPersist registers a hook to run after the unit is committed.
func (r *HookRegistry) OnAfterPersist(hook Hook) {
	r.On(AfterPersist, hook)
}

// Merge appends the hooks of other.
func (r *HookRegistry) Merge(other *HookRegistry) {
	if other == nil {
		return
	}
	for event, hooks := range other.hooks {
		r.hooks[event] = append(r.hooks[event], hooks...)
	}
}
