// Package build constructs and populates single record instances.
package build

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/domain/holder"
	"seedgraph/internal/domain/synth"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/logger"
)

// FieldWarning records an element that could not be populated.
// The element keeps its post-construction value.
type FieldWarning struct {
	Type  string
	Field string
	Err   error
}

func (w FieldWarning) String() string {
	return fmt.Sprintf("%s.%s: %v", w.Type, w.Field, w.Err)
}

// Session is the per-run state shared by nested builds.
type Session struct {
	Mode      metadata.ScanMode
	Registry  *holder.Registry
	Synth     synth.Synthesizer
	Overrides *Overrides

	Warnings []FieldWarning

	stack map[reflect.Type]bool
	built []Built
}

// Built is an entity instance completed during the session.
type Built struct {
	Descriptor *metadata.Descriptor
	Instance   reflect.Value
}

// Mark returns a position in the completion log for BuiltSince.
func (s *Session) Mark() int { return len(s.built) }

// BuiltSince returns the entity instances completed after mark, in completion
// order. A nested build completes before the instance that needed it.
func (s *Session) BuiltSince(mark int) []Built {
	if mark >= len(s.built) {
		return nil
	}
	return s.built[mark:]
}

func (s *Session) record(desc *metadata.Descriptor, instance reflect.Value) {
	if desc.IsEntity() {
		s.built = append(s.built, Built{Descriptor: desc, Instance: instance})
	}
}

// NewSession creates a session. Nil collaborators get defaults.
func NewSession(mode metadata.ScanMode, reg *holder.Registry, s synth.Synthesizer, o *Overrides) *Session {
	if reg == nil {
		reg = holder.New()
	}
	if s == nil {
		s = synth.New(synth.Config{})
	}
	return &Session{
		Mode:      mode,
		Registry:  reg,
		Synth:     s,
		Overrides: o,
		stack:     make(map[reflect.Type]bool),
	}
}

func (s *Session) warn(ctx context.Context, t reflect.Type, field string, err error) {
	s.Warnings = append(s.Warnings, FieldWarning{Type: t.Name(), Field: field, Err: err})
	logger.Warn(ctx, "field not populated", "type", t.Name(), "field", field, "error", err)
}

// Builder builds one instance at a time from descriptors.
type Builder struct {
	factory *metadata.Factory
}

// New creates a builder reading descriptors from factory.
func New(factory *metadata.Factory) *Builder {
	return &Builder{factory: factory}
}

// Build constructs, populates and registers one instance of the entity type t.
// The returned value is a pointer to the instance.
func (b *Builder) Build(ctx context.Context, t reflect.Type, s *Session) (reflect.Value, error) {
	t = metadata.Indirect(t)
	if !metadata.IsEntity(t) {
		name := "<nil>"
		if t != nil {
			name = t.String()
		}
		return reflect.Value{}, apperror.NewConfiguration(name, "only entity-marked types can be built")
	}
	return b.build(ctx, t, s)
}

func (b *Builder) build(ctx context.Context, t reflect.Type, s *Session) (reflect.Value, error) {
	desc, err := b.factory.Describe(t, s.Mode)
	if err != nil {
		return reflect.Value{}, err
	}

	// closed enumerations never get constructed or populated
	if desc.IsEnumerated() {
		c := desc.Constants()[0]
		if c.Kind() != reflect.Pointer {
			p := reflect.New(t)
			p.Elem().Set(c)
			c = p
		}
		s.Registry.Put(c)
		s.record(desc, c)
		return c, nil
	}

	s.stack[t] = true
	defer delete(s.stack, t)

	instance, err := b.construct(ctx, desc, s)
	if err != nil {
		return reflect.Value{}, err
	}

	if err := b.populate(ctx, desc, instance, s); err != nil {
		return reflect.Value{}, err
	}

	s.Registry.Put(instance)
	s.record(desc, instance)
	return instance, nil
}

// construct tries the widest constructor, then the nullary one. Plain
// allocation is used only when no constructor is registered.
func (b *Builder) construct(ctx context.Context, desc *metadata.Descriptor, s *Session) (reflect.Value, error) {
	ctors := desc.Constructors()
	if len(ctors) == 0 {
		return reflect.New(desc.Type()), nil
	}

	best := ctors[0]
	for _, c := range ctors[1:] {
		if c.Arity() > best.Arity() {
			best = c
		}
	}

	var reasons []error
	if best.Arity() > 0 {
		args := make([]reflect.Value, best.Arity())
		var argErr error
		for i, p := range best.Params() {
			v, err := b.resolveParam(ctx, p, s)
			if err != nil {
				if apperror.IsConfiguration(err) || apperror.IsConstruction(err) {
					return reflect.Value{}, err
				}
				argErr = fmt.Errorf("%s: %w", p.Name(), err)
				break
			}
			args[i] = v
		}
		if argErr != nil {
			reasons = append(reasons, argErr)
		} else if out := best.Invoke(args); out.Invoked() {
			return out.Instance, nil
		} else {
			reasons = append(reasons, out.Reason)
		}
	}

	for _, c := range ctors {
		if c.Arity() != 0 {
			continue
		}
		out := c.Invoke(nil)
		if out.Invoked() {
			if len(reasons) > 0 {
				logger.Debug(ctx, "fell back to nullary constructor", "type", desc.Name(), "reason", errors.Join(reasons...))
			}
			return out.Instance, nil
		}
		reasons = append(reasons, out.Reason)
		break
	}

	if len(reasons) == 0 {
		reasons = append(reasons, errors.New("no nullary constructor registered"))
	}
	return reflect.Value{}, apperror.NewConstruction(desc.Name(), errors.Join(reasons...))
}

// resolveParam applies override, registry reuse, then synthesis. A reference
// parameter without a registry entry triggers a nested build.
func (b *Builder) resolveParam(ctx context.Context, p metadata.Element, s *Session) (reflect.Value, error) {
	if v, ok, err := s.Overrides.lookup(p); ok {
		return v, err
	}
	if metadata.Indirect(p.Type()) == p.Owner() {
		return reflect.Zero(p.Type()), nil
	}

	res, err := s.Synth.ValueFor(ctx, p)
	if err != nil {
		return reflect.Value{}, err
	}
	switch res.Kind {
	case synth.Value:
		return res.Value, nil
	case synth.NeedsReference, synth.NeedsInstance:
		if v, ok := b.reuse(p, s); ok {
			return v, nil
		}
		return b.nested(ctx, p, s)
	}
	return reflect.Zero(p.Type()), nil
}

// populate fills the remaining elements of instance in element order.
func (b *Builder) populate(ctx context.Context, desc *metadata.Descriptor, instance reflect.Value, s *Session) error {
	t := desc.Type()
	for _, el := range desc.Elements() {
		if v, ok, err := s.Overrides.lookup(el); ok {
			if err == nil {
				err = el.Set(instance, v)
			}
			if err != nil {
				s.warn(ctx, t, el.Name(), err)
			}
			continue
		}

		if metadata.Indirect(el.Type()) == t {
			continue
		}
		if cur, ok := el.Get(instance); ok && !cur.IsZero() {
			continue
		}

		v, set, err := b.resolveField(ctx, el, s)
		if err != nil {
			if apperror.IsConfiguration(err) || apperror.IsConstruction(err) {
				return err
			}
			s.warn(ctx, t, el.Name(), err)
			continue
		}
		if !set {
			continue
		}
		if err := el.Set(instance, v); err != nil {
			s.warn(ctx, t, el.Name(), err)
		}
	}
	return nil
}

// resolveField mirrors resolveParam, except that a reference without a
// registry entry is left unset.
func (b *Builder) resolveField(ctx context.Context, el metadata.Element, s *Session) (reflect.Value, bool, error) {
	res, err := s.Synth.ValueFor(ctx, el)
	if err != nil {
		return reflect.Value{}, false, err
	}

	switch res.Kind {
	case synth.Value:
		if !res.Value.IsValid() {
			return reflect.Value{}, false, nil
		}
		return res.Value, true, nil
	case synth.NeedsReference:
		v, ok := b.reuse(el, s)
		return v, ok, nil
	case synth.NeedsInstance:
		if v, ok := b.reuse(el, s); ok {
			return v, true, nil
		}
		if s.stack[metadata.Indirect(el.Type())] {
			return reflect.Value{}, false, fmt.Errorf("%s is already being built", metadata.Indirect(el.Type()).Name())
		}
		v, err := b.nested(ctx, el, s)
		if err != nil {
			return reflect.Value{}, false, err
		}
		return v, true, nil
	}
	return reflect.Value{}, false, nil
}

// reuse returns the registry instance for el shaped to el's declared type.
func (b *Builder) reuse(el metadata.Element, s *Session) (reflect.Value, bool) {
	held, ok := s.Registry.Get(el.Type())
	if !ok {
		return reflect.Value{}, false
	}
	return shape(held, el.Type())
}

func (b *Builder) nested(ctx context.Context, el metadata.Element, s *Session) (reflect.Value, error) {
	target := metadata.Indirect(el.Type())
	if target.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%s is not a struct", target)
	}
	if s.stack[target] {
		return reflect.Value{}, fmt.Errorf("%s is already being built", target.Name())
	}
	v, err := b.build(ctx, target, s)
	if err != nil {
		return reflect.Value{}, err
	}
	out, ok := shape(v, el.Type())
	if !ok {
		return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), el.Type())
	}
	return out, nil
}

// shape adapts a *T instance to a T or *T declared type.
func shape(ptr reflect.Value, want reflect.Type) (reflect.Value, bool) {
	switch {
	case ptr.Type().AssignableTo(want):
		return ptr, true
	case ptr.Kind() == reflect.Pointer && ptr.Elem().Type().AssignableTo(want):
		return ptr.Elem(), true
	}
	return reflect.Value{}, false
}
