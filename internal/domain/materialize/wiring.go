package materialize

import (
	"context"
	"fmt"
	"reflect"

	"seedgraph/internal/domain/build"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/logger"
)

// AssociationWarning records a collection association that could not be
// resolved from the registry. The caller wires it manually if needed.
type AssociationWarning struct {
	Type   string
	Field  string
	Reason string
}

func (w AssociationWarning) String() string {
	return fmt.Sprintf("%s.%s: %s", w.Type, w.Field, w.Reason)
}

// wire back-fills one-to-many and owning many-to-many collections of the
// dependency instances. The root is never wired.
func wire(ctx context.Context, order []*metadata.Descriptor, s *build.Session) []AssociationWarning {
	var warnings []AssociationWarning
	report := func(d *metadata.Descriptor, el metadata.Element, reason string) {
		w := AssociationWarning{Type: d.Name(), Field: el.Name(), Reason: reason}
		warnings = append(warnings, w)
		logger.Warn(ctx, "association not resolved", "type", w.Type, "field", w.Field, "reason", reason)
	}

	for _, d := range order {
		owner, ok := s.Registry.Get(d.Type())
		if !ok {
			continue
		}
		for _, el := range d.BackReferences() {
			wireElement(el, d, owner, s, false, report)
		}
		for _, el := range d.ManyToMany() {
			wireElement(el, d, owner, s, true, report)
		}
	}
	return warnings
}

func wireElement(el metadata.Element, d *metadata.Descriptor, owner reflect.Value, s *build.Session, strict bool,
	report func(*metadata.Descriptor, metadata.Element, string)) {
	t := metadata.Indirect(el.Type())
	switch t.Kind() {
	case reflect.Slice:
		target := metadata.Indirect(t.Elem())
		if target == d.Type() {
			return
		}
		held, ok := s.Registry.Get(target)
		if !ok {
			if strict {
				report(d, el, "no "+target.Name()+" instance in the registry")
			}
			return
		}
		if err := appendUnique(el, owner, t, held); err != nil {
			report(d, el, err.Error())
		}

	case reflect.Map:
		keyType, valType := metadata.Indirect(t.Key()), metadata.Indirect(t.Elem())
		val, hasVal := s.Registry.Get(valType)
		key, hasKey := s.Registry.Get(keyType)
		switch {
		case hasVal && hasKey:
			if err := putEntry(el, owner, t, key, val); err != nil {
				report(d, el, err.Error())
			}
		case hasVal:
			report(d, el, "no "+t.Key().String()+" key instance; set the entry manually")
		case strict:
			report(d, el, "no "+valType.Name()+" instance in the registry")
		}

	default:
		report(d, el, "unsupported collection type "+el.Type().String())
	}
}

// appendUnique appends held to the slice element unless it is already present.
// A nil slice is treated as empty.
func appendUnique(el metadata.Element, owner reflect.Value, sliceType reflect.Type, held reflect.Value) error {
	item, ok := fit(held, sliceType.Elem())
	if !ok {
		return fmt.Errorf("cannot add %s to %s", held.Type(), sliceType)
	}

	cur, _ := el.Get(owner)
	cur = reflect.Indirect(cur)
	if !cur.IsValid() {
		cur = reflect.Zero(sliceType)
	}
	for i := 0; i < cur.Len(); i++ {
		if same(cur.Index(i), item) {
			return nil
		}
	}

	next := reflect.Append(cur, item)
	return el.Set(owner, adapt(next, el.Type()))
}

func putEntry(el metadata.Element, owner reflect.Value, mapType reflect.Type, key, val reflect.Value) error {
	k, ok := fit(key, mapType.Key())
	if !ok {
		return fmt.Errorf("cannot use %s as key of %s", key.Type(), mapType)
	}
	v, ok := fit(val, mapType.Elem())
	if !ok {
		return fmt.Errorf("cannot use %s as value of %s", val.Type(), mapType)
	}

	cur, _ := el.Get(owner)
	cur = reflect.Indirect(cur)
	if !cur.IsValid() || cur.IsNil() {
		cur = reflect.MakeMap(mapType)
		cur.SetMapIndex(k, v)
		return el.Set(owner, adapt(cur, el.Type()))
	}
	cur.SetMapIndex(k, v)
	return nil
}

// fit shapes a *T registry instance to T or *T.
func fit(ptr reflect.Value, want reflect.Type) (reflect.Value, bool) {
	switch {
	case ptr.Type().AssignableTo(want):
		return ptr, true
	case ptr.Kind() == reflect.Pointer && ptr.Elem().Type().AssignableTo(want):
		return ptr.Elem(), true
	}
	return reflect.Value{}, false
}

// adapt wraps v in a pointer when the element is declared as *[]T or *map.
func adapt(v reflect.Value, declared reflect.Type) reflect.Value {
	if declared.Kind() != reflect.Pointer {
		return v
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

func same(a, b reflect.Value) bool {
	if a.Kind() == reflect.Pointer && b.Kind() == reflect.Pointer {
		return a.Pointer() == b.Pointer()
	}
	if a.Type().Comparable() {
		return a.Interface() == b.Interface()
	}
	return false
}
