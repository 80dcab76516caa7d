package metadata

import (
	"fmt"
	"reflect"
)

// Variant tells how an element reads and writes its value.
type Variant int

const (
	FieldBacked Variant = iota
	PropertyBacked
	ParamBacked
)

func (v Variant) String() string {
	switch v {
	case PropertyBacked:
		return "property"
	case ParamBacked:
		return "param"
	default:
		return "field"
	}
}

// Element is one settable field, property or constructor parameter of a record type.
type Element interface {
	Name() string
	Type() reflect.Type
	Owner() reflect.Type
	Markers() Markers
	Kind() RelationshipKind
	// Column is the persistence column: the `db` tag for scalars, the join
	// column for owning-side references, "" otherwise.
	Column() string
	Variant() Variant
	// Get reads the current value from instance (a pointer to the owner).
	Get(instance reflect.Value) (reflect.Value, bool)
	// Set writes value into instance (a pointer to the owner).
	Set(instance reflect.Value, value reflect.Value) error
}

// Target returns the record type a relationship element points at: the
// referenced type for references, the collection element type for slices,
// and the value type for maps.
func Target(el Element) reflect.Type {
	t := el.Type()
	switch Indirect(t).Kind() {
	case reflect.Slice, reflect.Array:
		return Indirect(Indirect(t).Elem())
	case reflect.Map:
		return Indirect(Indirect(t).Elem())
	}
	return Indirect(t)
}

// MapKey returns the key record type of a map-typed element, or nil.
func MapKey(el Element) reflect.Type {
	t := Indirect(el.Type())
	if t.Kind() != reflect.Map {
		return nil
	}
	return Indirect(t.Key())
}

type baseElement struct {
	name    string
	typ     reflect.Type
	owner   reflect.Type
	markers Markers
	kind    RelationshipKind
	column  string
}

func (e *baseElement) Name() string { return e.name }
func (e *baseElement) Type() reflect.Type { return e.typ }
func (e *baseElement) Owner() reflect.Type { return e.owner }
func (e *baseElement) Markers() Markers { return e.markers }
func (e *baseElement) Kind() RelationshipKind { return e.kind }
func (e *baseElement) Column() string { return e.column }
func (e *baseElement) String() string { return e.owner.Name() + "." + e.name }

func newBase(name string, typ, owner reflect.Type, tag reflect.StructTag) baseElement {
	m := ParseMarkers(tag.Get(TagName))
	kind := Classify(m)
	col := columnName(tag)
	if kind.IsReference() {
		col = m.Join
	}
	if kind.IsCollection() {
		col = ""
	}
	return baseElement{name: name, typ: typ, owner: owner, markers: m, kind: kind, column: col}
}

// fieldElement reads and writes an exported struct field by index path.
type fieldElement struct {
	baseElement
	index []int
}

func (e *fieldElement) Variant() Variant { return FieldBacked }

func (e *fieldElement) Get(instance reflect.Value) (reflect.Value, bool) {
	v := reflect.Indirect(instance)
	f, err := v.FieldByIndexErr(e.index)
	if err != nil {
		return reflect.Value{}, false
	}
	return f, true
}

func (e *fieldElement) Set(instance reflect.Value, value reflect.Value) error {
	v := reflect.Indirect(instance)
	for i, idx := range e.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(idx)
	}
	if !v.CanSet() {
		return fmt.Errorf("field %s is not settable", e)
	}
	if !value.Type().AssignableTo(v.Type()) {
		return fmt.Errorf("field %s: cannot assign %s to %s", e, value.Type(), v.Type())
	}
	v.Set(value)
	return nil
}

// propertyElement goes through an exported X()/SetX(v) method pair.
type propertyElement struct {
	baseElement
	getter string
	setter string
}

func (e *propertyElement) Variant() Variant { return PropertyBacked }

func (e *propertyElement) Get(instance reflect.Value) (reflect.Value, bool) {
	m := instance.MethodByName(e.getter)
	if !m.IsValid() {
		return reflect.Value{}, false
	}
	out := m.Call(nil)
	return out[0], true
}

func (e *propertyElement) Set(instance reflect.Value, value reflect.Value) (err error) {
	m := instance.MethodByName(e.setter)
	if !m.IsValid() {
		return fmt.Errorf("property %s has no setter", e)
	}
	want := m.Type().In(0)
	if !value.Type().AssignableTo(want) {
		return fmt.Errorf("property %s: cannot assign %s to %s", e, value.Type(), want)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("property %s: setter panicked: %v", e, r)
		}
	}()
	out := m.Call([]reflect.Value{value})
	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}
	return nil
}

// paramElement describes a constructor parameter. It carries no live value.
type paramElement struct {
	baseElement
	position int
}

func (e *paramElement) Variant() Variant { return ParamBacked }

// Position is the zero-based parameter index.
func (e *paramElement) Position() int { return e.position }

func (e *paramElement) Get(reflect.Value) (reflect.Value, bool) { return reflect.Value{}, false }

func (e *paramElement) Set(reflect.Value, reflect.Value) error {
	return fmt.Errorf("constructor parameter %s cannot be assigned on an instance", e)
}

// ParamPosition returns the parameter index of a constructor-parameter element.
func ParamPosition(el Element) (int, bool) {
	p, ok := el.(*paramElement)
	if !ok {
		return 0, false
	}
	return p.position, true
}
