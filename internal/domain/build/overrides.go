package build

import (
	"fmt"
	"reflect"

	"seedgraph/internal/metadata"
)

// Overrides holds caller-supplied values per (type, field) and
// (type, constructor parameter). They take precedence over everything else.
type Overrides struct {
	fields map[reflect.Type]map[string]any
	params map[reflect.Type]map[int]any
}

// NewOverrides creates an empty override set.
func NewOverrides() *Overrides {
	return &Overrides{
		fields: make(map[reflect.Type]map[string]any),
		params: make(map[reflect.Type]map[int]any),
	}
}

// SetField overrides element name of t. A nil value sets the zero value.
func (o *Overrides) SetField(t reflect.Type, name string, value any) *Overrides {
	t = metadata.Indirect(t)
	if o.fields[t] == nil {
		o.fields[t] = make(map[string]any)
	}
	o.fields[t][name] = value
	return o
}

// SetParam overrides constructor parameter pos of t.
func (o *Overrides) SetParam(t reflect.Type, pos int, value any) *Overrides {
	t = metadata.Indirect(t)
	if o.params[t] == nil {
		o.params[t] = make(map[int]any)
	}
	o.params[t][pos] = value
	return o
}

// Merge copies other into o, other winning on collision.
func (o *Overrides) Merge(other *Overrides) {
	if other == nil {
		return
	}
	for t, byName := range other.fields {
		for name, v := range byName {
			o.SetField(t, name, v)
		}
	}
	for t, byPos := range other.params {
		for pos, v := range byPos {
			o.SetParam(t, pos, v)
		}
	}
}

// lookup returns the override for el converted to its declared type.
func (o *Overrides) lookup(el metadata.Element) (reflect.Value, bool, error) {
	if o == nil {
		return reflect.Value{}, false, nil
	}
	var (
		raw any
		ok  bool
	)
	if pos, isParam := metadata.ParamPosition(el); isParam {
		raw, ok = o.params[el.Owner()][pos]
	} else {
		raw, ok = o.fields[el.Owner()][el.Name()]
	}
	if !ok {
		return reflect.Value{}, false, nil
	}
	v, err := coerce(raw, el.Type())
	return v, true, err
}

// coerce converts raw to want when it is assignable or convertible.
func coerce(raw any, want reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(want), nil
	}
	v := reflect.ValueOf(raw)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Type().AssignableTo(want) {
		return v.Elem(), nil
	}
	if want.Kind() == reflect.Pointer && v.Type().AssignableTo(want.Elem()) {
		p := reflect.New(want.Elem())
		p.Elem().Set(v)
		return p, nil
	}
	textual := want.Kind() == reflect.String || v.Kind() == reflect.String
	if v.Type().ConvertibleTo(want) && v.Kind() != reflect.Pointer && (!textual || v.Kind() == want.Kind()) {
		return v.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), want)
}
