// Package metadata builds per-type relationship descriptors from Go struct
// definitions. Descriptors drive dependency scanning, instance building and
// association wiring; they are memoized per (type, scan mode).
package metadata

import (
	"reflect"
)

// Entity is the entity marker. Only types whose pointer implements it can be
// scanned, built as roots, or persisted.
type Entity interface {
	TableName() string
}

// Enumerated marks a closed set of legal values. The first value is used
// whenever an instance of the type is requested.
type Enumerated interface {
	EnumValues() []any
}

// FreshInstance marks a type that must never be reused from the registry.
type FreshInstance interface {
	AlwaysFresh() bool
}

var (
	entityIface = reflect.TypeOf((*Entity)(nil)).Elem()
	enumIface   = reflect.TypeOf((*Enumerated)(nil)).Elem()
	freshIface  = reflect.TypeOf((*FreshInstance)(nil)).Elem()
	errorIface  = reflect.TypeOf((*error)(nil)).Elem()
)

// Indirect strips pointer indirections.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeOf returns the normalized record type of a value (pointer or not).
func TypeOf(v any) reflect.Type {
	return Indirect(reflect.TypeOf(v))
}

// IsEntity reports whether t (or *t) carries the entity marker.
func IsEntity(t reflect.Type) bool {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	return t.Implements(entityIface) || reflect.PointerTo(t).Implements(entityIface)
}

// TableNameOf returns the table name declared by the entity marker.
func TableNameOf(t reflect.Type) string {
	t = Indirect(t)
	if !IsEntity(t) {
		return ""
	}
	return reflect.New(t).Interface().(Entity).TableName()
}

func isAlwaysFresh(t reflect.Type) bool {
	if !reflect.PointerTo(t).Implements(freshIface) {
		return false
	}
	return reflect.New(t).Interface().(FreshInstance).AlwaysFresh()
}

// EnumConstants returns the declared constants of t that are of type t or *t.
func EnumConstants(t reflect.Type) []reflect.Value {
	if t == nil || t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return nil
	}
	if !t.Implements(enumIface) && !reflect.PointerTo(t).Implements(enumIface) {
		return nil
	}
	values := reflect.New(t).Interface().(Enumerated).EnumValues()
	out := make([]reflect.Value, 0, len(values))
	for _, v := range values {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() {
			continue
		}
		if rv.Type() == t || (rv.Kind() == reflect.Pointer && rv.Type().Elem() == t && !rv.IsNil()) {
			out = append(out, rv)
		}
	}
	return out
}
