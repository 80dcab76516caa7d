// Package persist writes materialized graphs through a Sink as one
// all-or-nothing unit and removes them again.
package persist

import (
	"context"
	"reflect"
	"strings"
	"unicode"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/core/id"
	"seedgraph/internal/metadata"
)

// Sink durably stores instances.
type Sink interface {
	// HasIdentity reports whether instance is already durable.
	HasIdentity(d *metadata.Descriptor, instance reflect.Value) bool
	// Insert stores instance and assigns its identity.
	Insert(ctx context.Context, d *metadata.Descriptor, instance reflect.Value) error
	// Link writes one association-table row. Existing rows are kept.
	Link(ctx context.Context, link Link) error
	// DeleteAll removes every row of d's table except the excluded identities.
	DeleteAll(ctx context.Context, d *metadata.Descriptor, exclude []any) (int64, error)
	// Unlink removes association rows except those owned by excluded identities.
	Unlink(ctx context.Context, table AssocTable, exclude []any) (int64, error)
}

// AssocTable describes the association table of an owning many-to-many element.
type AssocTable struct {
	Name         string
	OwnerColumn  string
	TargetColumn string
}

// Link is one association row.
type Link struct {
	AssocTable
	OwnerID  any
	TargetID any
}

// AssociationOf derives the association table of an owning many-to-many
// element. Columns default to <owner>_id / <target>_id; a join marker on the
// element names the owner column.
func AssociationOf(d *metadata.Descriptor, el metadata.Element) AssocTable {
	m := el.Markers()
	owner := m.Join
	if owner == "" {
		owner = snake(d.Name()) + "_id"
	}
	return AssocTable{
		Name:         m.Table,
		OwnerColumn:  owner,
		TargetColumn: snake(metadata.Target(el).Name()) + "_id",
	}
}

// IdentityOf reads the identity value of instance.
func IdentityOf(d *metadata.Descriptor, instance reflect.Value) (any, bool) {
	idEl := d.Identity()
	if idEl == nil {
		return nil, false
	}
	v, ok := idEl.Get(instance)
	if !ok || !v.IsValid() {
		return nil, false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.IsZero() {
		return nil, false
	}
	return v.Interface(), true
}

// ResetIdentity sets the identity of instance back to its zero value.
func ResetIdentity(d *metadata.Descriptor, instance reflect.Value) {
	if idEl := d.Identity(); idEl != nil {
		_ = idEl.Set(instance, reflect.Zero(idEl.Type()))
	}
}

func snake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AssignIdentity generates an identity for instance: a UUIDv7 for uuid and
// string identities, seq for integer ones. It returns the assigned value.
func AssignIdentity(d *metadata.Descriptor, instance reflect.Value, seq int64) (any, error) {
	idEl := d.Identity()
	if idEl == nil {
		return nil, apperror.NewConfiguration(d.Name(), "no identity element")
	}
	t := idEl.Type()
	base := metadata.Indirect(t)

	var v reflect.Value
	switch {
	case base == reflect.TypeOf(id.ID{}):
		v = reflect.ValueOf(id.New())
	case base.Kind() == reflect.String:
		v = reflect.ValueOf(id.New().String()).Convert(base)
	case base.Kind() >= reflect.Int && base.Kind() <= reflect.Int64:
		v = reflect.New(base).Elem()
		v.SetInt(seq)
	case base.Kind() >= reflect.Uint && base.Kind() <= reflect.Uint64:
		v = reflect.New(base).Elem()
		v.SetUint(uint64(seq))
	default:
		return nil, apperror.NewConfiguration(d.Name(), "unsupported identity type "+t.String())
	}
	out := v.Interface()
	if t.Kind() == reflect.Pointer {
		p := reflect.New(base)
		p.Elem().Set(v)
		v = p
	}
	if err := idEl.Set(instance, v); err != nil {
		return nil, err
	}
	return out, nil
}
