package holder

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type city struct{ Name string }
type road struct{ Length int }

func TestRegistry_PutGet(t *testing.T) {
	r := New()

	first := &city{Name: "first"}
	second := &city{Name: "second"}
	r.PutValue(first)
	r.PutValue(second)

	v, ok := r.Get(reflect.TypeOf(city{}))
	require.True(t, ok)
	assert.Same(t, second, v.Interface(), "last writer wins")

	_, ok = r.Get(reflect.TypeOf(&road{}))
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_IgnoresNil(t *testing.T) {
	r := New()

	var c *city
	r.PutValue(c)
	r.PutValue(nil)
	r.Put(reflect.Value{})

	assert.Zero(t, r.Len())
}

func TestRegistry_MergeFromAndClear(t *testing.T) {
	a := New()
	b := New()

	a.PutValue(&city{Name: "a"})
	b.PutValue(&city{Name: "b"})
	b.PutValue(&road{Length: 3})

	a.MergeFrom(b)
	assert.Equal(t, 2, a.Len())
	v, _ := a.Get(reflect.TypeOf(city{}))
	assert.Equal(t, "b", v.Interface().(*city).Name)
	assert.Equal(t, []reflect.Type{reflect.TypeOf(city{}), reflect.TypeOf(road{})}, a.Types())

	a.Clear()
	assert.Zero(t, a.Len())
	assert.Empty(t, a.Types())
	assert.Equal(t, 2, b.Len(), "source untouched")
}

func TestRegistry_SnapshotSeed(t *testing.T) {
	src := New()
	c := &city{Name: "seeded"}
	src.PutValue(c)

	snap := src.Snapshot()
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, []any{c}, snap.Instances())

	dst := New()
	dst.Seed(snap)
	v, ok := dst.Get(reflect.TypeOf(city{}))
	require.True(t, ok)
	assert.Same(t, c, v.Interface())

	dst.PutValue(&city{Name: "replaced"})
	v, _ = src.Get(reflect.TypeOf(city{}))
	assert.Same(t, c, v.Interface(), "snapshot import does not share the map")
}
