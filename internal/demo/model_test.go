package demo

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedgraph/internal/metadata"
)

func TestSchema_Lookup(t *testing.T) {
	s := Schema()

	assert.Equal(t,
		[]string{"account", "category", "currency", "employee", "lineitem", "person", "tag"},
		s.Names())

	typ, ok := s.Lookup("LineItem")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(LineItem{}), typ)

	_, ok = s.Lookup("invoice")
	assert.False(t, ok)
}

func TestDescriptors(t *testing.T) {
	f := metadata.NewFactory(metadata.FactoryConfig{}, Constructors())

	t.Run("line item dependencies by mode", func(t *testing.T) {
		d, err := f.Describe(reflect.TypeOf(LineItem{}), metadata.IgnoreOptional)
		require.NoError(t, err)
		assert.Len(t, d.Constructors(), 1)
		assert.Equal(t, []string{"Category", "Currency", "Person"}, depNames(t, d))

		d, err = f.Describe(reflect.TypeOf(LineItem{}), metadata.IncludeOptional)
		require.NoError(t, err)
		assert.Equal(t, []string{"Category", "Currency", "Person"}, depNames(t, d), "reviewer is the same type as owner")
	})

	t.Run("employee excludes itself", func(t *testing.T) {
		d, err := f.Describe(reflect.TypeOf(Employee{}), metadata.IncludeOptional)
		require.NoError(t, err)
		assert.Equal(t, []string{"Person"}, depNames(t, d))
	})

	t.Run("account is property based", func(t *testing.T) {
		d, err := f.Describe(reflect.TypeOf(Account{}), metadata.IgnoreOptional)
		require.NoError(t, err)
		assert.Equal(t, metadata.PropertyAccess, d.Access())
		require.NotNil(t, d.Identity())
		assert.Equal(t, "ID", d.Identity().Name())

		holder, ok := d.Element("Holder")
		require.True(t, ok)
		assert.Equal(t, "holder_id", holder.Column())
		assert.Equal(t, []string{"Person"}, depNames(t, d))
	})

	t.Run("currency is enumerated", func(t *testing.T) {
		d, err := f.Describe(reflect.TypeOf(Currency{}), metadata.IgnoreOptional)
		require.NoError(t, err)
		require.True(t, d.IsEnumerated())
		assert.Equal(t, "EUR", d.Constants()[0].Interface().(Currency).Code)
	})

	t.Run("associations", func(t *testing.T) {
		d, err := f.Describe(reflect.TypeOf(LineItem{}), metadata.IgnoreOptional)
		require.NoError(t, err)
		require.Len(t, d.ManyToMany(), 1)
		assert.Equal(t, "Tags", d.ManyToMany()[0].Name())

		tag, err := f.Describe(reflect.TypeOf(Tag{}), metadata.IgnoreOptional)
		require.NoError(t, err)
		assert.Empty(t, tag.ManyToMany(), "inverse side owns no association table")
	})
}

func depNames(t *testing.T, d *metadata.Descriptor) []string {
	t.Helper()
	deps, err := d.Dependencies()
	require.NoError(t, err)
	names := make([]string, 0, len(deps))
	for _, dep := range deps {
		names = append(names, dep.Name())
	}
	return names
}

func TestDDL(t *testing.T) {
	pg := DDL(false)
	lite := DDL(true)
	require.Len(t, lite, len(pg))

	assert.Contains(t, pg[0], "id UUID PRIMARY KEY")
	assert.Contains(t, lite[0], "id TEXT PRIMARY KEY")
	assert.Contains(t, lite[2], "INTEGER PRIMARY KEY")
	for _, stmt := range lite {
		assert.NotContains(t, stmt, "{")
	}
}
