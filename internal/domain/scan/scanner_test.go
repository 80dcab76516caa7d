package scan

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/metadata"
)

// diamond: top -> left, right; left -> base; right -> base
type base struct {
	ID int64 `db:"id" seed:"id"`
}

type left struct {
	ID   int64 `db:"id" seed:"id"`
	Base *base `seed:"ref,join=base_id"`
}

type right struct {
	ID   int64 `db:"id" seed:"id"`
	Base *base `seed:"required,join=base_id"`
}

type top struct {
	ID    int64  `db:"id" seed:"id"`
	Left  *left  `seed:"ref,join=left_id"`
	Right *right `seed:"ref,join=right_id"`
	Self  *top   `seed:"ref,join=self_id"`
}

func (*base) TableName() string  { return "base" }
func (*left) TableName() string  { return "left" }
func (*right) TableName() string { return "right" }
func (*top) TableName() string   { return "top" }

// cycle: alpha -> beta -> gamma -> alpha
type alpha struct {
	ID   int64 `db:"id" seed:"id"`
	Beta *beta `seed:"ref,join=beta_id"`
}

type beta struct {
	ID    int64  `db:"id" seed:"id"`
	Gamma *gamma `seed:"ref,join=gamma_id"`
}

type gamma struct {
	ID    int64  `db:"id" seed:"id"`
	Alpha *alpha `seed:"ref,join=alpha_id"`
}

func (*alpha) TableName() string { return "alpha" }
func (*beta) TableName() string  { return "beta" }
func (*gamma) TableName() string { return "gamma" }

// optional chain: leaf <- opt (optional)
type leaf struct {
	ID int64 `db:"id" seed:"id"`
}

type opt struct {
	ID   int64 `db:"id" seed:"id"`
	Leaf *leaf `seed:"ref,optional,join=leaf_id"`
}

func (*leaf) TableName() string { return "leaf" }
func (*opt) TableName() string  { return "opt" }

type plain struct {
	ID int64 `seed:"id"`
}

type wrapsPlain struct {
	ID    int64  `db:"id" seed:"id"`
	Plain *plain `seed:"ref,join=plain_id"`
}

func (*wrapsPlain) TableName() string { return "wraps_plain" }

func newScanner() *Scanner {
	return New(metadata.NewFactory(metadata.FactoryConfig{}, nil), 0)
}

func typeNames(ds []*metadata.Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name())
	}
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestScan_DiamondDedupAndOrder(t *testing.T) {
	s := newScanner()

	order, err := s.Scan(reflect.TypeOf(top{}), metadata.IgnoreOptional)
	require.NoError(t, err)

	got := typeNames(order)
	assert.Len(t, got, 3)
	assert.ElementsMatch(t, []string{"base", "left", "right"}, got)
	assert.Less(t, indexOf(got, "base"), indexOf(got, "left"))
	assert.Less(t, indexOf(got, "base"), indexOf(got, "right"))
	assert.Equal(t, -1, indexOf(got, "top"), "root and self reference excluded")
}

func TestScan_TopologicalOrderProperty(t *testing.T) {
	s := newScanner()

	for _, root := range []any{top{}, left{}, right{}, alpha{}, opt{}} {
		order, err := s.Scan(reflect.TypeOf(root), metadata.IncludeOptional)
		require.NoError(t, err)

		pos := map[reflect.Type]int{}
		for i, d := range order {
			pos[d.Type()] = i
		}
		for i, d := range order {
			deps, err := d.Dependencies()
			require.NoError(t, err)
			for _, dep := range deps {
				if j, ok := pos[dep.Type()]; ok {
					// only a cycle edge may point forward
					if j > i {
						assert.Contains(t, []string{"alpha", "beta", "gamma"}, d.Name())
					}
				}
			}
		}
	}
}

func TestScan_CycleTerminates(t *testing.T) {
	s := newScanner()

	order, err := s.Scan(reflect.TypeOf(alpha{}), metadata.IgnoreOptional)
	require.NoError(t, err)
	assert.Equal(t, []string{"gamma", "beta"}, typeNames(order))

	seen := map[string]bool{}
	for _, n := range typeNames(order) {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestScan_ScanModes(t *testing.T) {
	s := newScanner()

	order, err := s.Scan(reflect.TypeOf(opt{}), metadata.IgnoreOptional)
	require.NoError(t, err)
	assert.Empty(t, order)

	order, err = s.Scan(reflect.TypeOf(opt{}), metadata.IncludeOptional)
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf"}, typeNames(order))
}

func TestScan_NonEntityIsConfigurationError(t *testing.T) {
	s := newScanner()

	_, err := s.Scan(reflect.TypeOf(plain{}), metadata.IgnoreOptional)
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
	assert.False(t, s.Contains(reflect.TypeOf(plain{}), metadata.IgnoreOptional))

	_, err = s.Scan(reflect.TypeOf(wrapsPlain{}), metadata.IgnoreOptional)
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
	assert.False(t, s.Contains(reflect.TypeOf(wrapsPlain{}), metadata.IgnoreOptional))
}

func TestScan_CacheReturnsCopies(t *testing.T) {
	s := newScanner()

	first, err := s.Scan(reflect.TypeOf(&top{}), metadata.IgnoreOptional)
	require.NoError(t, err)
	assert.True(t, s.Contains(reflect.TypeOf(top{}), metadata.IgnoreOptional))

	first[0] = nil
	second, err := s.Scan(reflect.TypeOf(top{}), metadata.IgnoreOptional)
	require.NoError(t, err)
	assert.NotNil(t, second[0])

	s.Reset()
	assert.False(t, s.Contains(reflect.TypeOf(top{}), metadata.IgnoreOptional))
	assert.Zero(t, s.Factory().Len())
}
