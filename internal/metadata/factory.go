package metadata

import (
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"seedgraph/internal/core/apperror"
)

// DefaultCacheSize bounds the descriptor cache when no size is configured.
const DefaultCacheSize = 100

// FactoryConfig configures a descriptor Factory.
type FactoryConfig struct {
	// CacheSize is the LRU capacity in (type, scan mode) entries.
	CacheSize int
}

type descKey struct {
	typ  reflect.Type
	mode ScanMode
}

// Factory builds and memoizes descriptors per (type, scan mode).
// Safe for concurrent use; each key is computed at most once at a time.
type Factory struct {
	cache *lru.Cache[descKey, *Descriptor]
	group singleflight.Group
	ctors *Constructors
}

// NewFactory creates a factory. A nil catalog means no registered constructors.
func NewFactory(cfg FactoryConfig, ctors *Constructors) *Factory {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[descKey, *Descriptor](size)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	if ctors == nil {
		ctors = NewConstructors()
	}
	return &Factory{cache: cache, ctors: ctors}
}

// Constructors returns the catalog the factory reads constructors from.
func (f *Factory) Constructors() *Constructors { return f.ctors }

// Describe returns the descriptor of t under mode. Pointer types are
// normalized to their element type.
func (f *Factory) Describe(t reflect.Type, mode ScanMode) (*Descriptor, error) {
	t = Indirect(t)
	if t == nil || t.Kind() != reflect.Struct {
		name := "<nil>"
		if t != nil {
			name = t.String()
		}
		return nil, apperror.NewConfiguration(name, "only struct types can be described")
	}

	key := descKey{typ: t, mode: mode}
	if d, ok := f.cache.Get(key); ok {
		return d, nil
	}

	v, _, _ := f.group.Do(t.PkgPath()+"."+t.String()+"|"+mode.String(), func() (any, error) {
		if d, ok := f.cache.Get(key); ok {
			return d, nil
		}
		d := newDescriptor(f, t, mode)
		f.cache.Add(key, d)
		return d, nil
	})
	d := v.(*Descriptor)
	if d.typ != t {
		// two distinct types printed the same name
		d = newDescriptor(f, t, mode)
		f.cache.Add(key, d)
	}
	return d, nil
}

// Len returns the number of cached descriptors.
func (f *Factory) Len() int { return f.cache.Len() }

// Reset drops every cached descriptor.
func (f *Factory) Reset() { f.cache.Purge() }
