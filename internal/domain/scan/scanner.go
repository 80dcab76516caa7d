// Package scan orders the structural dependencies of a record type.
package scan

import (
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/metadata"
)

type scanKey struct {
	typ  reflect.Type
	mode metadata.ScanMode
}

// Scanner resolves dependency orders and memoizes them per (root, scan mode).
// Safe for concurrent use.
type Scanner struct {
	factory *metadata.Factory
	cache   *lru.Cache[scanKey, []*metadata.Descriptor]
	group   singleflight.Group
}

// New creates a scanner backed by factory. cacheSize <= 0 uses the
// factory default.
func New(factory *metadata.Factory, cacheSize int) *Scanner {
	if cacheSize <= 0 {
		cacheSize = metadata.DefaultCacheSize
	}
	cache, err := lru.New[scanKey, []*metadata.Descriptor](cacheSize)
	if err != nil {
		panic(err)
	}
	return &Scanner{factory: factory, cache: cache}
}

// Factory returns the descriptor factory the scanner reads from.
func (s *Scanner) Factory() *metadata.Factory { return s.factory }

// Scan returns the dependencies of root, leaves first, each type appearing
// before any type that requires it. The root itself is excluded.
// Failed scans leave no cache entry.
func (s *Scanner) Scan(root reflect.Type, mode metadata.ScanMode) ([]*metadata.Descriptor, error) {
	root = metadata.Indirect(root)
	if !metadata.IsEntity(root) {
		name := "<nil>"
		if root != nil {
			name = root.String()
		}
		return nil, apperror.NewConfiguration(name, "only entity-marked types are scannable")
	}

	key := scanKey{typ: root, mode: mode}
	if order, ok := s.cache.Get(key); ok {
		return clone(order), nil
	}

	v, err, _ := s.group.Do(root.PkgPath()+"."+root.String()+"|"+mode.String(), func() (any, error) {
		if order, ok := s.cache.Get(key); ok {
			return order, nil
		}
		order, err := s.resolve(root, mode)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, order)
		return order, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]*metadata.Descriptor)), nil
}

// Contains reports whether a scan result for (root, mode) is cached.
func (s *Scanner) Contains(root reflect.Type, mode metadata.ScanMode) bool {
	return s.cache.Contains(scanKey{typ: metadata.Indirect(root), mode: mode})
}

// Reset drops cached scan results and the descriptors they were built from.
func (s *Scanner) Reset() {
	s.cache.Purge()
	s.factory.Reset()
}

// resolve runs a depth-first post-order walk. A node is marked on entry, so a
// type met again through a longer cycle is treated as resolved.
func (s *Scanner) resolve(root reflect.Type, mode metadata.ScanMode) ([]*metadata.Descriptor, error) {
	rootDesc, err := s.factory.Describe(root, mode)
	if err != nil {
		return nil, err
	}

	visited := map[reflect.Type]bool{root: true}
	order := make([]*metadata.Descriptor, 0)

	var visit func(d *metadata.Descriptor) error
	visit = func(d *metadata.Descriptor) error {
		deps, err := d.Dependencies()
		if err != nil {
			return err
		}
		for _, dep := range deps {
			if visited[dep.Type()] {
				continue
			}
			if !dep.IsEntity() {
				return apperror.NewConfiguration(dep.Type().String(), "only entity-marked types are scannable").
					WithDetail("requiredBy", d.Name())
			}
			visited[dep.Type()] = true
			if err := visit(dep); err != nil {
				return err
			}
			order = append(order, dep)
		}
		return nil
	}

	if err := visit(rootDesc); err != nil {
		return nil, err
	}
	return order, nil
}

func clone(in []*metadata.Descriptor) []*metadata.Descriptor {
	out := make([]*metadata.Descriptor, len(in))
	copy(out, in)
	return out
}
