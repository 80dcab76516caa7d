package metadata

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Schema maps names to record types so callers outside Go code (CLI, HTTP)
// can address them.
type Schema struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewSchema() *Schema {
	return &Schema{
		types: make(map[string]reflect.Type),
	}
}

// Register adds record types by sample value (T or *T). The key is the
// lower-cased type name.
func (s *Schema) Register(samples ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range samples {
		t := TypeOf(v)
		s.types[strings.ToLower(t.Name())] = t
	}
}

// Lookup is case-insensitive.
func (s *Schema) Lookup(name string) (reflect.Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[strings.ToLower(name)]
	return t, ok
}

// Names returns registered names in sorted order.
func (s *Schema) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]string, 0, len(s.types))
	for name := range s.types {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
