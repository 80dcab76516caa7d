// Package numerator hands out monotonically increasing values for sequence
// elements. Values are reserved through an Allocator, either in process
// memory or in a shared table so that several seeding processes never
// produce the same number.
package numerator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Strategy selects how values are reserved.
type Strategy int

const (
	// StrategyStrict reserves one value per call. No gaps.
	StrategyStrict Strategy = iota

	// StrategyCached reserves a range and serves it from memory. Values left
	// in the range when the process exits are skipped.
	StrategyCached
)

// DefaultRangeSize is the range reserved by StrategyCached when
// Options.RangeSize is not set.
const DefaultRangeSize = 50

type Options struct {
	Strategy  Strategy
	RangeSize int64
}

// DefaultOptions returns strict allocation.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Allocator reserves n values for key and returns the last reserved value.
// The reserved range is (last-n, last].
type Allocator interface {
	Reserve(ctx context.Context, key string, n int64) (int64, error)
	// Set makes value the last reserved value of key.
	Set(ctx context.Context, key string, value int64) error
}

// Key names the sequence of one element, e.g. "LineItem.Number".
func Key(owner, element string) string {
	return owner + "." + element
}

var errNilService = errors.New("numerator service is not initialized")

type window struct {
	next, last int64 // next value to hand out, last reserved value
}

func (w *window) empty() bool { return w.next == 0 || w.next > w.last }

// Service hands out sequence values. Safe for concurrent use.
type Service struct {
	alloc Allocator

	mu      sync.Mutex
	windows map[string]*window
}

// New creates a service over alloc. A nil alloc keeps sequences in memory.
func New(alloc Allocator) *Service {
	if alloc == nil {
		alloc = NewMemoryAllocator()
	}
	return &Service{alloc: alloc, windows: make(map[string]*window)}
}

// Next returns the next value of key. A nil opts means strict allocation.
func (s *Service) Next(ctx context.Context, key string, opts *Options) (int64, error) {
	if s == nil {
		return 0, errNilService
	}
	if opts == nil || opts.Strategy != StrategyCached {
		n, err := s.alloc.Reserve(ctx, key, 1)
		if err != nil {
			return 0, fmt.Errorf("sequence %s: %w", key, err)
		}
		return n, nil
	}

	size := opts.RangeSize
	if size <= 0 {
		size = DefaultRangeSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &window{}
		s.windows[key] = w
	}
	if w.empty() {
		last, err := s.alloc.Reserve(ctx, key, size)
		if err != nil {
			return 0, fmt.Errorf("sequence %s: reserve %d: %w", key, size, err)
		}
		w.next, w.last = last-size+1, last
	}
	n := w.next
	w.next++
	return n, nil
}

// Reset makes value the last issued value of key; the next one is value+1.
// Any cached range of key is dropped.
func (s *Service) Reset(ctx context.Context, key string, value int64) error {
	if s == nil {
		return errNilService
	}
	s.mu.Lock()
	delete(s.windows, key)
	s.mu.Unlock()
	return s.alloc.Set(ctx, key, value)
}

// Format renders sequence values as PREFIX-00042.
type Format struct {
	Prefix string
	Width  int // zero means 5
}

func (f Format) Apply(n int64) string {
	width := f.Width
	if width <= 0 {
		width = 5
	}
	if f.Prefix == "" {
		return fmt.Sprintf("%0*d", width, n)
	}
	return fmt.Sprintf("%s-%0*d", f.Prefix, width, n)
}

// Parse extracts the numeric part of a formatted value.
func Parse(formatted string) (int64, bool) {
	digits := formatted
	if i := strings.LastIndexByte(formatted, '-'); i >= 0 {
		digits = formatted[i+1:]
	}
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// MemoryAllocator keeps sequences in process memory.
type MemoryAllocator struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryAllocator() *MemoryAllocator {
	return &MemoryAllocator{values: make(map[string]int64)}
}

func (m *MemoryAllocator) Reserve(_ context.Context, key string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("reserve %q: non-positive size %d", key, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] += n
	return m.values[key], nil
}

func (m *MemoryAllocator) Set(_ context.Context, key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
