// Package fixture is the entry point for tests: it wires the descriptor
// factory, scanner, builder and materializer, and optionally persists each
// generated graph.
//
//	b, _ := fixture.New(fixture.WithSink(store, txm))
//	item, err := fixture.One[demo.LineItem](ctx, b)
package fixture

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/core/tx"
	"seedgraph/internal/domain/build"
	"seedgraph/internal/domain/holder"
	"seedgraph/internal/domain/materialize"
	"seedgraph/internal/domain/persist"
	"seedgraph/internal/domain/scan"
	"seedgraph/internal/domain/synth"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/numerator"
)

// Option configures a Builder.
type Option func(*Builder) error

// Builder generates fixture graphs. Runs share one registry, so dependencies
// built by one call are reused by the next. Safe for concurrent use; runs are
// serialized.
type Builder struct {
	mu sync.Mutex

	mode      metadata.ScanMode
	cacheSize int
	ctors     *metadata.Constructors
	synthCfg  synth.Config
	synth     synth.Synthesizer
	overrides *build.Overrides
	registry  *holder.Registry
	seed      []any
	snapshots []holder.Snapshot

	sink  persist.Sink
	txm   tx.Manager
	hooks *persist.HookRegistry

	scanner      *scan.Scanner
	factory      *metadata.Factory
	materializer *materialize.Materializer
	orchestrator *persist.Orchestrator
}

// WithScanMode selects which optional references are treated as dependencies.
func WithScanMode(mode metadata.ScanMode) Option {
	return func(b *Builder) error {
		b.mode = mode
		return nil
	}
}

// WithCacheSize bounds the descriptor and scan caches.
func WithCacheSize(n int) Option {
	return func(b *Builder) error {
		if n < 0 {
			return apperror.NewValidation(fmt.Sprintf("cache size must not be negative, got %d", n))
		}
		b.cacheSize = n
		return nil
	}
}

// WithScanner shares the descriptor and scan caches of another builder. The
// scanner's factory replaces WithConstructors and WithCacheSize; the registry
// stays private to the new builder.
func WithScanner(sc *scan.Scanner) Option {
	return func(b *Builder) error {
		if sc == nil {
			return apperror.NewValidation("scanner must not be nil")
		}
		b.scanner = sc
		return nil
	}
}

// WithConstructors sets the constructor catalog.
func WithConstructors(c *metadata.Constructors) Option {
	return func(b *Builder) error {
		b.ctors = c
		return nil
	}
}

// WithRandomSeed makes generated values reproducible.
func WithRandomSeed(seed uint64) Option {
	return func(b *Builder) error {
		b.synthCfg.Seed = seed
		return nil
	}
}

// WithSequences backs `seq` elements with svc, e.g. a table-backed allocator.
func WithSequences(svc *numerator.Service, opts *numerator.Options) Option {
	return func(b *Builder) error {
		b.synthCfg.Sequences = svc
		b.synthCfg.SequenceOptions = opts
		return nil
	}
}

// WithSynthesizer replaces the default value synthesizer.
func WithSynthesizer(s synth.Synthesizer) Option {
	return func(b *Builder) error {
		b.synth = s
		return nil
	}
}

// WithSeed pre-loads the registry with instances that later runs reuse.
func WithSeed(instances ...any) Option {
	return func(b *Builder) error {
		for _, inst := range instances {
			v := reflect.ValueOf(inst)
			if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
				return apperror.NewValidation(fmt.Sprintf("seed instance must be a non-nil struct pointer, got %T", inst))
			}
		}
		b.seed = append(b.seed, instances...)
		return nil
	}
}

// WithSnapshot pre-loads the registry with the instances of a snapshot taken
// from another builder's registry.
func WithSnapshot(snap holder.Snapshot) Option {
	return func(b *Builder) error {
		b.snapshots = append(b.snapshots, snap)
		return nil
	}
}

// WithRegistry shares an existing registry.
func WithRegistry(reg *holder.Registry) Option {
	return func(b *Builder) error {
		b.registry = reg
		return nil
	}
}

// WithFieldValue fixes the value of one element of the type of sample.
func WithFieldValue(sample any, field string, value any) Option {
	return func(b *Builder) error {
		t, err := typeOf(sample)
		if err != nil {
			return err
		}
		b.overrides.SetField(t, field, value)
		return nil
	}
}

// WithParamValue fixes constructor parameter pos of the type of sample.
func WithParamValue(sample any, pos int, value any) Option {
	return func(b *Builder) error {
		t, err := typeOf(sample)
		if err != nil {
			return err
		}
		if pos < 0 {
			return apperror.NewValidation(fmt.Sprintf("parameter position must not be negative, got %d", pos))
		}
		b.overrides.SetParam(t, pos, value)
		return nil
	}
}

// WithSink persists every generated graph through sink. A nil tx manager
// uses the sink itself when it implements tx.Manager.
func WithSink(sink persist.Sink, txm tx.Manager) Option {
	return func(b *Builder) error {
		if sink == nil {
			return apperror.NewValidation("sink must not be nil")
		}
		if txm == nil {
			txm, _ = sink.(tx.Manager)
		}
		b.sink, b.txm = sink, txm
		return nil
	}
}

// WithHooks adds persistence lifecycle hooks.
func WithHooks(h *persist.HookRegistry) Option {
	return func(b *Builder) error {
		b.hooks.Merge(h)
		return nil
	}
}

// New creates a fixture builder.
func New(opts ...Option) (*Builder, error) {
	b := &Builder{
		mode:      metadata.IgnoreOptional,
		overrides: build.NewOverrides(),
		hooks:     persist.NewHookRegistry(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.registry == nil {
		b.registry = holder.New()
	}
	for _, snap := range b.snapshots {
		b.registry.Seed(snap)
	}
	for _, inst := range b.seed {
		b.registry.PutValue(inst)
	}
	if b.synth == nil {
		b.synth = synth.New(b.synthCfg)
	}

	if b.scanner == nil {
		b.scanner = scan.New(metadata.NewFactory(metadata.FactoryConfig{CacheSize: b.cacheSize}, b.ctors), b.cacheSize)
	}
	b.factory = b.scanner.Factory()
	b.materializer = materialize.New(b.scanner, build.New(b.factory))
	if b.sink != nil {
		b.orchestrator = persist.New(b.sink, b.txm)
		b.orchestrator.Hooks().Merge(b.hooks)
	}
	return b, nil
}

// Registry returns the shared instance registry.
func (b *Builder) Registry() *holder.Registry { return b.registry }

// Factory returns the descriptor factory.
func (b *Builder) Factory() *metadata.Factory { return b.factory }

// Scanner returns the dependency scanner.
func (b *Builder) Scanner() *scan.Scanner { return b.scanner }

// Persistent reports whether generated graphs are persisted.
func (b *Builder) Persistent() bool { return b.orchestrator != nil }

// Generate materializes a graph rooted at t and persists it when a sink is
// configured. t may be a struct type, a pointer type, or a sample value.
func (b *Builder) Generate(ctx context.Context, t any) (*materialize.Result, error) {
	root, err := typeOf(t)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s := build.NewSession(b.mode, b.registry, b.synth, b.overrides)
	res, err := b.materializer.Materialize(ctx, root, s)
	if err != nil {
		return nil, err
	}
	if b.orchestrator == nil {
		return res, nil
	}

	items, err := b.orchestrator.Persist(ctx, res.Items)
	if err != nil {
		return nil, err
	}
	res.Items = items
	return res, nil
}

// Cleanup deletes the persisted rows of t and of every type it depends on,
// keeping the excluded identities.
func (b *Builder) Cleanup(ctx context.Context, t any, exclude ...any) (int64, error) {
	if b.orchestrator == nil {
		return 0, apperror.NewValidation("cleanup requires a sink")
	}
	root, err := typeOf(t)
	if err != nil {
		return 0, err
	}
	order, err := b.materializer.Scanner().Scan(root, b.mode)
	if err != nil {
		return 0, err
	}
	rootDesc, err := b.factory.Describe(root, b.mode)
	if err != nil {
		return 0, err
	}
	return b.orchestrator.Cleanup(ctx, append(order, rootDesc), exclude...)
}

// One generates a graph rooted at T and returns the root.
func One[T any](ctx context.Context, b *Builder) (*T, error) {
	res, err := b.Generate(ctx, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	root, ok := res.Root.Interface().(*T)
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("root is %s, want *%s", res.Root.Type(), reflect.TypeFor[T]()))
	}
	return root, nil
}

// Many generates n graphs rooted at T.
func Many[T any](ctx context.Context, b *Builder, n int) ([]*T, error) {
	out := make([]*T, 0, n)
	for i := 0; i < n; i++ {
		v, err := One[T](ctx, b)
		if err != nil {
			return nil, fmt.Errorf("generate %d of %d: %w", i+1, n, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func typeOf(v any) (reflect.Type, error) {
	var t reflect.Type
	switch x := v.(type) {
	case nil:
		return nil, apperror.NewValidation("type must not be nil")
	case reflect.Type:
		t = x
	default:
		t = reflect.TypeOf(v)
	}
	return metadata.Indirect(t), nil
}
