// Package materialize turns a record type into an ordered, wired object graph:
// dependencies first (leaves before the types that require them), root last.
package materialize

import (
	"context"
	"fmt"
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appctx "seedgraph/internal/core/context"
	"seedgraph/internal/domain/build"
	"seedgraph/internal/domain/scan"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/logger"
)

var tracer = otel.Tracer("seedgraph/materialize")

// State of one materialization run. States are never revisited.
type State int

const (
	Scanning State = iota
	BuildingDependencies
	BuildingRoot
	Wiring
	Done
)

var stateNames = [...]string{
	Scanning:             "SCANNING",
	BuildingDependencies: "BUILDING_DEPENDENCIES",
	BuildingRoot:         "BUILDING_ROOT",
	Wiring:               "WIRING",
	Done:                 "DONE",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Item is one entry of the construction queue.
type Item struct {
	Descriptor *metadata.Descriptor
	Instance   reflect.Value
	// Reused is set when the instance came from the registry.
	Reused bool
}

// Result of one run.
type Result struct {
	Root reflect.Value
	// Items holds dependencies in dependency order, followed by the root.
	Items        []Item
	Warnings     []build.FieldWarning
	Associations []AssociationWarning
	// State is the last state the run reached.
	State State
}

// Instances returns the sequence as plain values.
func (r *Result) Instances() []any {
	out := make([]any, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, it.Instance.Interface())
	}
	return out
}

// Materializer is the orchestration core.
type Materializer struct {
	scanner *scan.Scanner
	builder *build.Builder
}

// New creates a materializer.
func New(scanner *scan.Scanner, builder *build.Builder) *Materializer {
	return &Materializer{scanner: scanner, builder: builder}
}

// Scanner returns the dependency scanner.
func (m *Materializer) Scanner() *scan.Scanner { return m.scanner }

// Materialize builds the graph for root using s. The session registry is
// updated in place, so a later run sharing it reuses the dependencies.
func (m *Materializer) Materialize(ctx context.Context, root reflect.Type, s *build.Session) (*Result, error) {
	root = metadata.Indirect(root)
	name := "<nil>"
	if root != nil {
		name = root.Name()
	}
	if appctx.GetRun(ctx) == nil {
		ctx = appctx.WithRun(ctx, appctx.NewRunContext(name))
	}

	ctx, span := tracer.Start(ctx, "materialize",
		trace.WithAttributes(
			attribute.String("seed.root", name),
			attribute.String("seed.scan_mode", s.Mode.String()),
		))
	defer span.End()

	res, err := m.run(ctx, root, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error(ctx, "materialization failed", "state", res.State.String(), "error", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("seed.items", len(res.Items)),
		attribute.Int("seed.warnings", len(res.Warnings)+len(res.Associations)),
	)
	return res, nil
}

func (m *Materializer) run(ctx context.Context, root reflect.Type, s *build.Session) (*Result, error) {
	res := &Result{State: Scanning}
	warnStart := len(s.Warnings)

	order, err := m.scanner.Scan(root, s.Mode)
	if err != nil {
		return res, err
	}

	res.State = BuildingDependencies
	for _, dep := range order {
		if held, ok := s.Registry.Get(dep.Type()); ok && !dep.AlwaysFresh() {
			res.Items = append(res.Items, Item{Descriptor: dep, Instance: held, Reused: true})
			continue
		}
		if _, err := m.buildInto(ctx, res, dep, s); err != nil {
			return res, fmt.Errorf("build dependency %s: %w", dep.Name(), err)
		}
	}

	res.State = BuildingRoot
	rootDesc, err := m.scanner.Factory().Describe(root, s.Mode)
	if err != nil {
		return res, err
	}
	inst, err := m.buildInto(ctx, res, rootDesc, s)
	if err != nil {
		return res, fmt.Errorf("build %s: %w", rootDesc.Name(), err)
	}
	res.Root = inst

	res.State = Wiring
	res.Associations = wire(ctx, wiringOrder(order, res.Items[:len(res.Items)-1]), s)

	res.Warnings = append(res.Warnings, s.Warnings[warnStart:]...)
	res.State = Done
	logger.Debug(ctx, "graph materialized", "items", len(res.Items), "warnings", len(res.Warnings))
	return res, nil
}

// buildInto builds d and appends it to res.Items. Entity instances built on
// the fly for its constructor parameters or fields go in first.
func (m *Materializer) buildInto(ctx context.Context, res *Result, d *metadata.Descriptor, s *build.Session) (reflect.Value, error) {
	mark := s.Mark()
	inst, err := m.builder.Build(ctx, d.Type(), s)
	if err != nil {
		return reflect.Value{}, err
	}
	// the last completed build is inst itself
	if built := s.BuiltSince(mark); len(built) > 1 {
		for _, b := range built[:len(built)-1] {
			res.Items = append(res.Items, Item{Descriptor: b.Descriptor, Instance: b.Instance})
		}
	}
	res.Items = append(res.Items, Item{Descriptor: d, Instance: inst})
	return inst, nil
}

// wiringOrder is the scanned order plus the types that were only built on
// the fly, so their back references get wired too.
func wiringOrder(order []*metadata.Descriptor, items []Item) []*metadata.Descriptor {
	seen := make(map[reflect.Type]bool, len(order))
	for _, d := range order {
		seen[d.Type()] = true
	}
	out := order
	for _, it := range items {
		if !seen[it.Descriptor.Type()] {
			seen[it.Descriptor.Type()] = true
			out = append(out[:len(out):len(out)], it.Descriptor)
		}
	}
	return out
}
