// Package synth produces scalar values for record elements.
package synth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"seedgraph/internal/core/id"
	"seedgraph/internal/core/types"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/numerator"
)

// Kind tells the builder what to do with an element.
type Kind int

const (
	// Value carries a ready value.
	Value Kind = iota
	// NeedsInstance asks the builder for a nested build of the element type.
	NeedsInstance
	// NeedsReference asks for the registry instance of an entity type, or nil.
	NeedsReference
	// Skip leaves the element untouched (identity, collections, maps).
	Skip
)

func (k Kind) String() string {
	switch k {
	case NeedsInstance:
		return "needs_instance"
	case NeedsReference:
		return "needs_reference"
	case Skip:
		return "skip"
	default:
		return "value"
	}
}

// Result of one synthesis request.
type Result struct {
	Kind  Kind
	Value reflect.Value
}

func valueOf(v reflect.Value) Result { return Result{Kind: Value, Value: v} }

// Synthesizer produces a value for one element.
type Synthesizer interface {
	ValueFor(ctx context.Context, el metadata.Element) (Result, error)
}

// Func adapts a function to Synthesizer.
type Func func(ctx context.Context, el metadata.Element) (Result, error)

func (f Func) ValueFor(ctx context.Context, el metadata.Element) (Result, error) {
	return f(ctx, el)
}

// Config tunes the default synthesizer.
type Config struct {
	// Seed makes the output reproducible; zero picks a random seed.
	Seed uint64
	// MinText / MaxText bound generated text when the element has no limits.
	MinText int
	MaxText int
	// Epoch is the first value of date sequences.
	Epoch time.Time
	// Sequences backs `seq` elements. Nil uses an in-memory service.
	Sequences *numerator.Service
	// SequenceOptions selects strict or cached allocation.
	SequenceOptions *numerator.Options
}

// Default is the stock synthesizer. Not safe for concurrent use.
type Default struct {
	rnd  *rand.Rand
	cfg  Config
	seqs *numerator.Service
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(types.Money{})
)

const letters = "abcdefghijklmnopqrstuvwxyz"

// New creates the default synthesizer.
func New(cfg Config) *Default {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	if cfg.MinText <= 0 {
		cfg.MinText = 6
	}
	if cfg.MaxText < cfg.MinText {
		cfg.MaxText = cfg.MinText + 10
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	seqs := cfg.Sequences
	if seqs == nil {
		seqs = numerator.New(nil)
	}
	return &Default{
		rnd:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		cfg:  cfg,
		seqs: seqs,
	}
}

// ValueFor implements Synthesizer.
func (d *Default) ValueFor(ctx context.Context, el metadata.Element) (Result, error) {
	m := el.Markers()
	if m.Identity || el.Kind().IsCollection() {
		return Result{Kind: Skip}, nil
	}
	if el.Kind().IsReference() {
		return Result{Kind: NeedsReference}, nil
	}
	return d.valueForType(ctx, el, el.Type())
}

func (d *Default) valueForType(ctx context.Context, el metadata.Element, t reflect.Type) (Result, error) {
	if consts := metadata.EnumConstants(t); len(consts) > 0 {
		c := consts[0]
		if c.Type() != t {
			c = c.Elem()
		}
		return valueOf(c), nil
	}

	switch t {
	case timeType:
		return d.timeValue(ctx, el)
	case uuidType:
		return valueOf(reflect.ValueOf(id.New())), nil
	case decimalType:
		cents := d.intBetween(el.Markers(), 100, 100_000)
		return valueOf(reflect.ValueOf(types.NewMoneyFromMinor(cents))), nil
	}

	m := el.Markers()
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		s, err := d.text(ctx, el)
		if err != nil {
			return Result{}, err
		}
		v.SetString(s)
	case reflect.Bool:
		v.SetBool(d.rnd.IntN(2) == 1)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := d.number(ctx, el)
		if err != nil {
			return Result{}, err
		}
		if v.OverflowInt(n) {
			n = int64(d.rnd.IntN(100) + 1)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := d.number(ctx, el)
		if err != nil {
			return Result{}, err
		}
		if n < 0 || v.OverflowUint(uint64(n)) {
			n = int64(d.rnd.IntN(100) + 1)
		}
		v.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		whole := d.intBetween(m, 1, 1000)
		v.SetFloat(float64(whole) + float64(d.rnd.IntN(100))/100)
	case reflect.Pointer:
		elem := t.Elem()
		if elem.Kind() == reflect.Struct && elem != timeType && elem != uuidType && elem != decimalType {
			if metadata.IsEntity(elem) {
				return Result{Kind: NeedsReference}, nil
			}
			return Result{Kind: NeedsInstance}, nil
		}
		inner, err := d.valueForType(ctx, el, elem)
		if err != nil || inner.Kind != Value {
			return inner, err
		}
		p := reflect.New(elem)
		p.Elem().Set(inner.Value)
		return valueOf(p), nil
	case reflect.Struct:
		return Result{Kind: NeedsInstance}, nil
	default:
		// slices, arrays, maps, interfaces, funcs, channels
		return Result{Kind: Skip}, nil
	}
	return valueOf(v), nil
}

func (d *Default) sequence(ctx context.Context, el metadata.Element) (int64, error) {
	key := numerator.Key(el.Owner().Name(), el.Name())
	n, err := d.seqs.Next(ctx, key, d.cfg.SequenceOptions)
	if err != nil {
		return 0, fmt.Errorf("sequence %s: %w", key, err)
	}
	return n, nil
}

func (d *Default) number(ctx context.Context, el metadata.Element) (int64, error) {
	if el.Markers().Sequence {
		return d.sequence(ctx, el)
	}
	return d.intBetween(el.Markers(), 1, 1000), nil
}

func (d *Default) intBetween(m metadata.Markers, lo, hi int64) int64 {
	if m.HasMin {
		lo = int64(m.Min)
	}
	if m.HasMax {
		hi = int64(m.Max)
	}
	if hi < lo {
		hi = lo
	}
	return lo + d.rnd.Int64N(hi-lo+1)
}

func (d *Default) timeValue(ctx context.Context, el metadata.Element) (Result, error) {
	if el.Markers().Sequence {
		n, err := d.sequence(ctx, el)
		if err != nil {
			return Result{}, err
		}
		return valueOf(reflect.ValueOf(d.cfg.Epoch.AddDate(0, 0, int(n)))), nil
	}
	offset := time.Duration(d.rnd.Int64N(int64(365*24*time.Hour/time.Second))) * time.Second
	return valueOf(reflect.ValueOf(d.cfg.Epoch.Add(offset))), nil
}

// text honors min/max length and the email hint. Sequence text is
// PREFIX-00001 with the element name as prefix.
func (d *Default) text(ctx context.Context, el metadata.Element) (string, error) {
	m := el.Markers()
	lo, hi := d.cfg.MinText, d.cfg.MaxText
	if m.HasMin {
		lo = m.Min
	}
	if m.HasMax {
		hi = m.Max
		if lo > hi {
			lo = hi
		}
	}
	if hi < lo {
		hi = lo
	}

	var s string
	switch {
	case m.Sequence:
		n, err := d.sequence(ctx, el)
		if err != nil {
			return "", err
		}
		s = numerator.Format{Prefix: strings.ToUpper(el.Name())}.Apply(n)
	case m.Email:
		e, err := d.email(lo, hi)
		if err != nil {
			return "", err
		}
		s = e
	default:
		s = d.letters(lo + d.rnd.IntN(hi-lo+1))
	}

	if m.HasMax && len(s) > m.Max {
		s = s[:m.Max]
	}
	return s, nil
}

// shortestEmail is the length of "a@b.io".
const shortestEmail = 6

// email returns an address between lo and hi characters long. Below
// shortestEmail no address fits and the element is reported instead.
func (d *Default) email(lo, hi int) (string, error) {
	if hi < shortestEmail {
		return "", fmt.Errorf("max length %d is too short for an email address", hi)
	}
	n := max(lo, shortestEmail, min(hi, 24))
	domain := "@example.com"
	if n-len(domain) < 1 {
		domain = "@" + d.letters(n-5) + ".io"
	}
	return d.letters(n-len(domain)) + domain, nil
}

func (d *Default) letters(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(letters[d.rnd.IntN(len(letters))])
	}
	return b.String()
}
