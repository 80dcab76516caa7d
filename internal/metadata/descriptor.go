package metadata

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"seedgraph/internal/core/apperror"
)

// AccessStrategy is decided once per record type.
type AccessStrategy int

const (
	// FieldAccess enumerates exported, non-transient struct fields.
	FieldAccess AccessStrategy = iota
	// PropertyAccess enumerates exported X()/SetX(v) method pairs.
	PropertyAccess
)

func (a AccessStrategy) String() string {
	if a == PropertyAccess {
		return "property"
	}
	return "field"
}

// Descriptor is the relationship metadata of one record type under one scan mode.
// It is immutable once built; derived sets are computed lazily and cached.
type Descriptor struct {
	typ      reflect.Type
	mode     ScanMode
	factory  *Factory
	access   AccessStrategy
	elements []Element
	byName   map[string]Element
	identity Element
	entity   bool
	table    string
	fresh    bool
	ctors    []Constructor
	consts   []reflect.Value

	depsOnce sync.Once
	deps     []*Descriptor
	depsErr  error

	assocOnce  sync.Once
	backRefs   []Element
	manyToMany []Element
}

// Type returns the record type.
func (d *Descriptor) Type() reflect.Type { return d.typ }

// Name returns the record type name.
func (d *Descriptor) Name() string { return d.typ.Name() }

// Mode returns the scan mode this descriptor was built for.
func (d *Descriptor) Mode() ScanMode { return d.mode }

// Factory returns the factory that built the descriptor.
func (d *Descriptor) Factory() *Factory { return d.factory }

// Access returns the element discovery strategy.
func (d *Descriptor) Access() AccessStrategy { return d.access }

// IsEntity reports whether the type carries the entity marker.
func (d *Descriptor) IsEntity() bool { return d.entity }

// TableName returns the table declared by the entity marker.
func (d *Descriptor) TableName() string { return d.table }

// AlwaysFresh reports whether instances must never be reused from a registry.
func (d *Descriptor) AlwaysFresh() bool { return d.fresh }

// Elements returns the settable elements sorted by name.
func (d *Descriptor) Elements() []Element { return d.elements }

// Element returns the element with the given simple name.
func (d *Descriptor) Element(name string) (Element, bool) {
	el, ok := d.byName[name]
	return el, ok
}

// Identity returns the identity element, if any.
func (d *Descriptor) Identity() Element { return d.identity }

// Constructors returns the registered constructors in registration order.
func (d *Descriptor) Constructors() []Constructor { return d.ctors }

// Constants returns the closed set of legal values, if the type declares one.
func (d *Descriptor) Constants() []reflect.Value { return d.consts }

// IsEnumerated reports whether the type is a closed enumeration.
func (d *Descriptor) IsEnumerated() bool { return len(d.consts) > 0 }

// Dependencies returns the descriptors of the types this type structurally
// requires. The descriptor's own type is never included.
func (d *Descriptor) Dependencies() ([]*Descriptor, error) {
	d.depsOnce.Do(func() {
		seen := make(map[reflect.Type]bool)
		for _, el := range d.elements {
			if !d.requires(el) {
				continue
			}
			target := Target(el)
			if target == d.typ || seen[target] {
				continue
			}
			if target.Kind() != reflect.Struct {
				d.depsErr = apperror.NewConfiguration(d.Name(), "reference "+el.Name()+" does not point at a struct type").
					WithDetail("field", el.Name())
				return
			}
			dep, err := d.factory.Describe(target, d.mode)
			if err != nil {
				d.depsErr = err
				return
			}
			seen[target] = true
			d.deps = append(d.deps, dep)
		}
	})
	return d.deps, d.depsErr
}

// requires applies the scan-mode policy to one element.
func (d *Descriptor) requires(el Element) bool {
	if el.Variant() == ParamBacked {
		return false
	}
	m := el.Markers()
	if m.Required {
		return true
	}
	if !m.Ref || m.Join == "" {
		return false
	}
	if d.mode == IncludeOptional {
		return true
	}
	return !m.Optional
}

// BackReferences returns the one-to-many elements.
func (d *Descriptor) BackReferences() []Element {
	d.computeAssociations()
	return d.backRefs
}

// ManyToMany returns the owning-side many-to-many elements.
func (d *Descriptor) ManyToMany() []Element {
	d.computeAssociations()
	return d.manyToMany
}

func (d *Descriptor) computeAssociations() {
	d.assocOnce.Do(func() {
		for _, el := range d.elements {
			switch el.Kind() {
			case OneToManyBackReference:
				d.backRefs = append(d.backRefs, el)
			case ManyToManyOwning:
				d.manyToMany = append(d.manyToMany, el)
			}
		}
	})
}

// --- discovery ---

func newDescriptor(f *Factory, t reflect.Type, mode ScanMode) *Descriptor {
	d := &Descriptor{
		typ:     t,
		mode:    mode,
		factory: f,
		entity:  IsEntity(t),
		fresh:   isAlwaysFresh(t),
		consts:  EnumConstants(t),
		byName:  make(map[string]Element),
	}
	if d.entity {
		d.table = TableNameOf(t)
	}
	if f != nil {
		d.ctors = f.ctors.For(t)
	}

	if !hasFieldIdentity(t, map[reflect.Type]bool{}) {
		d.access = PropertyAccess
		d.collectProperties(t)
	}
	// types without an exported identity and without accessor pairs are
	// plain value objects; they fall back to their exported fields
	if d.access == FieldAccess || len(d.elements) == 0 {
		d.access = FieldAccess
		d.collectFields(t, nil, map[reflect.Type]bool{})
	}

	sort.Slice(d.elements, func(i, j int) bool {
		return d.elements[i].Name() < d.elements[j].Name()
	})
	for _, el := range d.elements {
		if el.Markers().Identity && d.identity == nil {
			d.identity = el
		}
	}
	return d
}

// hasFieldIdentity reports whether an exported field of t, or of a type it
// embeds, carries the identity marker.
func hasFieldIdentity(t reflect.Type, visiting map[reflect.Type]bool) bool {
	if visiting[t] {
		return false
	}
	visiting[t] = true
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			if et := Indirect(f.Type); et.Kind() == reflect.Struct && hasFieldIdentity(et, visiting) {
				return true
			}
			continue
		}
		if f.IsExported() && ParseMarkers(f.Tag.Get(TagName)).Identity {
			return true
		}
	}
	return false
}

// collectFields walks own fields first, then embedded structs; an outer name
// shadows an embedded one.
func (d *Descriptor) collectFields(t reflect.Type, prefix []int, visiting map[reflect.Type]bool) {
	if visiting[t] {
		return
	}
	visiting[t] = true

	var embedded []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && Indirect(f.Type).Kind() == reflect.Struct {
			embedded = append(embedded, f)
			continue
		}
		if !f.IsExported() {
			continue
		}
		m := ParseMarkers(f.Tag.Get(TagName))
		if m.Transient {
			continue
		}
		if _, taken := d.byName[f.Name]; taken {
			continue
		}
		el := &fieldElement{
			baseElement: newBase(f.Name, f.Type, d.typ, f.Tag),
			index:       appendIndex(prefix, i),
		}
		d.byName[f.Name] = el
		d.elements = append(d.elements, el)
	}

	for _, f := range embedded {
		if ParseMarkers(f.Tag.Get(TagName)).Transient {
			continue
		}
		d.collectFields(Indirect(f.Type), appendIndex(prefix, f.Index[0]), visiting)
	}
}

func appendIndex(prefix []int, i int) []int {
	out := make([]int, len(prefix), len(prefix)+1)
	copy(out, prefix)
	return append(out, i)
}

// collectProperties enumerates X()/SetX(v) pairs on *T. Markers come from the
// struct field whose name matches X case-insensitively.
func (d *Descriptor) collectProperties(t reflect.Type) {
	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		setter := pt.Method(i)
		name, ok := strings.CutPrefix(setter.Name, "Set")
		if !ok || name == "" || !unicode.IsUpper(rune(name[0])) {
			continue
		}
		st := setter.Type
		if st.NumIn() != 2 || st.NumOut() > 1 || (st.NumOut() == 1 && st.Out(0) != errorIface) {
			continue
		}
		getter, ok := pt.MethodByName(name)
		if !ok {
			continue
		}
		gt := getter.Type
		if gt.NumIn() != 1 || gt.NumOut() != 1 || gt.Out(0) != st.In(1) {
			continue
		}

		var tag reflect.StructTag
		if f, found := backingField(t, name, map[reflect.Type]bool{}); found {
			tag = f.Tag
		}
		if ParseMarkers(tag.Get(TagName)).Transient {
			continue
		}
		el := &propertyElement{
			baseElement: newBase(name, st.In(1), d.typ, tag),
			getter:      name,
			setter:      setter.Name,
		}
		d.byName[name] = el
		d.elements = append(d.elements, el)
	}
}

func backingField(t reflect.Type, name string, visiting map[reflect.Type]bool) (reflect.StructField, bool) {
	if visiting[t] {
		return reflect.StructField{}, false
	}
	visiting[t] = true
	var embedded []reflect.Type
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && Indirect(f.Type).Kind() == reflect.Struct {
			embedded = append(embedded, Indirect(f.Type))
			continue
		}
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	for _, et := range embedded {
		if f, ok := backingField(et, name, visiting); ok {
			return f, true
		}
	}
	return reflect.StructField{}, false
}
