package metadata

import (
	"reflect"
	"strconv"
	"strings"
)

// TagName is the struct tag that carries structural markers.
const TagName = "seed"

// ColumnTagName is the struct tag that carries the persistence column name.
const ColumnTagName = "db"

// Markers is the parsed form of a `seed` struct tag.
//
//	ID   uuid.UUID `db:"id" seed:"id"`
//	Cat  *Category `seed:"ref,join=category_id"`
//	Tags []*Tag    `seed:"m2m,table=item_tags"`
type Markers struct {
	Identity   bool
	Required   bool
	Ref        bool
	Optional   bool
	Join       string
	OneToMany  bool
	ManyToMany bool
	Table      string
	Email      bool
	Sequence   bool
	Transient  bool

	Min    int
	Max    int
	HasMin bool
	HasMax bool
}

// ParseMarkers parses a `seed` tag value. Unknown options are ignored.
func ParseMarkers(tag string) Markers {
	var m Markers
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return m
	}
	if tag == "-" {
		m.Transient = true
		return m
	}

	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		key, value, _ := strings.Cut(opt, "=")
		switch strings.ToLower(key) {
		case "id":
			m.Identity = true
		case "required":
			m.Required = true
		case "ref":
			m.Ref = true
		case "optional":
			m.Optional = true
		case "join":
			m.Join = value
		case "o2m":
			m.OneToMany = true
		case "m2m":
			m.ManyToMany = true
		case "table":
			m.Table = value
		case "email":
			m.Email = true
		case "seq":
			m.Sequence = true
		case "min":
			if n, err := strconv.Atoi(value); err == nil {
				m.Min, m.HasMin = n, true
			}
		case "max":
			if n, err := strconv.Atoi(value); err == nil {
				m.Max, m.HasMax = n, true
			}
		}
	}
	return m
}

// columnName returns the `db` tag name, or "" when the field is not a column.
func columnName(tag reflect.StructTag) string {
	col := tag.Get(ColumnTagName)
	if col == "-" {
		return ""
	}
	name, _, _ := strings.Cut(col, ",")
	return name
}

// RelationshipKind classifies an element once, at descriptor-build time.
type RelationshipKind int

const (
	Scalar RelationshipKind = iota
	RequiredReference
	OptionalReference
	OneToManyBackReference
	ManyToManyOwning
	ManyToManyInverse
)

var kindNames = [...]string{
	Scalar:                 "scalar",
	RequiredReference:      "required_reference",
	OptionalReference:      "optional_reference",
	OneToManyBackReference: "one_to_many",
	ManyToManyOwning:       "many_to_many_owning",
	ManyToManyInverse:      "many_to_many_inverse",
}

func (k RelationshipKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsReference reports whether the kind is a single-valued reference.
func (k RelationshipKind) IsReference() bool {
	return k == RequiredReference || k == OptionalReference
}

// IsCollection reports whether the kind is a collection-valued association.
func (k RelationshipKind) IsCollection() bool {
	return k == OneToManyBackReference || k == ManyToManyOwning || k == ManyToManyInverse
}

// Classify derives the relationship kind from markers.
// A `ref` without `optional` counts as required only on the owning side.
func Classify(m Markers) RelationshipKind {
	switch {
	case m.OneToMany:
		return OneToManyBackReference
	case m.ManyToMany && m.Table != "":
		return ManyToManyOwning
	case m.ManyToMany:
		return ManyToManyInverse
	case m.Required:
		return RequiredReference
	case m.Ref && !m.Optional && m.Join != "":
		return RequiredReference
	case m.Ref:
		return OptionalReference
	}
	return Scalar
}

// ScanMode controls whether optional single-valued references are structural.
type ScanMode int

const (
	// IgnoreOptional treats a reference as required only when it is non-optional
	// and sits on the owning side.
	IgnoreOptional ScanMode = iota
	// IncludeOptional treats every owning-side reference as required.
	IncludeOptional
)

func (m ScanMode) String() string {
	if m == IncludeOptional {
		return "include-optional"
	}
	return "ignore-optional"
}

// ParseScanMode accepts "ignore-optional" / "include-optional" (and "a"/"b").
func ParseScanMode(s string) (ScanMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "a", "ignore-optional", "ignore_optional":
		return IgnoreOptional, true
	case "b", "include-optional", "include_optional":
		return IncludeOptional, true
	}
	return IgnoreOptional, false
}
