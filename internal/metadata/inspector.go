package metadata

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldType is the coarse data type shown to API clients.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeInteger    FieldType = "integer"
	TypeNumber     FieldType = "number" // float/decimal
	TypeBoolean    FieldType = "boolean"
	TypeDate       FieldType = "date"
	TypeUUID       FieldType = "uuid"
	TypeReference  FieldType = "reference"
	TypeCollection FieldType = "collection"
	TypeEnum       FieldType = "enum"
	TypeObject     FieldType = "object"
)

// EntityDef is the JSON view of a descriptor.
type EntityDef struct {
	Name         string     `json:"name"`
	Table        string     `json:"table,omitempty"`
	Entity       bool       `json:"entity"`
	Access       string     `json:"access"`
	ScanMode     string     `json:"scanMode"`
	AlwaysFresh  bool       `json:"alwaysFresh,omitempty"`
	Constructors []int      `json:"constructors,omitempty"` // arities
	Fields       []FieldDef `json:"fields"`
	Dependencies []string   `json:"dependencies"`
	ScanOrder    []string   `json:"scanOrder,omitempty"`
}

// FieldDef describes one element.
type FieldDef struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	GoType    string    `json:"goType"`
	Kind      string    `json:"kind"`
	Column    string    `json:"column,omitempty"`
	Target    string    `json:"target,omitempty"`
	Table     string    `json:"table,omitempty"`
	Identity  bool      `json:"identity,omitempty"`
	Required  bool      `json:"required,omitempty"`
	Optional  bool      `json:"optional,omitempty"`
	Sequence  bool      `json:"sequence,omitempty"`
	Email     bool      `json:"email,omitempty"`
	MinLength *int      `json:"min,omitempty"`
	MaxLength *int      `json:"max,omitempty"`
}

// Inspect renders d as an EntityDef. Dependency errors leave the list empty.
func Inspect(d *Descriptor) EntityDef {
	def := EntityDef{
		Name:         d.Name(),
		Table:        d.TableName(),
		Entity:       d.IsEntity(),
		Access:       d.Access().String(),
		ScanMode:     d.Mode().String(),
		AlwaysFresh:  d.AlwaysFresh(),
		Fields:       make([]FieldDef, 0, len(d.Elements())),
		Dependencies: make([]string, 0),
	}
	for _, c := range d.Constructors() {
		def.Constructors = append(def.Constructors, c.Arity())
	}

	for _, el := range d.Elements() {
		m := el.Markers()
		f := FieldDef{
			Name:     el.Name(),
			GoType:   el.Type().String(),
			Kind:     el.Kind().String(),
			Column:   el.Column(),
			Table:    m.Table,
			Identity: m.Identity,
			Required: el.Kind() == RequiredReference,
			Optional: m.Optional,
			Sequence: m.Sequence,
			Email:    m.Email,
		}
		if m.HasMin {
			f.MinLength = &m.Min
		}
		if m.HasMax {
			f.MaxLength = &m.Max
		}
		mapFieldType(&f, el)
		def.Fields = append(def.Fields, f)
	}

	if deps, err := d.Dependencies(); err == nil {
		for _, dep := range deps {
			def.Dependencies = append(def.Dependencies, dep.Name())
		}
	}
	return def
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

func mapFieldType(def *FieldDef, el Element) {
	if el.Kind().IsCollection() {
		def.Type = TypeCollection
		def.Target = Target(el).Name()
		return
	}
	if el.Kind().IsReference() {
		def.Type = TypeReference
		def.Target = Target(el).Name()
		return
	}

	t := Indirect(el.Type())
	switch {
	case t == timeType:
		def.Type = TypeDate
		return
	case t == uuidType:
		def.Type = TypeUUID
		return
	case t == decimalType:
		def.Type = TypeNumber
		return
	case len(EnumConstants(t)) > 0:
		def.Type = TypeEnum
		return
	}

	switch t.Kind() {
	case reflect.String:
		def.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		def.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		def.Type = TypeNumber
	case reflect.Bool:
		def.Type = TypeBoolean
	case reflect.Struct:
		def.Type = TypeObject
		if IsEntity(t) {
			def.Type = TypeReference
			def.Target = t.Name()
		}
	case reflect.Slice, reflect.Array, reflect.Map:
		def.Type = TypeCollection
	default:
		def.Type = TypeString
	}
}
