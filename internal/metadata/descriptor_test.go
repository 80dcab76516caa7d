package metadata

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedgraph/internal/core/apperror"
)

type owner struct {
	ID   uuid.UUID `db:"id" seed:"id"`
	Name string    `db:"name" seed:"min=3,max=12"`
}

func (*owner) TableName() string { return "owners" }

type folder struct {
	ID       uuid.UUID `db:"id" seed:"id"`
	Title    string    `db:"title"`
	Parent   *folder   `seed:"ref,optional,join=parent_id"`
	Owner    *owner    `seed:"ref,join=owner_id"`
	Notes    []*note   `seed:"o2m"`
	Labels   []*label  `seed:"m2m,table=folder_labels"`
	internal string
}

func (*folder) TableName() string { return "folders" }

type note struct {
	ID     uuid.UUID `db:"id" seed:"id"`
	Body   string    `db:"body"`
	Folder *folder   `seed:"ref,join=folder_id"`
	Editor *owner    `seed:"ref,optional,join=editor_id"`
}

func (*note) TableName() string { return "notes" }

type label struct {
	ID      uuid.UUID `db:"id" seed:"id"`
	Name    string    `db:"name"`
	Folders []*folder `seed:"m2m"`
}

func (*label) TableName() string { return "labels" }

// audited is embedded; its fields are inherited.
type audited struct {
	ID      uuid.UUID `db:"id" seed:"id"`
	Version int       `db:"version"`
	Name    string    `db:"audit_name"`
}

type document struct {
	audited
	Name  string `db:"name"`
	Cache string `seed:"-"`
}

func (*document) TableName() string { return "documents" }

// wallet is property-based: the identity marker sits on an unexported field.
type wallet struct {
	id      uuid.UUID `db:"id" seed:"id"`
	balance int64     `db:"balance"`
	Exposed string    `db:"exposed" seed:"required"`
}

func (*wallet) TableName() string    { return "wallets" }
func (w *wallet) ID() uuid.UUID      { return w.id }
func (w *wallet) SetID(v uuid.UUID)  { w.id = v }
func (w *wallet) Balance() int64     { return w.balance }
func (w *wallet) SetBalance(v int64) { w.balance = v }

type badRef struct {
	ID    uuid.UUID `db:"id" seed:"id"`
	Count int       `seed:"required"`
}

func (*badRef) TableName() string { return "bad_refs" }

func names(ds []*Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name())
	}
	return out
}

func elementNames(els []Element) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		out = append(out, el.Name())
	}
	return out
}

func TestDescribe_FieldAccess(t *testing.T) {
	f := NewFactory(FactoryConfig{}, nil)

	d, err := f.Describe(reflect.TypeOf(&folder{}), IgnoreOptional)
	require.NoError(t, err)

	assert.Equal(t, FieldAccess, d.Access())
	assert.True(t, d.IsEntity())
	assert.Equal(t, "folders", d.TableName())
	assert.Equal(t, []string{"ID", "Labels", "Notes", "Owner", "Parent", "Title"}, elementNames(d.Elements()))
	require.NotNil(t, d.Identity())
	assert.Equal(t, "ID", d.Identity().Name())

	parent, ok := d.Element("Parent")
	require.True(t, ok)
	assert.Equal(t, OptionalReference, parent.Kind())
	assert.Equal(t, "parent_id", parent.Column())

	owner, _ := d.Element("Owner")
	assert.Equal(t, RequiredReference, owner.Kind())

	assert.Equal(t, []string{"Notes"}, elementNames(d.BackReferences()))
	assert.Equal(t, []string{"Labels"}, elementNames(d.ManyToMany()))
}

func TestDescribe_Dependencies(t *testing.T) {
	tests := []struct {
		name string
		mode ScanMode
		typ  any
		want []string
	}{
		{"folder ignores optional self parent", IgnoreOptional, &folder{}, []string{"owner"}},
		{"folder excludes self in include mode", IncludeOptional, &folder{}, []string{"owner"}},
		{"note ignore optional", IgnoreOptional, &note{}, []string{"folder"}},
		{"note include optional", IncludeOptional, &note{}, []string{"owner", "folder"}},
		{"inverse side has none", IncludeOptional, &label{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactory(FactoryConfig{}, nil)
			d, err := f.Describe(TypeOf(tt.typ), tt.mode)
			require.NoError(t, err)

			deps, err := d.Dependencies()
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(deps))
		})
	}
}

func TestDescribe_EmbeddedShadowing(t *testing.T) {
	f := NewFactory(FactoryConfig{}, nil)
	d, err := f.Describe(reflect.TypeOf(document{}), IgnoreOptional)
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "Name", "Version"}, elementNames(d.Elements()))

	name, _ := d.Element("Name")
	assert.Equal(t, "name", name.Column(), "outer field wins")

	doc := &document{}
	idEl, _ := d.Element("ID")
	want := uuid.New()
	require.NoError(t, idEl.Set(reflect.ValueOf(doc), reflect.ValueOf(want)))
	assert.Equal(t, want, doc.ID)
}

func TestDescribe_PropertyAccess(t *testing.T) {
	f := NewFactory(FactoryConfig{}, nil)
	d, err := f.Describe(reflect.TypeOf(wallet{}), IgnoreOptional)
	require.NoError(t, err)

	assert.Equal(t, PropertyAccess, d.Access())
	assert.Equal(t, []string{"Balance", "ID"}, elementNames(d.Elements()), "exported tagged fields are ignored")

	idEl := d.Identity()
	require.NotNil(t, idEl)
	assert.Equal(t, PropertyBacked, idEl.Variant())
	assert.Equal(t, "id", idEl.Column())

	w := &wallet{}
	bal, _ := d.Element("Balance")
	require.NoError(t, bal.Set(reflect.ValueOf(w), reflect.ValueOf(int64(42))))
	v, ok := bal.Get(reflect.ValueOf(w))
	require.True(t, ok)
	assert.Equal(t, int64(42), v.Int())

	deps, err := d.Dependencies()
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestDescribe_RequiredScalarIsConfigurationError(t *testing.T) {
	f := NewFactory(FactoryConfig{}, nil)
	d, err := f.Describe(reflect.TypeOf(badRef{}), IgnoreOptional)
	require.NoError(t, err)

	_, err = d.Dependencies()
	require.Error(t, err)
	assert.True(t, apperror.IsConfiguration(err))
}

func TestDescribe_NonStruct(t *testing.T) {
	f := NewFactory(FactoryConfig{}, nil)
	_, err := f.Describe(reflect.TypeOf(42), IgnoreOptional)
	assert.True(t, apperror.IsConfiguration(err))
	assert.Zero(t, f.Len())
}

func TestFactory_CacheAndReset(t *testing.T) {
	f := NewFactory(FactoryConfig{CacheSize: 2}, nil)

	a, err := f.Describe(reflect.TypeOf(owner{}), IgnoreOptional)
	require.NoError(t, err)
	b, err := f.Describe(reflect.TypeOf(&owner{}), IgnoreOptional)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := f.Describe(reflect.TypeOf(owner{}), IncludeOptional)
	require.NoError(t, err)
	assert.NotSame(t, a, c, "scan mode is part of the key")

	_, err = f.Describe(reflect.TypeOf(label{}), IgnoreOptional)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len(), "capacity is a hard cap")

	f.Reset()
	assert.Zero(t, f.Len())
}

func TestFactory_ConcurrentDescribe(t *testing.T) {
	f := NewFactory(FactoryConfig{}, nil)

	var wg sync.WaitGroup
	results := make([]*Descriptor, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := f.Describe(reflect.TypeOf(note{}), IncludeOptional)
			if err == nil {
				results[i] = d
			}
		}(i)
	}
	wg.Wait()

	for _, d := range results {
		assert.Same(t, results[0], d)
	}
}

type gadget struct {
	ID    uuid.UUID `db:"id" seed:"id"`
	Label string
	Size  int
}

func (*gadget) TableName() string { return "gadgets" }

func TestConstructors(t *testing.T) {
	ctors := NewConstructors()
	require.NoError(t, ctors.Register(
		func() *gadget { return &gadget{Label: "empty"} },
		func(label string, size int) (*gadget, error) {
			if size < 0 {
				return nil, errors.New("negative size")
			}
			return &gadget{Label: label, Size: size}, nil
		},
	))

	list := ctors.For(reflect.TypeOf(&gadget{}))
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].Arity())
	assert.Equal(t, 2, list[1].Arity())
	assert.Equal(t, "arg1", list[1].Params()[1].Name())
	assert.Equal(t, ParamBacked, list[1].Params()[0].Variant())

	out := list[1].Invoke([]reflect.Value{reflect.ValueOf("x"), reflect.ValueOf(3)})
	require.True(t, out.Invoked())
	assert.Equal(t, 3, out.Instance.Interface().(*gadget).Size)

	out = list[1].Invoke([]reflect.Value{reflect.ValueOf("x"), reflect.ValueOf(-1)})
	assert.False(t, out.Invoked())
	assert.EqualError(t, out.Reason, "negative size")

	out = list[1].Invoke([]reflect.Value{reflect.ValueOf(1), reflect.ValueOf(1)})
	assert.False(t, out.Invoked(), "argument type mismatch is a failed outcome")

	assert.Error(t, ctors.Register(func() gadget { return gadget{} }))
	assert.Error(t, ctors.Register("not a func"))
}

func TestConstructor_PanicIsFailedOutcome(t *testing.T) {
	ctors := NewConstructors()
	ctors.MustRegister(func(n int) *gadget { panic("boom") })

	out := ctors.For(reflect.TypeOf(gadget{}))[0].Invoke([]reflect.Value{reflect.ValueOf(1)})
	assert.False(t, out.Invoked())
	assert.Contains(t, out.Reason.Error(), "boom")
}

func TestParseMarkers(t *testing.T) {
	m := ParseMarkers("ref, optional, join=owner_id, min=2, max=9")
	assert.True(t, m.Ref)
	assert.True(t, m.Optional)
	assert.Equal(t, "owner_id", m.Join)
	assert.Equal(t, 2, m.Min)
	assert.Equal(t, 9, m.Max)
	assert.Equal(t, OptionalReference, Classify(m))

	assert.True(t, ParseMarkers("-").Transient)
	assert.Equal(t, ManyToManyOwning, Classify(ParseMarkers("m2m,table=x")))
	assert.Equal(t, ManyToManyInverse, Classify(ParseMarkers("m2m")))
	assert.Equal(t, Scalar, Classify(ParseMarkers("email,max=40")))
	assert.Equal(t, OptionalReference, Classify(ParseMarkers("ref")), "inverse side without join")

	mode, ok := ParseScanMode("include-optional")
	assert.True(t, ok)
	assert.Equal(t, IncludeOptional, mode)
	_, ok = ParseScanMode("sideways")
	assert.False(t, ok)
}

func TestSchemaAndInspect(t *testing.T) {
	s := NewSchema()
	s.Register(&folder{}, note{})

	typ, ok := s.Lookup("Folder")
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(folder{}), typ)
	assert.Equal(t, []string{"folder", "note"}, s.Names())

	f := NewFactory(FactoryConfig{}, nil)
	d, err := f.Describe(typ, IgnoreOptional)
	require.NoError(t, err)

	def := Inspect(d)
	assert.Equal(t, "folders", def.Table)
	assert.Equal(t, "field", def.Access)
	assert.Equal(t, []string{"owner"}, def.Dependencies)

	byName := map[string]FieldDef{}
	for _, fd := range def.Fields {
		byName[fd.Name] = fd
	}
	assert.Equal(t, TypeUUID, byName["ID"].Type)
	assert.Equal(t, TypeReference, byName["Owner"].Type)
	assert.Equal(t, "owner", byName["Owner"].Target)
	assert.Equal(t, TypeCollection, byName["Labels"].Type)
	assert.Equal(t, "folder_labels", byName["Labels"].Table)
}
