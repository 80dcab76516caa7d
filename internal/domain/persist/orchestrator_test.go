package persist

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/domain/build"
	"seedgraph/internal/domain/holder"
	"seedgraph/internal/domain/materialize"
	"seedgraph/internal/domain/scan"
	"seedgraph/internal/domain/synth"
	"seedgraph/internal/metadata"
)

type author struct {
	ID   uuid.UUID `db:"id" seed:"id"`
	Name string    `db:"name"`
}

func (*author) TableName() string { return "authors" }

type tag struct {
	ID    int64  `db:"id" seed:"id"`
	Label string `db:"label"`
}

func (*tag) TableName() string { return "tags" }

type post struct {
	ID     uuid.UUID `db:"id" seed:"id"`
	Title  string    `db:"title"`
	Author *author   `seed:"ref,join=author_id"`
	Tags   []*tag    `seed:"m2m,table=post_tags"`
}

func (*post) TableName() string { return "posts" }

type comment struct {
	ID   uuid.UUID `db:"id" seed:"id"`
	Body string    `db:"body"`
	Post *post     `seed:"ref,join=post_id"`
}

func (*comment) TableName() string { return "comments" }

// failingSink fails inserts into one table.
type failingSink struct {
	*MemorySink
	table string
}

func (f *failingSink) Insert(ctx context.Context, d *metadata.Descriptor, instance reflect.Value) error {
	if d.TableName() == f.table {
		return errors.New("disk full")
	}
	return f.MemorySink.Insert(ctx, d, instance)
}

type fixture struct {
	m     *materialize.Materializer
	items []materialize.Item
	order []*metadata.Descriptor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	factory := metadata.NewFactory(metadata.FactoryConfig{}, nil)
	scanner := scan.New(factory, 0)
	m := materialize.New(scanner, build.New(factory))
	s := build.NewSession(metadata.IgnoreOptional, holder.New(), synth.New(synth.Config{Seed: 3}), nil)
	ctx := context.Background()

	tagRun, err := m.Materialize(ctx, reflect.TypeOf(tag{}), s)
	require.NoError(t, err)
	commentRun, err := m.Materialize(ctx, reflect.TypeOf(comment{}), s)
	require.NoError(t, err)

	order, err := scanner.Scan(reflect.TypeOf(comment{}), metadata.IgnoreOptional)
	require.NoError(t, err)
	root, err := factory.Describe(reflect.TypeOf(comment{}), metadata.IgnoreOptional)
	require.NoError(t, err)
	tagDesc, err := factory.Describe(reflect.TypeOf(tag{}), metadata.IgnoreOptional)
	require.NoError(t, err)

	return &fixture{
		m:     m,
		items: append(tagRun.Items, commentRun.Items...),
		order: append([]*metadata.Descriptor{tagDesc}, append(order, root)...),
	}
}

func (f *fixture) root() *comment {
	return f.items[len(f.items)-1].Instance.Interface().(*comment)
}

func TestPersist_InsertsInOrderAndLinks(t *testing.T) {
	f := newFixture(t)
	sink := NewMemorySink()
	o := New(sink, sink)

	out, err := o.Persist(context.Background(), f.items)
	require.NoError(t, err)
	assert.Len(t, out, len(f.items))

	c := f.root()
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.NotEqual(t, uuid.Nil, c.Post.ID)
	assert.NotEqual(t, uuid.Nil, c.Post.Author.ID)
	require.Len(t, c.Post.Tags, 1)
	assert.Equal(t, int64(1), c.Post.Tags[0].ID, "first insert gets the first integer identity")

	assert.Len(t, sink.Rows("comments"), 1)
	assert.Len(t, sink.Rows("posts"), 1)
	assert.Len(t, sink.Rows("authors"), 1)

	links := sink.Links("post_tags")
	require.Len(t, links, 1)
	assert.Equal(t, "post_id", links[0].OwnerColumn)
	assert.Equal(t, "tag_id", links[0].TargetColumn)
	assert.Equal(t, c.Post.ID, links[0].OwnerID)
	assert.Equal(t, int64(1), links[0].TargetID)
}

func TestPersist_SkipsDurableInstances(t *testing.T) {
	f := newFixture(t)
	sink := NewMemorySink()
	o := New(sink, sink)
	ctx := context.Background()

	_, err := o.Persist(ctx, f.items)
	require.NoError(t, err)
	_, err = o.Persist(ctx, f.items)
	require.NoError(t, err)

	assert.Len(t, sink.Rows("posts"), 1)
	assert.Len(t, sink.Links("post_tags"), 1)
}

func TestPersist_FailureRollsBack(t *testing.T) {
	f := newFixture(t)
	mem := NewMemorySink()
	o := New(&failingSink{MemorySink: mem, table: "comments"}, mem)

	_, err := o.Persist(context.Background(), f.items)
	require.Error(t, err)
	assert.True(t, apperror.IsPersistence(err))
	assert.ErrorContains(t, err, "disk full")

	assert.Empty(t, mem.Rows("posts"))
	assert.Empty(t, mem.Rows("authors"))
	assert.Empty(t, mem.Links("post_tags"))

	c := f.root()
	assert.Equal(t, uuid.Nil, c.Post.ID, "identities assigned in the failed unit are reset")
	assert.Equal(t, uuid.Nil, c.Post.Author.ID)
}

func TestPersist_Hooks(t *testing.T) {
	f := newFixture(t)
	sink := NewMemorySink()
	o := New(sink, sink)

	o.Hooks().OnBeforePersist(func(_ context.Context, items []materialize.Item) ([]materialize.Item, error) {
		var kept []materialize.Item
		for _, it := range items {
			if it.Descriptor.TableName() != "tags" {
				kept = append(kept, it)
			}
		}
		return kept, nil
	})
	var seen int
	o.Hooks().OnAfterPersist(func(_ context.Context, items []materialize.Item) ([]materialize.Item, error) {
		for _, it := range items {
			if _, ok := IdentityOf(it.Descriptor, it.Instance); ok {
				seen++
			}
		}
		return nil, nil
	})

	out, err := o.Persist(context.Background(), f.items)
	require.NoError(t, err)
	assert.Len(t, out, len(f.items)-1)
	assert.Equal(t, len(f.items)-1, seen)
	assert.Empty(t, sink.Rows("tags"))
	assert.Empty(t, sink.Links("post_tags"), "target without identity is not linked")
}

func TestPersist_BeforeHookError(t *testing.T) {
	f := newFixture(t)
	sink := NewMemorySink()
	o := New(sink, nil)
	o.Hooks().OnBeforePersist(func(context.Context, []materialize.Item) ([]materialize.Item, error) {
		return nil, errors.New("vetoed")
	})

	_, err := o.Persist(context.Background(), f.items)
	assert.ErrorContains(t, err, "vetoed")
	assert.Empty(t, sink.Rows("comments"))
}

func TestCleanup_ReverseOrderWithExclusions(t *testing.T) {
	f := newFixture(t)
	sink := NewMemorySink()
	o := New(sink, sink)
	ctx := context.Background()

	_, err := o.Persist(ctx, f.items)
	require.NoError(t, err)

	keep := f.root().Post.Author.ID
	n, err := o.Cleanup(ctx, f.order, keep)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n, "post_tags row, tag, post, comment")

	assert.Empty(t, sink.Rows("comments"))
	assert.Empty(t, sink.Rows("posts"))
	assert.Empty(t, sink.Rows("tags"))
	assert.Empty(t, sink.Links("post_tags"))
	assert.Len(t, sink.Rows("authors"), 1)
}

func TestAssociationOf(t *testing.T) {
	factory := metadata.NewFactory(metadata.FactoryConfig{}, nil)
	d, err := factory.Describe(reflect.TypeOf(post{}), metadata.IgnoreOptional)
	require.NoError(t, err)
	el, ok := d.Element("Tags")
	require.True(t, ok)

	assert.Equal(t, AssocTable{Name: "post_tags", OwnerColumn: "post_id", TargetColumn: "tag_id"}, AssociationOf(d, el))
	assert.Equal(t, "line_item", snake("LineItem"))
}
