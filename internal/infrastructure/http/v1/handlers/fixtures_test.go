package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/demo"
	"seedgraph/internal/fixture"
	"seedgraph/internal/metadata"
)

func TestFixtureHandler_BuilderSharesScanner(t *testing.T) {
	base := []fixture.Option{fixture.WithConstructors(demo.Constructors())}
	shared, err := fixture.New(base...)
	require.NoError(t, err)
	h := NewFixtureHandler(demo.Schema(), base, shared.Scanner(), nil, nil)

	first, err := h.builder(metadata.IgnoreOptional, false)
	require.NoError(t, err)
	second, err := h.builder(metadata.IncludeOptional, false)
	require.NoError(t, err)

	assert.Same(t, shared.Scanner(), first.Scanner())
	assert.Same(t, shared.Factory(), second.Factory())
	assert.NotSame(t, first.Registry(), second.Registry())

	_, err = h.builder(metadata.IgnoreOptional, true)
	assert.True(t, apperror.IsAppError(err), "persisting without a sink")
}

func TestParseIdentity(t *testing.T) {
	u := uuid.New()
	assert.Equal(t, u, parseIdentity(u.String()))
	assert.Equal(t, int64(42), parseIdentity("42"))
	assert.Equal(t, "EUR", parseIdentity("EUR"))
}
