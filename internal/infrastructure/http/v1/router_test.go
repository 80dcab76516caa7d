package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/demo"
	"seedgraph/internal/domain/persist"
	"seedgraph/internal/fixture"
	"seedgraph/internal/infrastructure/http/v1/dto"
	"seedgraph/internal/metadata"
)

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func newRouter(t *testing.T, mutate func(*RouterConfig)) *gin.Engine {
	t.Helper()
	cfg := RouterConfig{
		Schema:  demo.Schema(),
		Options: []fixture.Option{fixture.WithConstructors(demo.Constructors()), fixture.WithRandomSeed(7)},
		Version: "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := NewRouter(cfg)
	require.NoError(t, err)
	return r
}

func do(t *testing.T, r http.Handler, method, target string, out any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func TestHealth(t *testing.T) {
	r := newRouter(t, nil)

	w := do(t, r, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var ready map[string]any
	w = do(t, r, http.MethodGet, "/health/ready", &ready)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disabled", ready["checks"].(map[string]any)["database"])

	down := newRouter(t, func(c *RouterConfig) { c.DB = downDB{} })
	w = do(t, down, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMeta(t *testing.T) {
	r := newRouter(t, nil)

	t.Run("list", func(t *testing.T) {
		var resp struct {
			Items      []metadata.EntityDef `json:"items"`
			TotalCount int                  `json:"totalCount"`
		}
		w := do(t, r, http.MethodGet, "/api/v1/meta", &resp)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 7, resp.TotalCount)
		assert.Len(t, resp.Items, 7)
	})

	t.Run("get with scan order", func(t *testing.T) {
		var def metadata.EntityDef
		w := do(t, r, http.MethodGet, "/api/v1/meta/LineItem", &def)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "line_items", def.Table)
		assert.ElementsMatch(t, []string{"Category", "Currency", "Person"}, def.ScanOrder)
	})

	t.Run("leaf entity has no scan order", func(t *testing.T) {
		var def metadata.EntityDef
		w := do(t, r, http.MethodGet, "/api/v1/meta/currency", &def)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "currencies", def.Table)
		assert.Empty(t, def.ScanOrder)
	})

	t.Run("unknown", func(t *testing.T) {
		var resp dto.ErrorResponse
		w := do(t, r, http.MethodGet, "/api/v1/meta/invoice", &resp)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperror.CodeNotFound, resp.Code)
	})

	t.Run("bad mode", func(t *testing.T) {
		var resp dto.ErrorResponse
		w := do(t, r, http.MethodGet, "/api/v1/meta/lineitem?mode=everything", &resp)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperror.CodeValidation, resp.Code)
	})
}

func TestFixtures_Generate(t *testing.T) {
	r := newRouter(t, nil)

	var resp dto.FixtureResponse
	w := do(t, r, http.MethodPost, "/api/v1/fixtures/lineitem?count=2&mode=include-optional", &resp)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "LineItem", resp.Type)
	assert.False(t, resp.Persisted)
	require.Len(t, resp.Graphs, 2)

	first, second := resp.Graphs[0], resp.Graphs[1]
	last := first.Items[len(first.Items)-1]
	assert.Equal(t, "LineItem", last.Type)
	assert.Equal(t, "line_items", last.Table)
	assert.False(t, last.Reused)
	assert.Nil(t, last.Identity, "not persisted")
	for _, it := range second.Items {
		if it.Type == "Category" || it.Type == "Person" {
			assert.True(t, it.Reused, it.Type)
		}
	}

	root := first.Root.(map[string]any)
	assert.Equal(t, "NUMBER-00001", root["number"])
}

func TestFixtures_Errors(t *testing.T) {
	r := newRouter(t, nil)

	tests := []struct {
		name   string
		method string
		target string
		status int
		code   string
	}{
		{"unknown type", http.MethodPost, "/api/v1/fixtures/invoice", http.StatusNotFound, apperror.CodeNotFound},
		{"count too large", http.MethodPost, "/api/v1/fixtures/lineitem?count=500", http.StatusBadRequest, apperror.CodeValidation},
		{"persist without sink", http.MethodPost, "/api/v1/fixtures/lineitem?persist=true", http.StatusBadRequest, apperror.CodeValidation},
		{"cleanup without sink", http.MethodDelete, "/api/v1/fixtures/lineitem", http.StatusBadRequest, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp dto.ErrorResponse
			w := do(t, r, tt.method, tt.target, &resp)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestFixtures_PersistAndCleanup(t *testing.T) {
	sink := persist.NewMemorySink()
	r := newRouter(t, func(c *RouterConfig) { c.Sink = sink })

	var resp dto.FixtureResponse
	w := do(t, r, http.MethodPost, "/api/v1/fixtures/lineitem?count=2&persist=true", &resp)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, resp.Persisted)
	for _, g := range resp.Graphs {
		for _, it := range g.Items {
			assert.NotNil(t, it.Identity, it.Type)
		}
	}
	assert.Len(t, sink.Rows("line_items"), 2)

	var person any
	for _, it := range resp.Graphs[0].Items {
		if it.Type == "Person" {
			person = it.Identity
		}
	}
	require.NotNil(t, person)

	var cleaned dto.CleanupResponse
	w = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/fixtures/lineitem?exclude=%v", person), &cleaned)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(3), cleaned.Deleted, "two line items and the category")
	assert.Empty(t, sink.Rows("line_items"))
	assert.Len(t, sink.Rows("persons"), 1)
}
