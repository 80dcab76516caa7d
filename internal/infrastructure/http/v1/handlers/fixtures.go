package handlers

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/core/id"
	"seedgraph/internal/core/tx"
	"seedgraph/internal/domain/persist"
	"seedgraph/internal/domain/scan"
	"seedgraph/internal/fixture"
	"seedgraph/internal/infrastructure/http/v1/dto"
	"seedgraph/internal/metadata"
	"seedgraph/pkg/logger"
)

// FixtureHandler generates and removes fixture graphs on demand.
// Every request uses a fresh builder and registry, so no instance is shared
// between requests. Descriptors and scan orders come from one shared scanner;
// sequences continue when the base options carry a shared allocator.
type FixtureHandler struct {
	*BaseHandler
	schema  *metadata.Schema
	base    []fixture.Option
	scanner *scan.Scanner
	sink    persist.Sink
	txm     tx.Manager
}

// NewFixtureHandler creates a fixture handler. sink may be nil, in which case
// persisting and cleanup requests are rejected.
func NewFixtureHandler(schema *metadata.Schema, base []fixture.Option, scanner *scan.Scanner, sink persist.Sink, txm tx.Manager) *FixtureHandler {
	return &FixtureHandler{
		BaseHandler: NewBaseHandler(),
		schema:      schema,
		base:        base,
		scanner:     scanner,
		sink:        sink,
		txm:         txm,
	}
}

// Generate materializes count graphs rooted at :name.
// POST /api/v1/fixtures/:name?count=3&persist=true&mode=include-optional
func (h *FixtureHandler) Generate(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}
	var q dto.FixtureQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	mode, ok := parseMode(h.BaseHandler, c, q.Mode)
	if !ok {
		return
	}
	b, err := h.builder(mode, q.Persist)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	ctx := c.Request.Context()
	resp := dto.FixtureResponse{
		Type:      t.Name(),
		Persisted: q.Persist,
		Graphs:    make([]dto.GraphResponse, 0, q.Count),
	}
	for i := 0; i < q.Count; i++ {
		res, err := b.Generate(ctx, t)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		resp.Graphs = append(resp.Graphs, dto.FromResult(res))
	}

	logger.Info(ctx, "fixtures generated",
		"type", t.Name(),
		"count", q.Count,
		"persisted", q.Persist,
		"mode", mode.String(),
	)
	h.Created(c, resp)
}

// Cleanup deletes the persisted rows of :name and its dependencies.
// DELETE /api/v1/fixtures/:name?exclude=<id>&exclude=<id>
func (h *FixtureHandler) Cleanup(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}
	var q dto.CleanupQuery
	if !h.BindQuery(c, &q) {
		return
	}
	mode, ok := parseMode(h.BaseHandler, c, q.Mode)
	if !ok {
		return
	}
	b, err := h.builder(mode, true)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	exclude := make([]any, 0, len(q.Exclude))
	for _, raw := range q.Exclude {
		exclude = append(exclude, parseIdentity(raw))
	}
	n, err := b.Cleanup(c.Request.Context(), t, exclude...)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.CleanupResponse{Type: t.Name(), Deleted: n})
}

func (h *FixtureHandler) lookup(c *gin.Context) (reflect.Type, bool) {
	name := c.Param("name")
	t, ok := h.schema.Lookup(name)
	if !ok {
		h.HandleError(c, apperror.NewNotFound("entity", name))
		return nil, false
	}
	return t, true
}

func (h *FixtureHandler) builder(mode metadata.ScanMode, persistent bool) (*fixture.Builder, error) {
	opts := slices.Clone(h.base)
	opts = append(opts, fixture.WithScanMode(mode))
	if h.scanner != nil {
		opts = append(opts, fixture.WithScanner(h.scanner))
	}
	if persistent {
		if h.sink == nil {
			return nil, apperror.NewValidation("persistence is not configured")
		}
		opts = append(opts, fixture.WithSink(h.sink, h.txm))
	}
	b, err := fixture.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("fixture builder: %w", err)
	}
	return b, nil
}

// parseIdentity turns an excluded identity into the Go type the sinks
// compare against: uuid, then integer, then the raw string.
func parseIdentity(raw string) any {
	if v, err := id.Parse(raw); err == nil {
		return v
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}
