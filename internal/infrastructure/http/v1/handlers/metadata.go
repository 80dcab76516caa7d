package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/domain/scan"
	"seedgraph/internal/infrastructure/http/v1/dto"
	"seedgraph/internal/metadata"
)

// MetadataHandler exposes descriptors of the registered schema.
type MetadataHandler struct {
	*BaseHandler
	schema  *metadata.Schema
	scanner *scan.Scanner
}

func NewMetadataHandler(schema *metadata.Schema, scanner *scan.Scanner) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: NewBaseHandler(),
		schema:      schema,
		scanner:     scanner,
	}
}

// ListEntities returns the descriptors of all registered types.
// GET /api/v1/meta
func (h *MetadataHandler) ListEntities(c *gin.Context) {
	mode, ok := h.scanMode(c)
	if !ok {
		return
	}

	names := h.schema.Names()
	defs := make([]metadata.EntityDef, 0, len(names))
	for _, name := range names {
		def, err := h.describe(name, mode)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		defs = append(defs, def)
	}
	h.OK(c, dto.ListResponse{Items: defs, TotalCount: len(defs)})
}

// GetEntity returns the descriptor of one type, including its scan order.
// GET /api/v1/meta/:name
func (h *MetadataHandler) GetEntity(c *gin.Context) {
	mode, ok := h.scanMode(c)
	if !ok {
		return
	}

	def, err := h.describe(c.Param("name"), mode)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, def)
}

func (h *MetadataHandler) describe(name string, mode metadata.ScanMode) (metadata.EntityDef, error) {
	t, ok := h.schema.Lookup(name)
	if !ok {
		return metadata.EntityDef{}, apperror.NewNotFound("entity", name)
	}
	d, err := h.scanner.Factory().Describe(t, mode)
	if err != nil {
		return metadata.EntityDef{}, err
	}
	def := metadata.Inspect(d)
	if !d.IsEntity() {
		return def, nil
	}

	order, err := h.scanner.Scan(t, mode)
	if err != nil {
		return metadata.EntityDef{}, err
	}
	for _, dep := range order {
		def.ScanOrder = append(def.ScanOrder, dep.Name())
	}
	return def, nil
}

func (h *MetadataHandler) scanMode(c *gin.Context) (metadata.ScanMode, bool) {
	return parseMode(h.BaseHandler, c, c.Query("mode"))
}

// parseMode maps the mode query parameter; empty selects ignore-optional.
func parseMode(h *BaseHandler, c *gin.Context, raw string) (metadata.ScanMode, bool) {
	if raw == "" {
		return metadata.IgnoreOptional, true
	}
	mode, ok := metadata.ParseScanMode(raw)
	if !ok {
		h.HandleError(c, apperror.NewValidation(fmt.Sprintf("unknown scan mode %q", raw)))
		return 0, false
	}
	return mode, true
}
