package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seedgraph/internal/core/apperror"
)

// BaseHandler holds the response helpers shared by all handlers. Error bodies
// are written by middleware.ErrorHandler, never here.
type BaseHandler struct{}

func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindQuery binds and validates query parameters; on failure the request is
// aborted with a validation error and false is returned.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	err := c.ShouldBindQuery(obj)
	if err == nil {
		return true
	}
	h.HandleError(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
	return false
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func (h *BaseHandler) OK(c *gin.Context, data any)      { c.JSON(http.StatusOK, data) }
func (h *BaseHandler) Created(c *gin.Context, data any) { c.JSON(http.StatusCreated, data) }
