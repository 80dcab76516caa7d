// Package middleware provides the gin middleware chain of the fixture service.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"seedgraph/internal/core/apperror"
	"seedgraph/pkg/logger"
)

// Recovery turns a handler panic into a 500 body. The panic unwinds past
// ErrorHandler, so the response is written here. The stack is only logged.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"error", rec,
				"stack", string(debug.Stack()),
			)
			c.Abort()
			if !c.Writer.Written() {
				writeError(c, apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", c.GetString("request_id")))
			}
		}()
		c.Next()
	}
}
