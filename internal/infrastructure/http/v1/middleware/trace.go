package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appctx "seedgraph/internal/core/context"
)

const (
	HeaderRequestID   = "X-Request-ID"
	HeaderTraceID     = "X-Trace-ID"
	HeaderTraceparent = "traceparent"
)

// Trace puts a TraceContext on the request. The trace id comes from a
// traceparent header, then X-Trace-ID, and is generated otherwise.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		trace, ok := appctx.ParseTraceparent(c.GetHeader(HeaderTraceparent))
		if !ok {
			trace = appctx.NewTraceContext()
			if id := c.GetHeader(HeaderTraceID); id != "" {
				trace.TraceID = id
			}
		}
		trace.RequestID = c.GetHeader(HeaderRequestID)
		if trace.RequestID == "" {
			trace.RequestID = uuid.NewString()
		}

		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), trace))
		c.Set("request_id", trace.RequestID)
		c.Header(HeaderRequestID, trace.RequestID)
		c.Header(HeaderTraceID, trace.TraceID)

		c.Next()
	}
}
