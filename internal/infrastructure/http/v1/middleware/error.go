package middleware

import (
	"github.com/gin-gonic/gin"

	"seedgraph/internal/core/apperror"
	appctx "seedgraph/internal/core/context"
	"seedgraph/internal/infrastructure/http/v1/dto"
	"seedgraph/pkg/logger"
)

// ErrorHandler renders the last error registered with c.Error as an
// ErrorResponse. Handlers never write error bodies themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, c.Errors.Last().Err)
	}
}

func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		logger.Error(ctx, "unhandled error", "error", err)
		appErr = apperror.NewInternal(err).WithDetail("request_id", appctx.GetRequestID(ctx))
	} else if appErr.Err != nil {
		logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
	}

	c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}
