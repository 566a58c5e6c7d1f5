package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shopfloor/internal/core/apperror"
	"shopfloor/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		WriteError(c)
	}
}

// WriteError renders the last error registered on c unless a response was
// already written. It is safe to call more than once.
func WriteError(c *gin.Context) {
	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}
	status, body := errorBody(c, c.Errors.Last().Err)
	c.JSON(status, body)
}

func errorBody(c *gin.Context, err error) (int, gin.H) {
	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}
		return appErr.HTTPStatus, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
	}

	logger.Error(c.Request.Context(), "unhandled error", "error", err)
	return http.StatusInternalServerError, gin.H{
		"code":    apperror.CodeInternal,
		"message": "Internal server error",
		"details": map[string]any{
			"request_id": c.GetString("request_id"),
		},
	}
}
