package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/llm-gateway/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler converts gateway error codes into HTTP responses. Handlers
// attach errors to the context; this runs after them and writes the body.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var gwErr *api.Error
		if errors.As(err, &gwErr) {
			if gwErr.Log != nil {
				logger.Error("request failed",
					zap.String("code", string(gwErr.Code)),
					zap.Error(gwErr.Log))
			}
			status := statusFor(gwErr.Code)
			if gwErr.Code == api.CodeThrottled && gwErr.RetryAfter > 0 {
				c.Header("Retry-After", gwErr.RetryAfter.String())
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error": gin.H{
					"code":      gwErr.Code,
					"message":   gwErr.Message,
					"service":   gwErr.Service,
					"operation": gwErr.Operation,
					"timestamp": gwErr.Timestamp,
					"retryable": gwErr.Retryable,
				},
			})
			return
		}

		logger.Error("unhandled error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    api.CodeInternal,
				"message": "an unexpected error occurred",
			},
		})
	}
}

func statusFor(code api.ErrorCode) int {
	switch code {
	case api.CodeValidation, api.CodeRoleAlternation:
		return http.StatusBadRequest
	case api.CodeModelNotFound:
		return http.StatusNotFound
	case api.CodeModelNotReady, api.CodeUnsupportedVendor:
		return http.StatusConflict
	case api.CodeThrottled:
		return http.StatusTooManyRequests
	case api.CodeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
