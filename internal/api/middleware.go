package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/ronika/stalkarr/internal/errors"
	"github.com/ronika/stalkarr/internal/logger"
)

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(
			logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// errorHandlerMiddleware handles panics and errors
func errorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Error:   "internal server error",
					Message: "an unexpected error occurred",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// respondError maps an application error onto an HTTP status
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := apperrors.GetErrorCode(err)

	switch code {
	case apperrors.CodeValidation:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeJobConflict:
		status = http.StatusConflict
	case apperrors.CodeAuthExpired, apperrors.CodeHandshakeFailed:
		status = http.StatusBadGateway
	case apperrors.CodeUpstream, apperrors.CodeUpstreamTimeout, apperrors.CodeServiceUnavailable:
		status = http.StatusBadGateway
	case apperrors.CodeRateLimited:
		status = http.StatusTooManyRequests
	}

	c.JSON(status, ErrorResponse{
		Error:   string(code),
		Message: err.Error(),
	})
}
