package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/grobertson/Rosey-Robot-sub001/internal/logger"
)

// RequestIDMiddleware assigns each request a unique ID, echoes it in the
// response, and attaches a request-scoped logger to the context.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Header("X-Request-ID", id)

		l := logger.With("request_id", id)
		ctx := logger.IntoContext(c.Request.Context(), l)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
