// Package middleware holds the gin.HandlerFunc chain shared by every
// route group in internal/httpapi, grounded on the teacher's
// libs/go/middleware package (correlation IDs, rate limiting).
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/logger"
)

// CorrelationIDHeader is echoed on every response so a merchant can
// correlate a support ticket with server-side logs.
const CorrelationIDHeader = "X-Correlation-ID"

const correlationIDKey = "correlationID"

type contextKey string

const correlationIDContextKey contextKey = "correlationID"

// CorrelationID reads X-Correlation-ID off the inbound request, or
// mints one, stores it on both the gin context and the request's
// context.Context, and echoes it back on the response.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(correlationIDKey, id)
		c.Header(CorrelationIDHeader, id)
		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), id))

		logger.Info("request received",
			zap.String("correlation_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
		)

		c.Next()
	}
}

// GetCorrelationID reads the id stashed on the gin context by CorrelationID.
func GetCorrelationID(c *gin.Context) string {
	if v, ok := c.Get(correlationIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithCorrelationID attaches id to ctx for code below the gin layer
// (service/processor logging) that only has a context.Context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey, id)
}

// CorrelationIDFromContext is the inverse of WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) string {
	if v := ctx.Value(correlationIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
