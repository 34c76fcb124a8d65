package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/tracing"
)

// WithTrace extracts a trace id from the configured header, generating one
// when the client didn't supply it, and attaches it to the request context
// so every downstream log line can be correlated back to the request.
func WithTrace(config tracing.Config) gin.HandlerFunc {
	header := config.TraceHeader
	if header == "" {
		header = "X-Trace-Id"
	}

	return func(c *gin.Context) {
		traceID := c.GetHeader(header)
		if traceID == "" {
			traceID = tracing.GenerateTraceID()
		}

		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		ctx = tracing.WithOperationName(ctx, c.Request.Method+" "+c.FullPath())
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(header, traceID)

		c.Next()
	}
}
