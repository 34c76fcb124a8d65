package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/log"
)

// AccessLog logs status, method, path, and latency for every request that
// errors or returns >= 400.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()

		var errMsgs []string
		for _, e := range c.Errors {
			errMsgs = append(errMsgs, e.Error())
		}

		if status < 400 && len(errMsgs) == 0 {
			return
		}

		ctx := c.Request.Context()
		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Any("latency", time.Since(start).String()),
			log.String("client_ip", c.ClientIP()),
		}

		if len(errMsgs) > 0 {
			fields = append(fields, log.Any("errors", errMsgs))
		}

		log.Error(ctx, "[ACCESS]", fields...)
	}
}
