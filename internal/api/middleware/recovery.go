package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/apperror"
	"github.com/kestrelhq/respond/internal/log"
)

// Recovery converts a panic into a server_error JSON body instead of
// crashing the process, reported the way every other middleware in this
// package reports errors: AbortWithError plus the standard apperror
// envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(context.Background(), "panic recovered", log.Any("panic", r))
				AbortWithError(c, http.StatusInternalServerError, apperror.New(apperror.KindServerError, "internal server error"))
			}
		}()

		c.Next()
	}
}
