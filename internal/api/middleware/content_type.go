package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/apperror"
)

// WithJSONContentType rejects non-GET requests that don't declare a JSON
// body, except multipart/form-data uploads (the file-upload stub).
func WithJSONContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}

		ct := c.GetHeader("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			c.Next()
			return
		}

		if !strings.HasPrefix(ct, "application/json") {
			AbortWithError(c, http.StatusUnsupportedMediaType, apperror.New(apperror.KindInvalidRequest, "Content-Type must be application/json"))
			return
		}

		c.Next()
	}
}
