package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/apperror"
)

// AbortWithError aborts the request with the standard error envelope and
// records err on the gin context so AccessLog picks it up.
func AbortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)

	appErr := apperror.AsAppError(err)
	c.AbortWithStatusJSON(status, appErr.Body())
}
