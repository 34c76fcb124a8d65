package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/apperror"
)

// ExtractBearerToken pulls the token out of an "Authorization: Bearer
// <token>" header.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperror.New(apperror.KindUnauthorized, "missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", apperror.New(apperror.KindUnauthorized, "Authorization header must start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", apperror.New(apperror.KindUnauthorized, "bearer token is empty")
	}

	return token, nil
}

// WithBearerAuth accepts any bearer token when apiKeys is empty
// (development mode), otherwise the token must appear in the configured
// set.
func WithBearerAuth(apiKeys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, key := range apiKeys {
		allowed[key] = struct{}{}
	}

	return func(c *gin.Context) {
		token, err := ExtractBearerToken(c.Request)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, err)
			return
		}

		if len(allowed) > 0 {
			if _, ok := allowed[token]; !ok {
				AbortWithError(c, http.StatusUnauthorized, apperror.New(apperror.KindUnauthorized, "invalid API key"))
				return
			}
		}

		c.Next()
	}
}
