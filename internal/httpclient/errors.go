package httpclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Error wraps a non-2xx HTTP response from an upstream provider.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

func IsNotFoundErr(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}
