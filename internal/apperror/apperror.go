// Package apperror defines the wire error envelope shared by every HTTP
// and SSE surface of the gateway.
package apperror

import (
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest Kind = "invalid_request_error"
	KindUnauthorized   Kind = "unauthorized"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindRateLimit      Kind = "rate_limit_error"
	KindServerError    Kind = "server_error"
	KindNotImplemented Kind = "not_implemented"
)

var statusByKind = map[Kind]int{
	KindInvalidRequest: http.StatusBadRequest,
	KindUnauthorized:   http.StatusUnauthorized,
	KindNotFound:       http.StatusNotFound,
	KindConflict:       http.StatusConflict,
	KindRateLimit:      http.StatusTooManyRequests,
	KindServerError:    http.StatusInternalServerError,
	KindNotImplemented: http.StatusNotImplemented,
}

// Error is the application-level error type propagated from the
// orchestrator and its collaborators up to the HTTP layer.
type Error struct {
	Kind    Kind
	Message string
	Param   string
	Code    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) StatusCode() int {
	if status, ok := statusByKind[e.Kind]; ok {
		return status
	}

	return http.StatusInternalServerError
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WithParam(err *Error, param string) *Error {
	err.Param = param
	return err
}

// Body is the {"error": {...}} JSON envelope every error surface returns.
type Body struct {
	Error BodyDetail `json:"error"`
}

type BodyDetail struct {
	Message string `json:"message"`
	Type    Kind   `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *Error) Body() Body {
	return Body{Error: BodyDetail{Message: e.Message, Type: e.Kind, Param: e.Param, Code: e.Code}}
}

// AsAppError unwraps err into an *Error, defaulting unrecognized errors to
// a server_error so every code path produces a well-formed wire body.
func AsAppError(err error) *Error {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*Error); ok {
		return appErr
	}

	return New(KindServerError, err.Error())
}
