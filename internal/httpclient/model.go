// Package httpclient is the generic HTTP transport used by provider
// adapters: a normalized Request/Response pair plus an SSE stream decoder so
// adapters never touch net/http directly.
package httpclient

import (
	"net/http"
	"net/url"

	"github.com/kestrelhq/respond/internal/streams"
)

// Request represents a provider-agnostic outbound HTTP request.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers http.Header
	Body    []byte

	Auth *AuthConfig

	// RequestID is propagated for logging/correlation only.
	RequestID string
}

const (
	AuthTypeBearer = "bearer"
	AuthTypeAPIKey = "api_key"
)

type AuthConfig struct {
	Type      string
	APIKey    string
	HeaderKey string // used when Type == AuthTypeAPIKey
}

// Response represents a non-streaming HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// StreamEvent is one decoded Server-Sent-Events frame from an upstream
// provider.
type StreamEvent struct {
	Type string
	Data []byte
}

// StreamDecoder yields StreamEvents from a provider's event-stream body.
type StreamDecoder = streams.Stream[*StreamEvent]
