// Package api wires the gin HTTP surface onto the orchestrator: the
// Responses API CRUD/streaming routes, model listing, file upload stubs,
// and the chat-completions compatibility surface.
package api

import (
	"time"

	"github.com/kestrelhq/respond/internal/tracing"
)

// Config is the HTTP transport's own settings, split out of the
// process-wide conf.Config so the transport layer doesn't depend on the
// whole configuration surface.
type Config struct {
	Host string
	Port int

	ReadTimeout       time.Duration
	RequestTimeout    time.Duration
	LLMRequestTimeout time.Duration

	// APIKeys accepted on the Authorization: Bearer header. An empty list
	// accepts any bearer token, a development-mode carve-out.
	APIKeys []string

	Debug bool
	CORS  CORS
	Trace tracing.Config
}

type CORS struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}
