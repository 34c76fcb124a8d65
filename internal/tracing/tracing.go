// Package tracing attaches a trace id to every inbound request so log lines
// for the same request can be correlated. The trace id is not stored on
// persisted response rows.
package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Config struct {
	// TraceHeader is the header name clients may set to supply their own
	// trace id. Default to "X-Trace-Id".
	TraceHeader string `conf:"trace_header" yaml:"trace_header" json:"trace_header"`
}

func DefaultConfig() Config {
	return Config{TraceHeader: "X-Trace-Id"}
}

type ctxKey int

const (
	traceIDKey ctxKey = iota
	operationNameKey
)

// GenerateTraceID generates a trace id, formatted as rp-{uuid}.
func GenerateTraceID() string {
	return fmt.Sprintf("rp-%s", uuid.New().String())
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceIDKey).(string)
	return id, ok
}

func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationNameKey, name)
}

func GetOperationName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(operationNameKey).(string)
	return name, ok
}
