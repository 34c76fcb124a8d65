package log

import (
	"context"

	"github.com/kestrelhq/respond/internal/tracing"
)

// traceFields is the default hook: it attaches the request's trace id and
// operation name (if present in ctx) to every log line.
func traceFields(ctx context.Context, _ string) []Field {
	var fields []Field

	if id, ok := tracing.GetTraceID(ctx); ok {
		fields = append(fields, String("trace_id", id))
	}

	if name, ok := tracing.GetOperationName(ctx); ok {
		fields = append(fields, String("operation_name", name))
	}

	return fields
}
