package llmcore

import (
	"context"

	"github.com/kestrelhq/respond/internal/streams"
)

// Adapter translates normalized CompletionRequests to and from one
// upstream backend's wire protocol. Implementations are stateless aside
// from their own Config and are safe for concurrent use; the orchestrator
// calls Complete or Stream once per model turn.
type Adapter interface {
	// Name identifies the backend kind, e.g. "anthropic" or "openai_compat".
	Name() string

	// Complete executes a non-streaming turn.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// Stream executes a streaming turn. The returned stream yields
	// ProviderEvents in arrival order and terminates with an
	// EventMessageDone event on success.
	Stream(ctx context.Context, req *CompletionRequest) (streams.Stream[*ProviderEvent], error)
}

// ModelRoute is the resolved destination for a model alias: which adapter
// handles it and what name to send upstream.
type ModelRoute struct {
	Adapter         Adapter
	UnderlyingModel string
}
