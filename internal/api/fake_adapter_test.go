package api

import (
	"context"

	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/orchestrator"
	"github.com/kestrelhq/respond/internal/store"
	"github.com/kestrelhq/respond/internal/streams"
)

// fakeAdapter stands in for a real provider backend in handler tests, the
// same role orchestrator's own fakeAdapter plays one package over.
type fakeAdapter struct {
	completeResult *llmcore.CompletionResult
	completeErr    error
	streamEvents   []*llmcore.ProviderEvent
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Complete(_ context.Context, _ *llmcore.CompletionRequest) (*llmcore.CompletionResult, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}

	return f.completeResult, nil
}

func (f *fakeAdapter) Stream(_ context.Context, _ *llmcore.CompletionRequest) (streams.Stream[*llmcore.ProviderEvent], error) {
	return streams.SliceStream(f.streamEvents), nil
}

func newTestOrchestrator(adapter llmcore.Adapter) *orchestrator.Orchestrator {
	resolver := llmcore.NewResolver()
	resolver.Register("", "test", []string{"test-model-responses"}, func(string) (llmcore.Adapter, error) { return adapter, nil })

	return orchestrator.New(resolver, store.NewMemory(), 0, orchestrator.NewBackgroundPool(1))
}
