package orchestrator

import (
	"context"

	"github.com/kestrelhq/respond/internal/llmcore"
	"github.com/kestrelhq/respond/internal/streams"
)

// fakeAdapter scripts a single Complete result and/or a single Stream
// event sequence, standing in for a real provider backend in tests.
type fakeAdapter struct {
	completeResult *llmcore.CompletionResult
	completeErr    error
	completeFn     func(req *llmcore.CompletionRequest) (*llmcore.CompletionResult, error)

	streamEvents []*llmcore.ProviderEvent
	streamErr    error

	lastRequest *llmcore.CompletionRequest
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Complete(_ context.Context, req *llmcore.CompletionRequest) (*llmcore.CompletionResult, error) {
	f.lastRequest = req

	if f.completeFn != nil {
		return f.completeFn(req)
	}

	if f.completeErr != nil {
		return nil, f.completeErr
	}

	return f.completeResult, nil
}

func (f *fakeAdapter) Stream(_ context.Context, req *llmcore.CompletionRequest) (streams.Stream[*llmcore.ProviderEvent], error) {
	f.lastRequest = req

	if f.streamErr != nil {
		return nil, f.streamErr
	}

	return streams.SliceStream(f.streamEvents), nil
}

// abortingStream reports Next()==false with Err() set to the given cause,
// simulating a provider stream that terminates mid-turn on client
// cancellation or a deadline.
type abortingStream struct {
	emitted []*llmcore.ProviderEvent
	index   int
	cause   error
}

func (s *abortingStream) Next() bool {
	s.index++
	return s.index <= len(s.emitted)
}

func (s *abortingStream) Current() *llmcore.ProviderEvent { return s.emitted[s.index-1] }

func (s *abortingStream) Err() error {
	if s.index > len(s.emitted) {
		return s.cause
	}

	return nil
}

func (s *abortingStream) Close() error { return nil }

func newResolverWithAdapter(adapter llmcore.Adapter) *llmcore.Resolver {
	resolver := llmcore.NewResolver()
	resolver.Register("", "test", []string{"test-model-responses"}, func(underlying string) (llmcore.Adapter, error) {
		return adapter, nil
	})

	return resolver
}
