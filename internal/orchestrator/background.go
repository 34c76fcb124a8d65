package orchestrator

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/kestrelhq/respond/internal/log"
)

// BackgroundPool bounds the number of concurrently running background-mode
// provider calls so a burst of background=true requests cannot unbound
// the process's outbound connection count.
type BackgroundPool struct {
	sem *semaphore.Weighted
}

func NewBackgroundPool(capacity int64) *BackgroundPool {
	return &BackgroundPool{sem: semaphore.NewWeighted(capacity)}
}

// Submit runs task on its own goroutine, detached from the caller's
// request context, once a pool slot is free. The context passed to task
// carries no deadline tied to the original HTTP request, since the
// deferred call must be able to outlive it.
func (p *BackgroundPool) Submit(task func(ctx context.Context)) {
	go func() {
		ctx := context.Background()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			log.Error(ctx, "background pool acquire failed", log.Cause(err))
			return
		}
		defer p.sem.Release(1)

		task(ctx)
	}()
}
