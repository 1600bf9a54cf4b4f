package sim

import (
	"context"
	"sync"
)

// Future represents a model run in progress.
type Future struct {
	results   *Results
	err       error
	completed bool
	done      chan struct{}
	cancel    context.CancelFunc
	mu        sync.RWMutex
}

func newFuture(cancel context.CancelFunc) *Future {
	return &Future{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

func (f *Future) complete(r *Results, err error) {
	f.mu.Lock()
	f.results = r
	f.err = err
	f.completed = true
	f.mu.Unlock()
	close(f.done)
}

// Await waits for the run to complete and returns its results.
func (f *Future) Await(ctx context.Context) (*Results, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		f.mu.RLock()
		defer f.mu.RUnlock()
		return f.results, f.err
	}
}

// Done returns true if the run has completed.
func (f *Future) Done() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.completed
}

// Result returns the results if completed, or ErrNotCompleted.
func (f *Future) Result() (*Results, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.completed {
		return nil, ErrNotCompleted
	}
	return f.results, f.err
}

// Cancel stops the run. Await still returns once every worker has exited.
func (f *Future) Cancel() {
	if f.cancel != nil {
		f.cancel()
	}
}
