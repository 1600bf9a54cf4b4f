package sim

import (
	"context"
	"slices"
	"sync"
)

// Queue is an unbounded FIFO safe for any number of producers and consumers.
// Put never blocks. Take and TakeMatch block until an item is available or
// the context is done.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T

	// changed is closed and replaced on every Put so that all blocked
	// takers rescan; a selective taker must never miss a wake-up meant for it.
	changed chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		items:   make([]T, 0),
		changed: make(chan struct{}),
	}
}

// Put appends v and wakes every blocked taker.
func (q *Queue[T]) Put(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	close(q.changed)
	q.changed = make(chan struct{})
	q.mu.Unlock()
}

// Take removes and returns the oldest item.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	return q.TakeMatch(ctx, nil)
}

// TakeMatch removes and returns the oldest item for which match returns true.
// Items that do not match stay in the queue in their original order, where
// other takers can claim them. A nil match accepts any item.
func (q *Queue[T]) TakeMatch(ctx context.Context, match func(T) bool) (T, error) {
	for {
		q.mu.Lock()
		for i, v := range q.items {
			if match != nil && !match(v) {
				continue
			}
			q.items = slices.Delete(q.items, i, i+1)
			q.mu.Unlock()
			return v, nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-changed:
		}
	}
}

// Remove deletes every queued item for which match returns true without
// blocking and reports how many were removed.
func (q *Queue[T]) Remove(match func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = slices.DeleteFunc(q.items, match)
	return n - len(q.items)
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
