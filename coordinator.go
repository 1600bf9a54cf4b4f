package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Coordinator drains the request queue on a single goroutine and hands each
// request to its Dispatcher. All mutation of the global view happens here.
type Coordinator struct {
	dispatcher *Dispatcher
	requests   *Queue[Request]
	logger     *slog.Logger

	handled int
	mu      sync.Mutex
	done    chan struct{}
}

// NewCoordinator creates a coordinator reading from requests.
func NewCoordinator(d *Dispatcher, requests *Queue[Request], logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		dispatcher: d,
		requests:   requests,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run dispatches requests until ctx is cancelled. Cancellation is the normal
// way to stop a coordinator, so it returns nil in that case.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	c.logger.Debug("coordinator: started", "name", c.dispatcher.Name())
	for {
		req, err := c.requests.Take(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				c.logger.Debug("coordinator: stopped", "handled", c.Handled())
				return nil
			}
			return err
		}

		c.logger.Debug("coordinator: request", "requester", req.Requester, "kind", req.Kind())
		c.dispatcher.Dispatch(req)

		c.mu.Lock()
		c.handled++
		c.mu.Unlock()
	}
}

// Done is closed when Run returns.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Handled returns how many requests have been dispatched.
func (c *Coordinator) Handled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handled
}
