package sim

import (
	"errors"
	"fmt"
)

// Standard errors
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrNotSynchronized    = errors.New("run is not synchronized")
	ErrRequestTimeout     = errors.New("request timed out")
	ErrBarrierTimeout     = errors.New("barrier timed out")
	ErrUnexpectedResponse = errors.New("unexpected response payload")
	ErrInvalidSettings    = errors.New("invalid settings")
	ErrNoGenerator        = errors.New("no agent generator configured")
	ErrUnknownScheduler   = errors.New("unknown scheduler")
	ErrNotCompleted       = errors.New("run not completed")
	ErrRunInProgress      = errors.New("model is already running")
)

// WorkerError wraps a failure of one worker.
type WorkerError struct {
	Worker string
	Tick   int
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %s (tick %d): %v", e.Worker, e.Tick, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}
