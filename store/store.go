// Package store persists the per-tick state recorded by simulation workers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend kinds accepted by Open.
const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
)

// Standard errors
var (
	ErrUnknownKind = errors.New("unknown store kind")
	ErrClosed      = errors.New("store closed")
)

// Record is the state of one agent at one recorded tick.
type Record struct {
	RunID      string         `json:"run_id"`
	Tick       int            `json:"tick"`
	Worker     string         `json:"worker"`
	Agent      string         `json:"agent"`
	Values     map[string]any `json:"values"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// Backend receives records from workers. Implementations must be safe for
// concurrent use since every worker appends from its own goroutine.
type Backend interface {
	// Append stores a batch of records.
	Append(ctx context.Context, records []Record) error

	// Records returns every record of a run ordered by tick, then insertion.
	Records(ctx context.Context, runID string) ([]Record, error)

	// Runs returns the distinct run IDs, oldest first.
	Runs(ctx context.Context) ([]string, error)

	// Clear deletes every record and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	// Close releases the backend.
	Close() error
}

// Open returns the backend of the given kind. path is only used by on-disk
// backends.
func Open(kind, path string) (Backend, error) {
	switch kind {
	case "", KindMemory:
		return NewMemory(), nil
	case KindSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite store: path is required")
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
