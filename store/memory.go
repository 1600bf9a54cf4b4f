package store

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// Memory keeps records in process memory.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	runs    []string
	closed  bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores copies of the records.
func (m *Memory) Append(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	now := time.Now()
	for _, r := range records {
		if r.RecordedAt.IsZero() {
			r.RecordedAt = now
		}
		r.Values = maps.Clone(r.Values)
		if !slices.Contains(m.runs, r.RunID) {
			m.runs = append(m.runs, r.RunID)
		}
		m.records = append(m.records, r)
	}
	return nil
}

// Records returns the records of runID ordered by tick.
func (m *Memory) Records(ctx context.Context, runID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Record
	for _, r := range m.records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return a.Tick - b.Tick
	})
	return out, nil
}

// Runs returns run IDs in the order they were first seen.
func (m *Memory) Runs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.runs), nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Clear deletes every record.
func (m *Memory) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	m.records = nil
	m.runs = nil
	return n, nil
}

// Close marks the backend closed. Later appends fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
