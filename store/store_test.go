package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)

	backends := map[string]Backend{
		KindMemory: NewMemory(),
		KindSQLite: sqlite,
	}
	t.Cleanup(func() {
		for _, b := range backends {
			b.Close()
		}
	})
	return backends
}

func TestOpen(t *testing.T) {
	tests := []struct {
		kind    string
		path    string
		wantErr error
	}{
		{"", "", nil},
		{KindMemory, "", nil},
		{KindSQLite, "results.db", nil},
		{"postgres", "", ErrUnknownKind},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			path := tt.path
			if path != "" {
				path = filepath.Join(t.TempDir(), path)
			}
			b, err := Open(tt.kind, path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, b.Close())
		})
	}
}

func TestOpenSQLiteNeedsPath(t *testing.T) {
	_, err := Open(KindSQLite, "")
	assert.Error(t, err)
}

func TestBackendAppendAndRead(t *testing.T) {
	for kind, b := range openBackends(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, b.Append(ctx, []Record{
				{RunID: "run-a", Tick: 1, Worker: "worker-0", Agent: "x", Values: map[string]any{"opinion": 0.5}},
				{RunID: "run-a", Tick: 0, Worker: "worker-0", Agent: "x", Values: map[string]any{"opinion": 0.25}},
			}))
			require.NoError(t, b.Append(ctx, []Record{
				{RunID: "run-b", Tick: 0, Worker: "worker-1", Agent: "y", Values: map[string]any{"label": "left"}},
			}))

			records, err := b.Records(ctx, "run-a")
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, 0, records[0].Tick)
			assert.Equal(t, 1, records[1].Tick)
			assert.Equal(t, "worker-0", records[0].Worker)
			assert.Equal(t, 0.25, records[0].Values["opinion"])
			assert.False(t, records[0].RecordedAt.IsZero())

			other, err := b.Records(ctx, "run-b")
			require.NoError(t, err)
			require.Len(t, other, 1)
			assert.Equal(t, "left", other[0].Values["label"])

			runs, err := b.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"run-a", "run-b"}, runs)

			n, err := b.Clear(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
			runs, err = b.Runs(ctx)
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestBackendConcurrentAppend(t *testing.T) {
	for kind, b := range openBackends(t) {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for w := range 4 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for tick := range 5 {
						err := b.Append(ctx, []Record{{RunID: "run", Tick: tick, Worker: "w", Agent: string(rune('a' + w)), Values: map[string]any{}}})
						assert.NoError(t, err)
					}
				}()
			}
			wg.Wait()

			records, err := b.Records(ctx, "run")
			require.NoError(t, err)
			assert.Len(t, records, 20)
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	values := map[string]any{"v": 1}
	require.NoError(t, m.Append(context.Background(), []Record{{RunID: "r", Values: values}}))
	values["v"] = 2

	records, err := m.Records(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, 1, records[0].Values["v"])
	assert.Equal(t, 1, m.Len())
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Append(context.Background(), []Record{{RunID: "r"}}), ErrClosed)
}

func TestSQLiteReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, []Record{{RunID: "r", Tick: 0, Worker: "w", Agent: "a", Values: map[string]any{"n": 3}}}))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.Records(ctx, "r")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, float64(3), records[0].Values["n"], "values come back through JSON")
}
