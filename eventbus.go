package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event represents a worker lifecycle event.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Worker    string    `json:"worker"`
	Tick      int       `json:"tick"`
	Timestamp time.Time `json:"timestamp"`

	// For failure events
	Error string `json:"error,omitempty"`
}

// EventType identifies the kind of event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventTick      EventType = "tick"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// EventHandler receives events. Workers call it from their own goroutines,
// so it must be safe for concurrent use.
type EventHandler func(Event)

// EventLog appends events to a file, one JSON object per line.
type EventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// OpenEventLog opens (or creates) the log at path. A leading ~ is expanded
// to the home directory.
func OpenEventLog(path string) (*EventLog, error) {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create event dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &EventLog{path: path, file: f}, nil
}

// Path returns the file the log writes to.
func (l *EventLog) Path() string {
	return l.path
}

// Handle writes ev. It is an EventHandler.
func (l *EventLog) Handle(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.Write(append(data, '\n'))
}

// Close closes the underlying file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// ReadEvents reads back a log written by EventLog. Lines that do not decode
// are skipped.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, scanner.Err()
}

// EventCollector keeps events in memory.
type EventCollector struct {
	mu     sync.Mutex
	events []Event
}

// Handle records ev. It is an EventHandler.
func (c *EventCollector) Handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of everything collected so far.
func (c *EventCollector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Count returns how many collected events have type t.
func (c *EventCollector) Count(t EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}
