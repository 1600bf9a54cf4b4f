package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// counter is a behavior that counts its runs.
type counter struct {
	name  string
	Value int
	setup int
}

func (c *counter) Setup(name string) {
	c.name = name
	c.setup++
}

func (c *counter) Run(View) { c.Value++ }

func (c *counter) Clone() Behavior {
	cp := *c
	return &cp
}

func (c *counter) Snapshot() map[string]any {
	return map[string]any{"value": c.Value}
}

func valueOf(a *Agent) int {
	if a == nil {
		return -1
	}
	return a.Behavior.(*counter).Value
}

// funcBehavior runs fn every tick.
type funcBehavior struct {
	fn func(v View)
}

func (f *funcBehavior) Setup(string) {}
func (f *funcBehavior) Run(v View) { f.fn(v) }

// envCounter counts environment runs with an atomic so tests can read it
// from any goroutine.
type envCounter struct {
	runs atomic.Int64
	seen atomic.Int64
}

func (e *envCounter) Setup(string) {}

func (e *envCounter) Run(v View) {
	e.runs.Add(1)
	if v != nil {
		e.seen.Store(int64(v.Agents(All()).Len()))
	}
}

func agentName(i int) string {
	return fmt.Sprintf("agent-%d", i)
}

// indexOf parses the index out of an agentName.
func indexOf(a *Agent) int {
	var i int
	if _, err := fmt.Sscanf(a.Name, "agent-%d", &i); err != nil {
		return -1
	}
	return i
}

func counterGenerator(i int) *Agent {
	return NewAgent(agentName(i), &counter{})
}

func newCounters(n int, storeCopies bool) *AgentContainer {
	c := NewAgentContainer(storeCopies)
	for i := range n {
		c.Add(counterGenerator(i))
	}
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
