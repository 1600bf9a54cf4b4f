package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentContainerAddReplaces(t *testing.T) {
	c := NewAgentContainer(false)
	a := NewAgent("a", &counter{})
	c.Add(a)
	c.Add(NewAgent("b", &counter{}))

	replacement := NewAgent("a", &counter{Value: 7})
	c.Add(replacement)

	assert.Equal(t, 2, c.Len())
	assert.Same(t, replacement, c.Get("a"))
	assert.Equal(t, []string{"a", "b"}, c.Names())
}

func TestAgentContainerGetMissing(t *testing.T) {
	c := newCounters(3, false)
	assert.Nil(t, c.Get("nope"))
	assert.False(t, c.Exists("nope"))
	assert.True(t, c.Exists("agent-2"))
	assert.Equal(t, "agent-1", c.At(1).Name)
}

func TestAgentContainerFilterKeepsOrder(t *testing.T) {
	c := newCounters(10, true)
	even := Where("even", func(a *Agent) bool {
		return indexOf(a)%2 == 0
	})

	got := c.Filter(even)
	assert.Equal(t, []string{"agent-0", "agent-2", "agent-4", "agent-6", "agent-8"}, got.Names())
	assert.True(t, got.StoresCopies())
	assert.Same(t, c.Get("agent-2"), got.Get("agent-2"))
}

func TestAgentContainerDuplicate(t *testing.T) {
	tests := []struct {
		name        string
		storeCopies bool
	}{
		{"references", false},
		{"copies", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCounters(3, tt.storeCopies)
			dup := c.Duplicate()
			require.Equal(t, c.Names(), dup.Names())

			c.Get("agent-0").Behavior.(*counter).Value = 42
			if tt.storeCopies {
				assert.NotSame(t, c.Get("agent-0"), dup.Get("agent-0"))
				assert.Equal(t, 0, valueOf(dup.Get("agent-0")))
			} else {
				assert.Same(t, c.Get("agent-0"), dup.Get("agent-0"))
				assert.Equal(t, 42, valueOf(dup.Get("agent-0")))
			}
		})
	}
}

func TestAgentContainerSnapshotAlwaysCopies(t *testing.T) {
	c := newCounters(2, false)
	snap := c.Snapshot()

	c.Get("agent-1").Run()
	assert.Equal(t, 1, valueOf(c.Get("agent-1")))
	assert.Equal(t, 0, valueOf(snap.Get("agent-1")))
}

func TestAgentContainerUpdate(t *testing.T) {
	c := newCounters(2, false)
	other := NewAgentContainer(false)
	other.Add(NewAgent("agent-1", &counter{Value: 5}))
	other.Add(NewAgent("agent-9", &counter{}))

	c.Update(other)

	assert.Equal(t, []string{"agent-0", "agent-1", "agent-9"}, c.Names())
	assert.Equal(t, 5, valueOf(c.Get("agent-1")))
}

func TestAgentContainerAgentsIsACopy(t *testing.T) {
	c := newCounters(2, false)
	list := c.Agents()
	list[0] = nil
	assert.NotNil(t, c.At(0))
}
