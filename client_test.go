package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startCoordinator runs a coordinator over bus until the test ends.
func startCoordinator(t *testing.T, bus *Bus, workers int, agents *AgentContainer, env *Environment) *Dispatcher {
	t.Helper()
	d := NewDispatcher(CoordinatorName, workers, bus.Responses, agents, env, nil)
	c := NewCoordinator(d, bus.Requests, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return d
}

func TestClientUnsynchronized(t *testing.T) {
	bus := NewBus()
	c := NewClient("worker-0", CoordinatorName, bus, false)
	ctx := testContext(t)

	assert.NoError(t, c.WaitUntilAllWorkersFinishTick(ctx, 0))
	assert.NoError(t, c.WaitUntilAllWorkersUpdateCoordinator(ctx, 0))

	_, err := c.GetAgent(ctx, "agent-0")
	assert.ErrorIs(t, err, ErrNotSynchronized)
	_, err = c.GetFilteredAgents(ctx, All())
	assert.ErrorIs(t, err, ErrNotSynchronized)
	_, err = c.GetEnvironment(ctx)
	assert.ErrorIs(t, err, ErrNotSynchronized)

	c.PushAgents(newCounters(2, false))
	assert.Equal(t, 0, bus.Requests.Len(), "nothing is sent without a coordinator")
}

func TestClientReads(t *testing.T) {
	bus := NewBus()
	env := NewEnvironment("env", nil)
	startCoordinator(t, bus, 1, newCounters(3, false), env)
	c := NewClient("worker-0", CoordinatorName, bus, true)
	ctx := testContext(t)

	a, err := c.GetAgent(ctx, "agent-2")
	require.NoError(t, err)
	assert.Equal(t, "agent-2", a.Name)

	_, err = c.GetAgent(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)

	all, err := c.GetFilteredAgents(ctx, All())
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())

	got, err := c.GetEnvironment(ctx)
	require.NoError(t, err)
	assert.Same(t, env, got)
}

func TestClientPushThenRead(t *testing.T) {
	bus := NewBus()
	startCoordinator(t, bus, 1, NewAgentContainer(false), nil)
	c := NewClient("worker-0", CoordinatorName, bus, true)
	ctx := testContext(t)

	pushed := NewAgentContainer(false)
	pushed.Add(NewAgent("x", &counter{Value: 3}))
	c.PushAgents(pushed)

	// Requests are handled in order, so the push lands before the read.
	a, err := c.GetAgent(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 3, valueOf(a))
}

func TestClientRequestTimeout(t *testing.T) {
	bus := NewBus()
	c := NewClient("worker-0", CoordinatorName, bus, true, WithRequestTimeout(20*time.Millisecond))

	_, err := c.GetAgent(context.Background(), "agent-0")
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestClientBarrierTimeout(t *testing.T) {
	bus := NewBus()
	startCoordinator(t, bus, 2, NewAgentContainer(false), nil)
	c := NewClient("worker-0", CoordinatorName, bus, true, WithBarrierTimeout(30*time.Millisecond))

	err := c.WaitUntilAllWorkersFinishTick(context.Background(), 0)
	assert.ErrorIs(t, err, ErrBarrierTimeout)
}

func TestClientBarrierCancelled(t *testing.T) {
	bus := NewBus()
	startCoordinator(t, bus, 2, NewAgentContainer(false), nil)
	c := NewClient("worker-0", CoordinatorName, bus, true)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := c.WaitUntilAllWorkersFinishTick(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrBarrierTimeout)
}

func TestClientDropsStaleResponse(t *testing.T) {
	bus := NewBus()
	c := NewClient("worker-0", CoordinatorName, bus, true)
	ctx := testContext(t)

	// A late answer to an earlier request is already waiting.
	bus.Responses.Put(NewResponse(CoordinatorName, "worker-0", "old-request",
		AgentReply{Agent: NewAgent("stale", &counter{})}))

	go func() {
		req, err := bus.Requests.Take(ctx)
		if err != nil {
			return
		}
		bus.Responses.Put(NewResponse(CoordinatorName, req.Requester, req.ID,
			AgentReply{Agent: NewAgent("fresh", &counter{})}))
	}()

	a, err := c.GetAgent(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", a.Name)
	assert.Equal(t, 0, bus.Responses.Len())
}

func TestClientBarrierReleasesAllWorkers(t *testing.T) {
	const workers = 4
	bus := NewBus()
	startCoordinator(t, bus, workers, NewAgentContainer(false), nil)
	ctx := testContext(t)

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		c := NewClient(WorkerName(i), CoordinatorName, bus, true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tick := range 5 {
				if err := c.WaitUntilAllWorkersFinishTick(ctx, tick); err != nil {
					errs[i] = err
					return
				}
				if err := c.WaitUntilAllWorkersUpdateCoordinator(ctx, tick); err != nil {
					errs[i] = err
					return
				}
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, 0, bus.Responses.Len())
}

func TestClientPurgesAnswersToAbandonedRequests(t *testing.T) {
	bus := NewBus()
	c := NewClient("worker-0", CoordinatorName, bus, true, WithRequestTimeout(20*time.Millisecond))
	ctx := testContext(t)

	_, err := c.GetAgent(ctx, "slow")
	require.ErrorIs(t, err, ErrRequestTimeout)
	assert.Equal(t, 1, c.Pending())

	// The coordinator answers after the worker stopped waiting.
	late, err := bus.Requests.Take(ctx)
	require.NoError(t, err)
	bus.Responses.Put(NewResponse(CoordinatorName, late.Requester, late.ID,
		AgentReply{Agent: NewAgent("slow", &counter{})}))
	bus.Responses.Put(NewResponse(CoordinatorName, "worker-1", "other", EnvironmentReply{}))

	go func() {
		req, err := bus.Requests.Take(ctx)
		if err != nil {
			return
		}
		bus.Responses.Put(NewResponse(CoordinatorName, req.Requester, req.ID, EnvironmentReply{}))
	}()

	// A request of another kind never scans for the late answer, yet it is purged.
	_, err = c.GetEnvironment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Pending())
	require.Equal(t, 1, bus.Responses.Len(), "only the other worker's response remains")
	left, err := bus.Responses.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", left.Destination)
}
