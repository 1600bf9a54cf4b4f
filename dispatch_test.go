package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(workers int, storeCopies bool) (*Dispatcher, *Queue[Response], *envCounter) {
	responses := NewQueue[Response]()
	env := &envCounter{}
	d := NewDispatcher(CoordinatorName, workers, responses, newCounters(4, storeCopies),
		NewEnvironment("env", env), nil)
	return d, responses, env
}

func drain(q *Queue[Response]) []Response {
	var out []Response
	for q.Len() > 0 {
		r, _ := q.Take(context.Background())
		out = append(out, r)
	}
	return out
}

func TestDispatchAgentAccess(t *testing.T) {
	tests := []struct {
		name        string
		storeCopies bool
		target      string
		found       bool
	}{
		{"found shared", false, "agent-1", true},
		{"found copy", true, "agent-1", true},
		{"missing", false, "ghost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, responses, _ := newTestDispatcher(2, tt.storeCopies)
			req := NewRequest("worker-0", CoordinatorName, AgentAccess{Target: tt.target})
			d.Dispatch(req)

			out := drain(responses)
			require.Len(t, out, 1)
			assert.Equal(t, "worker-0", out[0].Destination)
			assert.Equal(t, req.ID, out[0].RequestID)
			reply, ok := out[0].Body.(AgentReply)
			require.True(t, ok)

			if !tt.found {
				assert.Nil(t, reply.Agent)
				return
			}
			require.NotNil(t, reply.Agent)
			assert.Equal(t, tt.target, reply.Agent.Name)
			if tt.storeCopies {
				assert.NotSame(t, d.Agents().Get(tt.target), reply.Agent)
			} else {
				assert.Same(t, d.Agents().Get(tt.target), reply.Agent)
			}
		})
	}
}

func TestDispatchFilteredAgentsAccess(t *testing.T) {
	d, responses, _ := newTestDispatcher(1, false)
	d.Dispatch(NewRequest("worker-0", CoordinatorName, FilteredAgentsAccess{Filter: NamePrefix("agent-")}))
	d.Dispatch(NewRequest("worker-0", CoordinatorName, FilteredAgentsAccess{Filter: NamePrefix("zzz")}))

	out := drain(responses)
	require.Len(t, out, 2)
	assert.Equal(t, 4, out[0].Body.(FilteredAgentsReply).Agents.Len())
	assert.Equal(t, 0, out[1].Body.(FilteredAgentsReply).Agents.Len())
}

func TestDispatchEnvironmentAccess(t *testing.T) {
	d, responses, _ := newTestDispatcher(1, false)
	d.Dispatch(NewRequest("worker-0", CoordinatorName, EnvironmentAccess{}))

	out := drain(responses)
	require.Len(t, out, 1)
	assert.Same(t, d.Environment(), out[0].Body.(EnvironmentReply).Environment)
}

func TestDispatchUpdateCoordinatorAgents(t *testing.T) {
	d, responses, _ := newTestDispatcher(1, false)

	pushed := NewAgentContainer(false)
	pushed.Add(NewAgent("agent-0", &counter{Value: 9}))
	pushed.Add(NewAgent("agent-new", &counter{}))
	d.Dispatch(NewRequest("worker-0", CoordinatorName, UpdateCoordinatorAgents{Agents: pushed}))

	assert.Equal(t, 0, responses.Len(), "push has no response")
	assert.Equal(t, 5, d.Agents().Len())
	assert.Equal(t, 9, valueOf(d.Agents().Get("agent-0")))
}

func TestDispatchBarrierReleasesOnlyWhenAllArrive(t *testing.T) {
	const workers = 3
	d, responses, env := newTestDispatcher(workers, false)

	for round := range 3 {
		for w := range workers - 1 {
			d.Dispatch(NewRequest(WorkerName(w), CoordinatorName, AllWorkersFinishTick{Tick: round}))
			assert.Equal(t, 0, responses.Len(), "released early in round %d", round)
		}
		assert.Equal(t, workers-1, d.Waiting(KindAllWorkersFinishTick))

		d.Dispatch(NewRequest(WorkerName(workers-1), CoordinatorName, AllWorkersFinishTick{Tick: round}))

		out := drain(responses)
		require.Len(t, out, workers)
		dests := make(map[string]bool)
		for _, r := range out {
			release, ok := r.Body.(BarrierRelease)
			require.True(t, ok)
			assert.Equal(t, KindAllWorkersFinishTick, release.Barrier)
			assert.Equal(t, round, release.Tick)
			dests[r.Destination] = true
		}
		assert.Len(t, dests, workers, "one release per worker")
		assert.Equal(t, 0, d.Waiting(KindAllWorkersFinishTick), "barrier resets")
	}

	assert.Equal(t, int64(0), env.runs.Load(), "finish barrier never runs the environment")
}

func TestDispatchUpdateBarrierRunsEnvironmentOnce(t *testing.T) {
	d, responses, env := newTestDispatcher(2, false)

	d.Dispatch(NewRequest("worker-0", CoordinatorName, AllWorkersUpdateCoordinator{Tick: 0}))
	assert.Equal(t, int64(0), env.runs.Load())

	d.Dispatch(NewRequest("worker-1", CoordinatorName, AllWorkersUpdateCoordinator{Tick: 0}))
	assert.Equal(t, int64(1), env.runs.Load())
	assert.Equal(t, int64(4), env.seen.Load(), "environment sees the shared container")
	assert.Len(t, drain(responses), 2)

	d.Dispatch(NewRequest("worker-1", CoordinatorName, AllWorkersUpdateCoordinator{Tick: 1}))
	d.Dispatch(NewRequest("worker-0", CoordinatorName, AllWorkersUpdateCoordinator{Tick: 1}))
	assert.Equal(t, int64(2), env.runs.Load())
	assert.Equal(t, 2, d.Environment().Runs())
}

func TestDispatchDuplicateArrivalIgnored(t *testing.T) {
	d, responses, _ := newTestDispatcher(2, false)

	d.Dispatch(NewRequest("worker-0", CoordinatorName, AllWorkersFinishTick{Tick: 0}))
	d.Dispatch(NewRequest("worker-0", CoordinatorName, AllWorkersFinishTick{Tick: 0}))
	assert.Equal(t, 1, d.Waiting(KindAllWorkersFinishTick))
	assert.Equal(t, 0, responses.Len())

	d.Dispatch(NewRequest("worker-1", CoordinatorName, AllWorkersFinishTick{Tick: 0}))
	assert.Len(t, drain(responses), 2)
}

func TestDispatchBarriersAreIndependent(t *testing.T) {
	d, responses, _ := newTestDispatcher(2, false)

	d.Dispatch(NewRequest("worker-0", CoordinatorName, AllWorkersFinishTick{Tick: 0}))
	d.Dispatch(NewRequest("worker-1", CoordinatorName, AllWorkersUpdateCoordinator{Tick: 0}))
	assert.Equal(t, 0, responses.Len())
	assert.Equal(t, 1, d.Waiting(KindAllWorkersFinishTick))
	assert.Equal(t, 1, d.Waiting(KindAllWorkersUpdateCoordinator))
}

func TestDispatchRecoversFromPanickingReads(t *testing.T) {
	panicky := Where("panicky", func(*Agent) bool { panic("bad predicate") })

	tests := []struct {
		name string
		body RequestBody
		want func(t *testing.T, body ResponseBody)
	}{
		{
			name: "filter",
			body: FilteredAgentsAccess{Filter: panicky},
			want: func(t *testing.T, body ResponseBody) {
				reply, ok := body.(FilteredAgentsReply)
				require.True(t, ok)
				require.NotNil(t, reply.Agents)
				assert.Equal(t, 0, reply.Agents.Len())
			},
		},
		{
			name: "agent clone",
			body: AgentAccess{Target: "bomb"},
			want: func(t *testing.T, body ResponseBody) {
				reply, ok := body.(AgentReply)
				require.True(t, ok)
				assert.Nil(t, reply.Agent)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, responses, _ := newTestDispatcher(1, true)
			d.Agents().Add(NewAgent("bomb", &panickyClone{}))

			req := NewRequest("worker-0", CoordinatorName, tt.body)
			require.NotPanics(t, func() { d.Dispatch(req) })

			out := drain(responses)
			require.Len(t, out, 1)
			assert.Equal(t, req.ID, out[0].RequestID)
			tt.want(t, out[0].Body)
		})
	}
}

// panickyClone fails whenever the coordinator copies it.
type panickyClone struct{}

func (*panickyClone) Setup(string)    {}
func (*panickyClone) Run(View)        {}
func (*panickyClone) Clone() Behavior { panic("cannot copy") }

func TestDispatchPanickingEnvironmentStillReleases(t *testing.T) {
	responses := NewQueue[Response]()
	env := NewEnvironment("env", &funcBehavior{fn: func(View) { panic("env failed") }})
	d := NewDispatcher(CoordinatorName, 2, responses, newCounters(2, false), env, discardLogger())

	d.Dispatch(NewRequest("worker-0", CoordinatorName, AllWorkersUpdateCoordinator{Tick: 0}))
	require.NotPanics(t, func() {
		d.Dispatch(NewRequest("worker-1", CoordinatorName, AllWorkersUpdateCoordinator{Tick: 0}))
	})

	assert.Len(t, drain(responses), 2, "both workers are released")
	assert.Equal(t, 0, d.Waiting(KindAllWorkersUpdateCoordinator))
	assert.Equal(t, 1, env.Runs())
}
