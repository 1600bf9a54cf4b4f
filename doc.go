// Package sim provides a multi-core agent-based simulation engine.
//
// A simulation advances a population of named agents and one shared
// environment through discrete ticks. The population can be split across
// several workers that run in parallel and, optionally, reconcile their
// view of global state through a coordinator. It provides:
//
//   - Round-robin partitioning of agents across workers
//   - A coordinator that owns the global view and answers worker queries
//   - Two barriers per tick that keep synchronized workers in step
//   - A per-worker cache of remote reads, cleared every tick
//   - Pluggable schedulers and result stores
//
// # Quick Start
//
// Define a behavior and run a model:
//
//	type counter struct{ n int }
//
//	func (c *counter) Setup(name string) {}
//	func (c *counter) Run(v sim.View)    { c.n++ }
//
//	settings := sim.DefaultSettings()
//	settings.NumOfAgents = 100
//	settings.NumOfCores = 4
//
//	model := sim.NewModel(settings, func(i int) *sim.Agent {
//	    return sim.NewAgent(fmt.Sprintf("agent-%d", i), &counter{})
//	})
//
//	results, err := model.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(results.AgentNames)
//
// # Synchronized Runs
//
// With Settings.AreProcessesSynced set, behaviors can read agents owned by
// other workers through their View:
//
//	func (b *follower) Run(v sim.View) {
//	    leader := v.Agent("leader")
//	    if leader == nil {
//	        return // not visible this tick
//	    }
//	    ...
//	}
//
// Remote agents are the state their owner last pushed to the coordinator,
// which is the state at the end of the previous tick. Behaviors that are
// read across workers should implement Cloner so that pushed snapshots never
// share memory with the live agent.
//
// Each tick a synchronized worker:
//
//  1. runs its agents through the scheduler
//  2. waits until every worker finished the tick
//  3. merges agents staged with View.Put and pushes a snapshot to the coordinator
//  4. waits until every worker pushed; the coordinator runs the environment once
//  5. clears its cache
//
// Unsynchronized workers skip the barriers and see only their own agents. The
// first worker owns the environment.
//
// # Failure Handling
//
// A failed remote read is logged and returns nil. A barrier that does not
// release within Settings.BarrierTimeout fails the worker with
// ErrBarrierTimeout, and any worker failure cancels the others.
//
// # Thread Safety
//
// Queue, Bus, Coordinator, Model and Future are safe for concurrent use. A
// Model runs one simulation at a time: a Run or Start that overlaps another
// fails with ErrRunInProgress.
// AgentContainer, WorkerCache and Client belong to a single goroutine.
package sim
