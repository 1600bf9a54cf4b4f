package sim

import (
	"fmt"
	"log/slog"
)

// Dispatcher owns the coordinator's global view and answers worker requests.
// It is built once per run and used only from the coordinator goroutine.
type Dispatcher struct {
	name        string
	workers     int
	responses   *Queue[Response]
	agents      *AgentContainer
	environment *Environment
	barriers    map[Kind]*barrier
	tick        int
	logger      *slog.Logger
}

// barrier collects distinct requesters until all workers have arrived.
type barrier struct {
	waiting []waiter
	seen    map[string]bool
}

type waiter struct {
	name      string
	requestID string
	tick      int
}

// NewDispatcher creates a dispatcher for workers workers answering on responses.
// agents is the shared container the coordinator merges pushed agents into.
func NewDispatcher(name string, workers int, responses *Queue[Response], agents *AgentContainer, env *Environment, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		name:        name,
		workers:     workers,
		responses:   responses,
		agents:      agents,
		environment: env,
		barriers: map[Kind]*barrier{
			KindAllWorkersFinishTick:        newBarrier(),
			KindAllWorkersUpdateCoordinator: newBarrier(),
		},
		logger: logger,
	}
	if env != nil {
		env.bind(&coordinatorView{d: d})
	}
	return d
}

func newBarrier() *barrier {
	return &barrier{seen: make(map[string]bool)}
}

// Name returns the coordinator name used as requester on responses.
func (d *Dispatcher) Name() string {
	return d.name
}

// Agents returns the shared container.
func (d *Dispatcher) Agents() *AgentContainer {
	return d.agents
}

// Environment returns the shared environment.
func (d *Dispatcher) Environment() *Environment {
	return d.environment
}

// Waiting returns how many workers are waiting on the barrier of kind k.
func (d *Dispatcher) Waiting(k Kind) int {
	b, ok := d.barriers[k]
	if !ok {
		return 0
	}
	return len(b.waiting)
}

// Dispatch handles one request. A panic raised by user code while answering
// a read (a filter predicate, an agent clone) is logged and the requester
// gets an empty reply.
func (d *Dispatcher) Dispatch(req Request) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("coordinator: request panicked",
				"requester", req.Requester, "type", fmt.Sprintf("%T", req.Body), "panic", r)
			if reply := emptyReply(req.Body); reply != nil {
				d.respond(req, reply)
			}
		}
	}()

	switch body := req.Body.(type) {
	case AgentAccess:
		d.agentAccess(req, body)
	case FilteredAgentsAccess:
		d.filteredAgentsAccess(req, body)
	case EnvironmentAccess:
		d.environmentAccess(req)
	case UpdateCoordinatorAgents:
		d.updateCoordinatorAgents(req, body)
	case AllWorkersFinishTick:
		d.arrive(req, KindAllWorkersFinishTick, body.Tick, nil)
	case AllWorkersUpdateCoordinator:
		d.arrive(req, KindAllWorkersUpdateCoordinator, body.Tick, d.runEnvironment)
	default:
		d.logger.Warn("coordinator: dropping request with unknown body",
			"requester", req.Requester, "type", fmt.Sprintf("%T", req.Body))
	}
}

func (d *Dispatcher) agentAccess(req Request, body AgentAccess) {
	a := d.agents.Get(body.Target)
	if a != nil && d.agents.StoresCopies() {
		a = a.Clone()
	}
	d.respond(req, AgentReply{Agent: a})
}

func (d *Dispatcher) filteredAgentsAccess(req Request, body FilteredAgentsAccess) {
	d.respond(req, FilteredAgentsReply{Agents: d.agents.Filter(body.Filter).Duplicate()})
}

func (d *Dispatcher) environmentAccess(req Request) {
	env := d.environment
	if env != nil && d.agents.StoresCopies() {
		env = env.Clone()
	}
	d.respond(req, EnvironmentReply{Environment: env})
}

func (d *Dispatcher) updateCoordinatorAgents(req Request, body UpdateCoordinatorAgents) {
	if body.Agents == nil {
		return
	}
	d.agents.Update(body.Agents)
	d.logger.Debug("coordinator: merged agents", "requester", req.Requester, "count", body.Agents.Len())
}

// arrive records req on the barrier of kind k. The worker that completes the
// set triggers onRelease, then every waiter gets exactly one release.
func (d *Dispatcher) arrive(req Request, k Kind, tick int, onRelease func(tick int)) {
	b := d.barriers[k]
	if b.seen[req.Requester] {
		d.logger.Warn("coordinator: duplicate barrier arrival ignored",
			"requester", req.Requester, "barrier", k, "tick", tick)
		return
	}
	b.seen[req.Requester] = true
	b.waiting = append(b.waiting, waiter{name: req.Requester, requestID: req.ID, tick: tick})

	if len(b.waiting) < d.workers {
		return
	}

	if onRelease != nil {
		onRelease(tick)
	}
	for _, w := range b.waiting {
		d.responses.Put(NewResponse(d.name, w.name, w.requestID, BarrierRelease{Barrier: k, Tick: w.tick}))
	}
	d.logger.Debug("coordinator: barrier released", "barrier", k, "tick", tick, "workers", len(b.waiting))

	b.waiting = b.waiting[:0]
	clear(b.seen)
}

// runEnvironment runs the environment once. A panicking environment is
// logged so that the barrier still releases.
func (d *Dispatcher) runEnvironment(tick int) {
	d.tick = tick
	if d.environment == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("coordinator: environment panicked", "tick", tick, "panic", r)
		}
	}()
	d.environment.Run()
}

// emptyReply is the answer to a read whose handler failed, or nil when the
// request expects no answer.
func emptyReply(body RequestBody) ResponseBody {
	switch body.(type) {
	case AgentAccess:
		return AgentReply{}
	case FilteredAgentsAccess:
		return FilteredAgentsReply{Agents: NewAgentContainer(false)}
	case EnvironmentAccess:
		return EnvironmentReply{}
	default:
		return nil
	}
}

func (d *Dispatcher) respond(req Request, body ResponseBody) {
	d.responses.Put(NewResponse(d.name, req.Requester, req.ID, body))
}

// coordinatorView is the environment's view of the global state.
type coordinatorView struct {
	d *Dispatcher
}

func (v *coordinatorView) Self() *Agent { return nil }
func (v *coordinatorView) Tick() int { return v.d.tick }

func (v *coordinatorView) Agent(name string) *Agent {
	return v.d.agents.Get(name)
}

func (v *coordinatorView) Agents(f Filter) *AgentContainer {
	return v.d.agents.Filter(f)
}

func (v *coordinatorView) Environment() *Environment {
	return v.d.environment
}

func (v *coordinatorView) Put(a *Agent) {
	v.d.agents.Add(a)
}
