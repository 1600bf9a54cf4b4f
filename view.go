package sim

import (
	"context"
	"errors"
	"log/slog"
)

// workerView resolves what behaviors on one worker can see. Local agents win
// over anything the coordinator knows; remote reads go through the cache when
// one is configured. It is used only from the worker goroutine.
type workerView struct {
	ctx         context.Context
	local       *AgentContainer
	client      *Client
	cache       *WorkerCache
	environment *Environment
	tick        int
	pending     []*Agent
	logger      *slog.Logger
}

func newWorkerView(local *AgentContainer, client *Client, cache *WorkerCache, env *Environment, logger *slog.Logger) *workerView {
	return &workerView{
		ctx:         context.Background(),
		local:       local,
		client:      client,
		cache:       cache,
		environment: env,
		logger:      logger,
	}
}

func (w *workerView) agent(name string) *Agent {
	if a := w.local.Get(name); a != nil {
		return a
	}
	if w.cache != nil {
		if a, ok := w.cache.Agent(name); ok {
			return a
		}
	}
	if !w.client.Synced() {
		return nil
	}

	a, err := w.client.GetAgent(w.ctx, name)
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			w.logger.Debug("view: agent not found", "agent", name, "tick", w.tick)
		} else {
			w.logger.Warn("view: agent read failed", "agent", name, "tick", w.tick, "error", err)
		}
		return nil
	}
	if w.cache != nil {
		w.cache.PutAgent(a)
	}
	return a
}

func (w *workerView) agents(f Filter) *AgentContainer {
	local := w.local.Filter(f)
	if !w.client.Synced() {
		return local
	}

	remote, ok := (*AgentContainer)(nil), false
	if w.cache != nil {
		remote, ok = w.cache.Filtered(f)
	}
	if !ok {
		var err error
		remote, err = w.client.GetFilteredAgents(w.ctx, f)
		if err != nil {
			w.logger.Warn("view: filtered read failed", "filter", f.Key, "tick", w.tick, "error", err)
			return local
		}
		if w.cache != nil {
			w.cache.PutFiltered(f, remote)
		}
	}

	// The coordinator's copy of our own agents is a tick old.
	out := NewAgentContainer(w.local.StoresCopies())
	out.AddContainer(remote)
	out.AddContainer(local)
	return out
}

func (w *workerView) env() *Environment {
	if w.environment != nil {
		return w.environment
	}
	if w.cache != nil {
		if e, ok := w.cache.Environment(); ok {
			return e
		}
	}
	if !w.client.Synced() {
		return nil
	}

	e, err := w.client.GetEnvironment(w.ctx)
	if err != nil {
		w.logger.Warn("view: environment read failed", "tick", w.tick, "error", err)
		return nil
	}
	if w.cache != nil {
		w.cache.PutEnvironment(e)
	}
	return e
}

func (w *workerView) put(a *Agent) {
	if a == nil {
		return
	}
	w.pending = append(w.pending, a)
}

// flush merges staged writes into the local container. Agents that were not
// there before are bound to this worker and set up.
func (w *workerView) flush() int {
	n := len(w.pending)
	for _, a := range w.pending {
		fresh := !w.local.Exists(a.Name)
		a.bind(w.forAgent(a))
		w.local.Add(a)
		if fresh {
			a.Setup()
		}
	}
	clear(w.pending)
	w.pending = w.pending[:0]
	return n
}

func (w *workerView) forAgent(a *Agent) View {
	return &elementView{w: w, self: a}
}

// elementView is the View handed to a single agent or, with a nil self, to
// the environment owned by an unsynchronized worker.
type elementView struct {
	w    *workerView
	self *Agent
}

func (v *elementView) Self() *Agent { return v.self }
func (v *elementView) Tick() int { return v.w.tick }
func (v *elementView) Agent(name string) *Agent { return v.w.agent(name) }
func (v *elementView) Agents(f Filter) *AgentContainer { return v.w.agents(f) }
func (v *elementView) Environment() *Environment { return v.w.env() }
func (v *elementView) Put(a *Agent) { v.w.put(a) }
