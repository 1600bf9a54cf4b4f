package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/everydev1618/gosim/store"
)

// InitialTick is the tick number of the barrier every synchronized worker
// passes after its first push, before tick 0 starts.
const InitialTick = -1

// Worker runs the ticks of one partition.
type Worker struct {
	index     int
	name      string
	settings  Settings
	agents    *AgentContainer
	client    *Client
	cache     *WorkerCache
	scheduler Scheduler
	backend   store.Backend
	runID     string
	events    EventHandler
	logger    *slog.Logger
	view      *workerView
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerEnvironment hands the environment to the worker. Only the worker
// that owns the environment in an unsynchronized run should get one.
func WithWorkerEnvironment(env *Environment) WorkerOption {
	return func(w *Worker) {
		w.view.environment = env
	}
}

// WithWorkerScheduler sets the tick scheduler.
func WithWorkerScheduler(s Scheduler) WorkerOption {
	return func(w *Worker) {
		w.scheduler = s
	}
}

// WithWorkerStore sets the backend recorded ticks are appended to.
func WithWorkerStore(b store.Backend) WorkerOption {
	return func(w *Worker) {
		w.backend = b
	}
}

// WithWorkerRunID tags results and records with a run ID.
func WithWorkerRunID(id string) WorkerOption {
	return func(w *Worker) {
		w.runID = id
	}
}

// WithWorkerEvents sets the lifecycle event handler.
func WithWorkerEvents(h EventHandler) WorkerOption {
	return func(w *Worker) {
		w.events = h
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = l
	}
}

// WorkerName returns the name of the worker at index i.
func WorkerName(i int) string {
	return fmt.Sprintf("worker-%d", i)
}

// NewWorker creates the worker at index for the given partition. The client
// must have been created with the worker's name.
func NewWorker(index int, agents *AgentContainer, settings Settings, client *Client, opts ...WorkerOption) *Worker {
	w := &Worker{
		index:     index,
		name:      WorkerName(index),
		settings:  settings,
		agents:    agents,
		client:    client,
		scheduler: SequentialScheduler{},
		logger:    slog.Default(),
	}
	if settings.IsCacheUsed {
		w.cache = NewWorkerCache()
	}
	w.view = newWorkerView(agents, client, w.cache, nil, nil)
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("worker", w.name)
	w.view.logger = w.logger
	return w
}

// Name returns the worker name.
func (w *Worker) Name() string {
	return w.name
}

// Agents returns the worker's local partition.
func (w *Worker) Agents() *AgentContainer {
	return w.agents
}

// Cache returns the worker cache, or nil when caching is disabled.
func (w *Worker) Cache() *WorkerCache {
	return w.cache
}

// Run executes every tick and returns the worker-local results. Remote read
// failures only degrade what behaviors see; barrier and store failures stop
// the worker with a *WorkerError.
func (w *Worker) Run(ctx context.Context) (*Results, error) {
	w.view.ctx = ctx
	for _, a := range w.agents.Agents() {
		a.bind(w.view.forAgent(a))
	}
	if env := w.view.environment; env != nil {
		env.bind(w.view.forAgent(nil))
	}

	w.emit(EventStarted, InitialTick, nil)
	w.logger.Debug("worker: started", "agents", w.agents.Len(), "synced", w.client.Synced())

	if w.client.Synced() {
		w.client.PushAgents(w.agents.Snapshot())
		if err := w.client.WaitUntilAllWorkersFinishTick(ctx, InitialTick); err != nil {
			return nil, w.fail(InitialTick, err)
		}
	}

	results := NewResults(w.runID)
	total := w.settings.TotalTicks()
	for tick := 0; tick < total; tick++ {
		if err := w.tick(ctx, tick, results); err != nil {
			return nil, w.fail(tick, err)
		}
		w.emit(EventTick, tick, nil)
	}

	results.SetAgentNames(w.agents)
	stats := WorkerStats{Name: w.name, Agents: w.agents.Len(), Ticks: total}
	if w.cache != nil {
		stats.Cache = w.cache.Stats()
	}
	results.AddWorker(stats)

	w.emit(EventCompleted, total-1, nil)
	w.logger.Debug("worker: completed", "ticks", total)
	return results, nil
}

func (w *Worker) tick(ctx context.Context, tick int, results *Results) error {
	w.view.tick = tick

	if err := w.scheduler.RunTick(ctx, w.agents); err != nil {
		return fmt.Errorf("run tick: %w", err)
	}
	if env := w.view.environment; env != nil {
		env.Run()
	}

	if w.client.Synced() {
		if err := w.client.WaitUntilAllWorkersFinishTick(ctx, tick); err != nil {
			return err
		}
		w.view.flush()
		w.client.PushAgents(w.agents.Snapshot())
		if err := w.client.WaitUntilAllWorkersUpdateCoordinator(ctx, tick); err != nil {
			return err
		}
	} else {
		w.view.flush()
	}

	if w.cache != nil {
		w.cache.Clear()
	}

	if w.settings.IsWarmUp(tick) {
		return nil
	}
	return w.record(ctx, tick, results)
}

func (w *Worker) record(ctx context.Context, tick int, results *Results) error {
	results.SetAgentResults(w.agents)
	if w.backend == nil {
		return nil
	}

	records := make([]store.Record, 0, w.agents.Len())
	for _, a := range w.agents.Agents() {
		values := a.Snapshot()
		if values == nil {
			continue
		}
		records = append(records, store.Record{
			RunID:  w.runID,
			Tick:   tick - w.settings.NumOfWarmUpTicks,
			Worker: w.name,
			Agent:  a.Name,
			Values: values,
		})
	}
	if len(records) == 0 {
		return nil
	}
	if err := w.backend.Append(ctx, records); err != nil {
		return fmt.Errorf("record tick: %w", err)
	}
	return nil
}

func (w *Worker) fail(tick int, err error) error {
	w.logger.Error("worker: failed", "tick", tick, "error", err)
	w.emit(EventFailed, tick, err)
	return &WorkerError{Worker: w.name, Tick: tick, Err: err}
}

func (w *Worker) emit(t EventType, tick int, err error) {
	if w.events == nil {
		return
	}
	ev := Event{Type: t, RunID: w.runID, Worker: w.name, Tick: tick, Timestamp: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	w.events(ev)
}
