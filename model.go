package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/everydev1618/gosim/store"
)

// CoordinatorName is the requester name the coordinator answers with.
const CoordinatorName = "coordinator"

// Generator creates agent number i of a run.
type Generator func(i int) *Agent

// SchedulerFactory builds the scheduler of one worker. Schedulers are not
// shared between workers.
type SchedulerFactory func(worker int) (Scheduler, error)

// Model runs a simulation: it builds the population, partitions it across
// workers and, when synchronized, runs the coordinator they talk to.
type Model struct {
	settings    Settings
	generator   Generator
	environment *Environment
	schedulers  SchedulerFactory
	backend     store.Backend
	persist     Persistence
	events      EventHandler
	logger      *slog.Logger

	mu         sync.Mutex
	running    bool
	dispatcher *Dispatcher
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithEnvironment sets the shared environment.
func WithEnvironment(env *Environment) ModelOption {
	return func(m *Model) {
		m.environment = env
	}
}

// WithScheduler overrides the scheduler selected by Settings.Scheduler.
func WithScheduler(f SchedulerFactory) ModelOption {
	return func(m *Model) {
		m.schedulers = f
	}
}

// WithStore sets the backend recorded ticks go to. The model does not close it.
func WithStore(b store.Backend) ModelOption {
	return func(m *Model) {
		m.backend = b
	}
}

// WithPersistence saves the merged results of every successful run through p.
func WithPersistence(p Persistence) ModelOption {
	return func(m *Model) {
		m.persist = p
	}
}

// WithEventHandler receives worker lifecycle events.
func WithEventHandler(h EventHandler) ModelOption {
	return func(m *Model) {
		m.events = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ModelOption {
	return func(m *Model) {
		m.logger = l
	}
}

// NewModel creates a model.
func NewModel(settings Settings, gen Generator, opts ...ModelOption) *Model {
	m := &Model{
		settings:  settings,
		generator: gen,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.schedulers == nil {
		m.schedulers = func(worker int) (Scheduler, error) {
			return NewScheduler(settings.Scheduler, settings.Seed+uint64(worker))
		}
	}
	return m
}

// Settings returns the run configuration.
func (m *Model) Settings() Settings {
	return m.settings
}

// Environment returns the shared environment.
func (m *Model) Environment() *Environment {
	return m.environment
}

// GlobalAgents returns the coordinator's view of the population after a
// synchronized run, or nil when the last run was not synchronized.
func (m *Model) GlobalAgents() *AgentContainer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dispatcher == nil {
		return nil
	}
	return m.dispatcher.Agents()
}

// Generate creates and sets up the population.
func (m *Model) Generate() (*AgentContainer, error) {
	if m.generator == nil {
		return nil, ErrNoGenerator
	}

	agents := NewAgentContainer(m.settings.DoAgentStoresHoldAgentCopies)
	for i := range m.settings.NumOfAgents {
		a := m.generator(i)
		if a == nil {
			return nil, fmt.Errorf("generator returned nil agent %d", i)
		}
		if agents.Exists(a.Name) {
			return nil, fmt.Errorf("duplicate agent name %q", a.Name)
		}
		a.Setup()
		agents.Add(a)
	}
	return agents, nil
}

// Start runs the model in the background. If the model is already running
// the returned future completes at once with ErrRunInProgress.
func (m *Model) Start(ctx context.Context) *Future {
	ctx, cancel := context.WithCancel(ctx)
	f := newFuture(cancel)
	if err := m.acquire(); err != nil {
		cancel()
		f.complete(nil, err)
		return f
	}
	go func() {
		defer cancel()
		results, err := m.run(ctx)
		m.release()
		f.complete(results, err)
	}()
	return f
}

// Run executes the simulation and returns the merged results. The first
// worker error cancels every other worker and is returned. A model runs one
// simulation at a time; overlapping calls fail with ErrRunInProgress.
func (m *Model) Run(ctx context.Context) (*Results, error) {
	if err := m.acquire(); err != nil {
		return nil, err
	}
	defer m.release()
	return m.run(ctx)
}

func (m *Model) acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunInProgress
	}
	m.running = true
	return nil
}

func (m *Model) release() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

func (m *Model) run(ctx context.Context) (*Results, error) {
	if err := m.settings.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := m.logger.With("run_id", runID)

	agents, err := m.Generate()
	if err != nil {
		return nil, err
	}
	if m.environment != nil {
		m.environment.Setup()
	}

	parts := Partition(agents, m.settings.NumOfCores)
	if len(parts) == 0 {
		logger.Info("model: no cores, nothing to run")
		return NewResults(runID), nil
	}

	synced := m.settings.AreProcessesSynced
	logger.Info("model: run started",
		"agents", agents.Len(), "cores", len(parts), "ticks", m.settings.TotalTicks(), "synced", synced)

	bus := NewBus()
	var coordinator *Coordinator
	coordCtx, stopCoordinator := context.WithCancel(context.Background())
	defer stopCoordinator()

	if synced {
		d := NewDispatcher(CoordinatorName, len(parts), bus.Responses,
			NewAgentContainer(m.settings.DoAgentStoresHoldAgentCopies), m.environment,
			logger.With("component", "coordinator"))
		m.mu.Lock()
		m.dispatcher = d
		m.mu.Unlock()

		coordinator = NewCoordinator(d, bus.Requests, logger.With("component", "coordinator"))
		go coordinator.Run(coordCtx)
	} else {
		m.mu.Lock()
		m.dispatcher = nil
		m.mu.Unlock()
	}

	workers := make([]*Worker, len(parts))
	for i, part := range parts {
		w, err := m.newWorker(i, part, bus, synced, runID, logger)
		if err != nil {
			return nil, err
		}
		workers[i] = w
	}

	workerResults := make([]*Results, len(workers))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.settings.NumOfCores)

	for i, w := range workers {
		g.Go(func() error {
			r, err := w.Run(gCtx)
			if err != nil {
				return err
			}
			workerResults[i] = r
			return nil
		})
	}

	runErr := g.Wait()

	if coordinator != nil {
		stopCoordinator()
		<-coordinator.Done()
	}

	if runErr != nil {
		logger.Error("model: run failed", "error", runErr)
		return nil, runErr
	}

	results := NewResults(runID)
	for _, r := range workerResults {
		results.MergeWith(r)
	}

	if m.persist != nil {
		if err := m.persist.Save(results); err != nil {
			return nil, fmt.Errorf("save results: %w", err)
		}
	}

	logger.Info("model: run completed", "agents", len(results.AgentNames), "recorded_ticks", results.RecordedTicks)
	return results, nil
}

func (m *Model) newWorker(i int, part *AgentContainer, bus *Bus, synced bool, runID string, logger *slog.Logger) (*Worker, error) {
	sched, err := m.schedulers(i)
	if err != nil {
		return nil, err
	}

	client := NewClient(WorkerName(i), CoordinatorName, bus, synced,
		WithRequestTimeout(m.settings.RequestTimeout),
		WithBarrierTimeout(m.settings.BarrierTimeout),
		WithClientLogger(logger.With("worker", WorkerName(i))),
	)

	opts := []WorkerOption{
		WithWorkerScheduler(sched),
		WithWorkerRunID(runID),
		WithWorkerLogger(logger),
		WithWorkerEvents(m.events),
	}
	if m.backend != nil {
		opts = append(opts, WithWorkerStore(m.backend))
	}
	// Without a coordinator the first worker owns the environment.
	if !synced && i == 0 && m.environment != nil {
		opts = append(opts, WithWorkerEnvironment(m.environment))
	}
	return NewWorker(i, part, m.settings, client, opts...), nil
}
