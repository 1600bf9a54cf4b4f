package sim

// Behavior is the model attached to an agent or the environment.
// The engine treats it as a black box: it is set up once and run once per tick.
type Behavior interface {
	// Setup is called once with the owning element's name before the first tick
	Setup(name string)

	// Run advances the behavior by one tick
	Run(v View)
}

// Cloner is implemented by behaviors that can produce an independent copy of themselves.
// Behaviors that are read by other workers should implement it so that snapshots
// pushed to the coordinator never alias state the owning worker keeps mutating.
type Cloner interface {
	Clone() Behavior
}

// Recorder is implemented by behaviors whose state should be written to the results store.
type Recorder interface {
	Snapshot() map[string]any
}

// View is what a running behavior sees of the simulation.
type View interface {
	// Self returns the element currently running
	Self() *Agent

	// Tick returns the current tick number, warm-up ticks included
	Tick() int

	// Agent resolves an agent by name, locally first and then through the coordinator.
	// Returns nil when the agent is not available.
	Agent(name string) *Agent

	// Agents returns all agents matching f
	Agents(f Filter) *AgentContainer

	// Environment returns the shared environment, or nil when it is not visible
	Environment() *Environment

	// Put stages an agent to be added or replaced once the current tick completes
	Put(a *Agent)
}

// Agent is a named simulation entity.
type Agent struct {
	// Name uniquely identifies the agent within a run
	Name string

	// Behavior is the opaque model run every tick
	Behavior Behavior

	// view is the back-reference used to resolve cross-agent queries
	view View
}

// NewAgent creates an agent with the given name and behavior.
func NewAgent(name string, b Behavior) *Agent {
	return &Agent{Name: name, Behavior: b}
}

// Setup forwards the agent's name to its behavior.
func (a *Agent) Setup() {
	if a.Behavior != nil {
		a.Behavior.Setup(a.Name)
	}
}

// Run runs the behavior once against the installed view.
func (a *Agent) Run() {
	if a.Behavior != nil {
		a.Behavior.Run(a.view)
	}
}

// View returns the view installed by the owning worker.
func (a *Agent) View() View {
	return a.view
}

// Clone returns a copy of the agent. The behavior is cloned when it implements
// Cloner and shared otherwise. The view is not carried over.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	c := &Agent{Name: a.Name, Behavior: a.Behavior}
	if cl, ok := a.Behavior.(Cloner); ok {
		c.Behavior = cl.Clone()
	}
	return c
}

// Snapshot returns the recorded state of the agent, or nil if its behavior does not record.
func (a *Agent) Snapshot() map[string]any {
	if r, ok := a.Behavior.(Recorder); ok {
		return r.Snapshot()
	}
	return nil
}

func (a *Agent) bind(v View) {
	a.view = v
}

// Environment is the single shared model-wide element.
type Environment struct {
	// Name identifies the environment in logs and views
	Name string

	// Behavior is run once per tick
	Behavior Behavior

	view View
	runs int
}

// NewEnvironment creates an environment.
func NewEnvironment(name string, b Behavior) *Environment {
	return &Environment{Name: name, Behavior: b}
}

// Setup forwards the environment's name to its behavior.
func (e *Environment) Setup() {
	if e.Behavior != nil {
		e.Behavior.Setup(e.Name)
	}
}

// Run runs the environment behavior once.
func (e *Environment) Run() {
	e.runs++
	if e.Behavior != nil {
		e.Behavior.Run(e.view)
	}
}

// Runs returns how many times the environment has been run.
func (e *Environment) Runs() int {
	return e.runs
}

// Clone returns a copy of the environment, following the same rules as Agent.Clone.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return nil
	}
	c := &Environment{Name: e.Name, Behavior: e.Behavior, runs: e.runs}
	if cl, ok := e.Behavior.(Cloner); ok {
		c.Behavior = cl.Clone()
	}
	return c
}

func (e *Environment) bind(v View) {
	e.view = v
}
