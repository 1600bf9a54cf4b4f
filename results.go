package sim

import "maps"

// Results is what a run produces. Each worker fills its own and the model
// merges them once all workers are done.
type Results struct {
	RunID string `json:"run_id"`

	// AgentNames lists every agent that finished the run, grouped by worker
	AgentNames []string `json:"agent_names"`

	// Agents holds the last recorded state of every agent whose behavior records
	Agents map[string]map[string]any `json:"agents,omitempty"`

	// RecordedTicks counts ticks past warm-up
	RecordedTicks int `json:"recorded_ticks"`

	Workers []WorkerStats `json:"workers"`
}

// WorkerStats summarises one worker's run.
type WorkerStats struct {
	Name   string     `json:"name"`
	Agents int        `json:"agents"`
	Ticks  int        `json:"ticks"`
	Cache  CacheStats `json:"cache"`
}

// NewResults creates empty results for runID.
func NewResults(runID string) *Results {
	return &Results{
		RunID:      runID,
		AgentNames: make([]string, 0),
		Agents:     make(map[string]map[string]any),
		Workers:    make([]WorkerStats, 0),
	}
}

// SetAgentNames appends the names of the finished population.
func (r *Results) SetAgentNames(c *AgentContainer) {
	r.AgentNames = append(r.AgentNames, c.Names()...)
}

// SetAgentResults records the current state of c as one recorded tick.
func (r *Results) SetAgentResults(c *AgentContainer) {
	for _, a := range c.Agents() {
		if s := a.Snapshot(); s != nil {
			r.Agents[a.Name] = s
		}
	}
	r.RecordedTicks++
}

// AddWorker appends a worker summary.
func (r *Results) AddWorker(s WorkerStats) {
	r.Workers = append(r.Workers, s)
}

// MergeWith folds other into r. Workers run the same ticks, so the recorded
// tick count is the larger of the two rather than the sum.
func (r *Results) MergeWith(other *Results) {
	if other == nil {
		return
	}
	if r.RunID == "" {
		r.RunID = other.RunID
	}
	r.AgentNames = append(r.AgentNames, other.AgentNames...)
	if r.Agents == nil {
		r.Agents = make(map[string]map[string]any)
	}
	maps.Copy(r.Agents, other.Agents)
	r.RecordedTicks = max(r.RecordedTicks, other.RecordedTicks)
	r.Workers = append(r.Workers, other.Workers...)
}

// Ticks returns the total ticks run summed over workers.
func (r *Results) Ticks() int {
	n := 0
	for _, w := range r.Workers {
		n += w.Ticks
	}
	return n
}
