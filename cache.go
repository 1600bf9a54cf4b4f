package sim

// CacheStats counts cache lookups since the cache was created.
type CacheStats struct {
	Hits    int
	Misses  int
	Clears  int
	HitRate float64
}

// WorkerCache memoises remote reads for a single worker during one tick.
// Nothing in it may be trusted across a tick boundary; the worker clears it
// at the end of every tick.
type WorkerCache struct {
	agents      map[string]*Agent
	filtered    map[string]*AgentContainer
	environment *Environment
	stats       CacheStats
}

// NewWorkerCache creates an empty cache.
func NewWorkerCache() *WorkerCache {
	return &WorkerCache{
		agents:   make(map[string]*Agent),
		filtered: make(map[string]*AgentContainer),
	}
}

// Agent returns a cached agent.
func (c *WorkerCache) Agent(name string) (*Agent, bool) {
	a, ok := c.agents[name]
	c.record(ok)
	return a, ok
}

// PutAgent caches an agent under its name.
func (c *WorkerCache) PutAgent(a *Agent) {
	if a == nil {
		return
	}
	c.agents[a.Name] = a
}

// Filtered returns a cached filter result. Filters without a key always miss.
func (c *WorkerCache) Filtered(f Filter) (*AgentContainer, bool) {
	if f.Key == "" {
		c.record(false)
		return nil, false
	}
	r, ok := c.filtered[f.Key]
	c.record(ok)
	return r, ok
}

// PutFiltered caches the result of a keyed filter.
func (c *WorkerCache) PutFiltered(f Filter, r *AgentContainer) {
	if f.Key == "" || r == nil {
		return
	}
	c.filtered[f.Key] = r
}

// Environment returns the cached environment snapshot.
func (c *WorkerCache) Environment() (*Environment, bool) {
	ok := c.environment != nil
	c.record(ok)
	return c.environment, ok
}

// PutEnvironment caches the environment snapshot.
func (c *WorkerCache) PutEnvironment(e *Environment) {
	c.environment = e
}

// Clear drops every entry.
func (c *WorkerCache) Clear() {
	clear(c.agents)
	clear(c.filtered)
	c.environment = nil
	c.stats.Clears++
}

// Len returns the number of cached entries across the three caches.
func (c *WorkerCache) Len() int {
	n := len(c.agents) + len(c.filtered)
	if c.environment != nil {
		n++
	}
	return n
}

// Stats returns lookup statistics.
func (c *WorkerCache) Stats() CacheStats {
	return c.stats
}

func (c *WorkerCache) record(hit bool) {
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.stats.HitRate = float64(c.stats.Hits) / float64(c.stats.Hits+c.stats.Misses)
}
