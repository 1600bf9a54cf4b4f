package sim

// AgentContainer is an ordered collection of agents indexed by name.
// Adding an agent whose name is already present replaces it in place.
// A container is owned by a single goroutine and is not safe for concurrent use.
type AgentContainer struct {
	agents      []*Agent
	index       map[string]int
	storeCopies bool
}

// NewAgentContainer creates an empty container. When storeCopies is set,
// Duplicate returns deep copies instead of shared references.
func NewAgentContainer(storeCopies bool) *AgentContainer {
	return &AgentContainer{
		agents:      make([]*Agent, 0),
		index:       make(map[string]int),
		storeCopies: storeCopies,
	}
}

// Add inserts a or replaces the agent with the same name.
func (c *AgentContainer) Add(a *Agent) {
	if a == nil {
		return
	}
	if i, ok := c.index[a.Name]; ok {
		c.agents[i] = a
		return
	}
	c.index[a.Name] = len(c.agents)
	c.agents = append(c.agents, a)
}

// AddAll adds every agent in order.
func (c *AgentContainer) AddAll(agents ...*Agent) {
	for _, a := range agents {
		c.Add(a)
	}
}

// AddContainer adds every agent of other in order.
func (c *AgentContainer) AddContainer(other *AgentContainer) {
	if other == nil {
		return
	}
	c.AddAll(other.agents...)
}

// Update merges other into c using the same insert-or-replace rule as Add.
func (c *AgentContainer) Update(other *AgentContainer) {
	c.AddContainer(other)
}

// Get returns the agent with the given name, or nil if absent.
func (c *AgentContainer) Get(name string) *Agent {
	i, ok := c.index[name]
	if !ok {
		return nil
	}
	return c.agents[i]
}

// At returns the agent at position i in insertion order.
func (c *AgentContainer) At(i int) *Agent {
	return c.agents[i]
}

// Exists reports whether an agent with the given name is present.
func (c *AgentContainer) Exists(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Len returns the number of agents.
func (c *AgentContainer) Len() int {
	return len(c.agents)
}

// StoresCopies reports the duplicate-on-read policy.
func (c *AgentContainer) StoresCopies() bool {
	return c.storeCopies
}

// Names returns agent names in insertion order.
func (c *AgentContainer) Names() []string {
	names := make([]string, len(c.agents))
	for i, a := range c.agents {
		names[i] = a.Name
	}
	return names
}

// Agents returns the agents in insertion order. The slice is a copy; the agents are not.
func (c *AgentContainer) Agents() []*Agent {
	out := make([]*Agent, len(c.agents))
	copy(out, c.agents)
	return out
}

// Filter returns a new container with the agents matching f, in original order.
func (c *AgentContainer) Filter(f Filter) *AgentContainer {
	out := NewAgentContainer(c.storeCopies)
	for _, a := range c.agents {
		if f.Matches(a) {
			out.Add(a)
		}
	}
	return out
}

// Duplicate returns a new container holding the same agents, or copies of
// them when the container stores copies.
func (c *AgentContainer) Duplicate() *AgentContainer {
	if c.storeCopies {
		return c.Snapshot()
	}
	out := NewAgentContainer(false)
	out.AddAll(c.agents...)
	return out
}

// Snapshot returns a new container of cloned agents regardless of the copy policy.
func (c *AgentContainer) Snapshot() *AgentContainer {
	out := NewAgentContainer(c.storeCopies)
	for _, a := range c.agents {
		out.Add(a.Clone())
	}
	return out
}
