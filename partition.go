package sim

// Partition splits c into one container per core. Agents are dealt
// round-robin by insertion index, so partition sizes differ by at most one.
// Zero cores yields no partitions; one core (or fewer) gets every agent.
func Partition(c *AgentContainer, cores int) []*AgentContainer {
	if cores == 0 {
		return []*AgentContainer{}
	}
	if cores <= 1 {
		p := NewAgentContainer(c.StoresCopies())
		p.AddContainer(c)
		return []*AgentContainer{p}
	}

	parts := make([]*AgentContainer, cores)
	for i := range parts {
		parts[i] = NewAgentContainer(c.StoresCopies())
	}
	for i, a := range c.Agents() {
		parts[i%cores].Add(a)
	}
	return parts
}
