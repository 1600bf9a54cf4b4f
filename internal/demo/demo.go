// Package demo is a small opinion-dynamics model used by the CLI and the
// end-to-end tests.
//
// Every citizen holds an opinion in [-1, 1]. Each tick it moves toward its
// neighbour when the two are close enough, notes how many extremists exist
// and drifts toward the population mean kept by the environment.
package demo

import (
	"fmt"
	"math"
	"math/rand/v2"

	sim "github.com/everydev1618/gosim"
)

// Params tunes the model.
type Params struct {
	// Tolerance is the largest opinion gap at which citizens still listen
	Tolerance float64

	// Rate is how far a citizen moves toward a neighbour it listens to
	Rate float64

	// Pull is how far a citizen drifts toward the population mean each tick
	Pull float64

	// Extreme is the absolute opinion from which a citizen counts as an extremist
	Extreme float64

	Seed uint64
}

// DefaultParams returns the parameters the CLI uses when the run file has none.
func DefaultParams() Params {
	return Params{
		Tolerance: 0.5,
		Rate:      0.3,
		Pull:      0.05,
		Extreme:   0.8,
		Seed:      1,
	}
}

// CitizenName returns the name of citizen i.
func CitizenName(i int) string {
	return fmt.Sprintf("citizen-%d", i)
}

// Extremists selects citizens whose opinion is at least bound in absolute value.
func Extremists(bound float64) sim.Filter {
	return sim.Where(fmt.Sprintf("extremists:%g", bound), func(a *sim.Agent) bool {
		c, ok := a.Behavior.(*Citizen)
		return ok && math.Abs(c.Opinion) >= bound
	})
}

// Citizen is the agent behavior.
type Citizen struct {
	Opinion      float64
	Interactions int
	Extremists   int

	name   string
	peer   string
	params Params
}

// NewCitizen creates a citizen that listens to peer.
func NewCitizen(opinion float64, peer string, p Params) *Citizen {
	return &Citizen{Opinion: opinion, peer: peer, params: p}
}

// Name returns the name given at setup.
func (c *Citizen) Name() string {
	return c.name
}

// Peer returns the neighbour the citizen listens to.
func (c *Citizen) Peer() string {
	return c.peer
}

// Setup implements sim.Behavior.
func (c *Citizen) Setup(name string) {
	c.name = name
}

// Run implements sim.Behavior.
func (c *Citizen) Run(v sim.View) {
	if a := v.Agent(c.peer); a != nil {
		if peer, ok := a.Behavior.(*Citizen); ok {
			gap := peer.Opinion - c.Opinion
			if math.Abs(gap) < c.params.Tolerance {
				c.Opinion += c.params.Rate * gap
				c.Interactions++
			}
		}
	}

	c.Extremists = v.Agents(Extremists(c.params.Extreme)).Len()

	if env := v.Environment(); env != nil {
		if cl, ok := env.Behavior.(*Climate); ok && cl.Samples > 0 {
			c.Opinion += c.params.Pull * (cl.Mean - c.Opinion)
		}
	}

	c.Opinion = max(-1, min(1, c.Opinion))
}

// Clone implements sim.Cloner.
func (c *Citizen) Clone() sim.Behavior {
	cp := *c
	return &cp
}

// Snapshot implements sim.Recorder.
func (c *Citizen) Snapshot() map[string]any {
	return map[string]any{
		"opinion":      c.Opinion,
		"interactions": c.Interactions,
		"extremists":   c.Extremists,
	}
}

// Climate is the environment behavior. It tracks the mean opinion of every
// citizen it can see.
type Climate struct {
	Mean    float64
	Samples int
	Runs    int
}

// Setup implements sim.Behavior.
func (e *Climate) Setup(string) {}

// Run implements sim.Behavior.
func (e *Climate) Run(v sim.View) {
	e.Runs++
	if v == nil {
		return
	}

	sum, n := 0.0, 0
	for _, a := range v.Agents(sim.All()).Agents() {
		if c, ok := a.Behavior.(*Citizen); ok {
			sum += c.Opinion
			n++
		}
	}
	e.Samples = n
	if n > 0 {
		e.Mean = sum / float64(n)
	}
}

// Clone implements sim.Cloner.
func (e *Climate) Clone() sim.Behavior {
	cp := *e
	return &cp
}

// Generator returns a generator for a population of n citizens arranged in
// a ring. Initial opinions depend only on the seed and the citizen index.
func Generator(n int, p Params) sim.Generator {
	return func(i int) *sim.Agent {
		rng := rand.New(rand.NewPCG(p.Seed, uint64(i)))
		opinion := rng.Float64()*2 - 1
		peer := CitizenName((i + 1) % max(n, 1))
		return sim.NewAgent(CitizenName(i), NewCitizen(opinion, peer, p))
	}
}

// NewEnvironment returns the environment the citizens read.
func NewEnvironment() *sim.Environment {
	return sim.NewEnvironment("climate", &Climate{})
}
