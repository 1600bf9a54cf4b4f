package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
)

// Scheduler names accepted in Settings.
const (
	SchedulerSequential = "sequential"
	SchedulerShuffled   = "shuffled"
)

// Scheduler runs every agent of a container once for a tick.
type Scheduler interface {
	RunTick(ctx context.Context, agents *AgentContainer) error
}

// NewScheduler returns the scheduler registered under name. An empty name
// selects the sequential scheduler.
func NewScheduler(name string, seed uint64) (Scheduler, error) {
	switch name {
	case "", SchedulerSequential:
		return SequentialScheduler{}, nil
	case SchedulerShuffled:
		return NewShuffledScheduler(seed), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheduler, name)
	}
}

// SequentialScheduler runs agents in insertion order.
type SequentialScheduler struct{}

// RunTick runs each agent once. It stops early when ctx is done.
func (SequentialScheduler) RunTick(ctx context.Context, agents *AgentContainer) error {
	for _, a := range agents.Agents() {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Run()
	}
	return nil
}

// ShuffledScheduler runs agents in a random order drawn fresh every tick.
// Two schedulers with the same seed produce the same sequence of orders.
type ShuffledScheduler struct {
	rng *rand.Rand
}

// NewShuffledScheduler creates a shuffled scheduler.
func NewShuffledScheduler(seed uint64) *ShuffledScheduler {
	return &ShuffledScheduler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// RunTick runs each agent once in shuffled order.
func (s *ShuffledScheduler) RunTick(ctx context.Context, agents *AgentContainer) error {
	order := agents.Agents()
	s.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	for _, a := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Run()
	}
	return nil
}
