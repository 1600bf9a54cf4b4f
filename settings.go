package sim

import (
	"fmt"
	"time"
)

// Default configuration values
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultBarrierTimeout = 2 * time.Minute
	DefaultScheduler      = SchedulerSequential
	DefaultStoreKind      = "memory"
)

// Settings is the run configuration. It is fixed once a run starts.
type Settings struct {
	// NumOfAgents is how many agents the generator creates
	NumOfAgents int `yaml:"agents"`

	// NumOfCores is the number of workers; 0 means nothing runs
	NumOfCores int `yaml:"cores"`

	// NumOfTicksToRun is the number of recorded ticks
	NumOfTicksToRun int `yaml:"ticks"`

	// NumOfWarmUpTicks run before the recorded ticks and are not recorded
	NumOfWarmUpTicks int `yaml:"warmup_ticks"`

	// AreProcessesSynced enables the coordinator, barriers and cross-worker queries
	AreProcessesSynced bool `yaml:"synced"`

	// IsCacheUsed enables the per-worker cache of remote reads
	IsCacheUsed bool `yaml:"cache"`

	// DoAgentStoresHoldAgentCopies makes containers hand out copies on read
	DoAgentStoresHoldAgentCopies bool `yaml:"store_copies"`

	// RequestTimeout bounds a single point query (0 waits forever)
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// BarrierTimeout bounds a barrier wait (0 waits forever)
	BarrierTimeout time.Duration `yaml:"barrier_timeout"`

	// Scheduler selects the tick scheduler: "sequential" or "shuffled"
	Scheduler string `yaml:"scheduler"`

	// Seed drives the shuffled scheduler
	Seed uint64 `yaml:"seed"`

	// Store configures where recorded results go
	Store StoreSettings `yaml:"store"`
}

// StoreSettings selects a results backend.
type StoreSettings struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// DefaultSettings returns a single-core unsynchronized configuration.
func DefaultSettings() Settings {
	return Settings{
		NumOfAgents:     10,
		NumOfCores:      1,
		NumOfTicksToRun: 10,
		RequestTimeout:  DefaultRequestTimeout,
		BarrierTimeout:  DefaultBarrierTimeout,
		Scheduler:       DefaultScheduler,
		Store:           StoreSettings{Kind: DefaultStoreKind},
	}
}

// TotalTicks returns warm-up plus recorded ticks.
func (s Settings) TotalTicks() int {
	return s.NumOfWarmUpTicks + s.NumOfTicksToRun
}

// IsWarmUp reports whether tick is a warm-up tick.
func (s Settings) IsWarmUp(tick int) bool {
	return tick < s.NumOfWarmUpTicks
}

// Validate checks the settings for values the engine cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.NumOfAgents < 0:
		return fmt.Errorf("%w: agents must not be negative", ErrInvalidSettings)
	case s.NumOfCores < 0:
		return fmt.Errorf("%w: cores must not be negative", ErrInvalidSettings)
	case s.NumOfTicksToRun < 0:
		return fmt.Errorf("%w: ticks must not be negative", ErrInvalidSettings)
	case s.NumOfWarmUpTicks < 0:
		return fmt.Errorf("%w: warm-up ticks must not be negative", ErrInvalidSettings)
	case s.RequestTimeout < 0 || s.BarrierTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidSettings)
	}

	switch s.Scheduler {
	case "", SchedulerSequential, SchedulerShuffled:
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidSettings, ErrUnknownScheduler, s.Scheduler)
	}

	return nil
}
