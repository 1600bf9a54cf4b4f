// Package periodic runs simulation jobs on cron schedules.
package periodic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is a named, scheduled simulation run.
type Job struct {
	// Name identifies the job; adding a job with an existing name replaces it
	Name string

	// Cron is a standard five-field expression or a descriptor such as "@every 10m"
	Cron string

	// RunFile is the run file handed to the RunFunc
	RunFile string

	// Enabled jobs are registered with the cron runner; disabled ones are only kept
	Enabled bool
}

// RunFunc executes one firing of a job.
type RunFunc func(ctx context.Context, job Job) error

// Runner fires jobs on their schedules. A firing is skipped while the
// previous firing of the same job is still running.
type Runner struct {
	c      *cron.Cron
	run    RunFunc
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	jobs    []Job
	entries map[string]cron.EntryID
	fired   map[string]int
}

// New creates a Runner that executes firings with run.
func New(run RunFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		c:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		run:     run,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
		fired:   make(map[string]int),
	}
}

// Start begins firing jobs and blocks until ctx is cancelled. Running
// firings are cancelled and waited for before Start returns.
func (r *Runner) Start(ctx context.Context) {
	r.c.Start()
	r.logger.Info("periodic: started", "jobs", len(r.Jobs()))
	<-ctx.Done()
	r.cancel()
	<-r.c.Stop().Done()
	r.logger.Info("periodic: stopped")
}

// Add registers job. If a job with the same name exists it is replaced.
func (r *Runner) Add(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[job.Name]; ok {
		r.c.Remove(id)
		delete(r.entries, job.Name)
	}
	r.jobs = removeJob(r.jobs, job.Name)

	if job.Enabled {
		id, err := r.c.AddFunc(job.Cron, r.fire(job))
		if err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", job.Cron, err)
		}
		r.entries[job.Name] = id
	}
	r.jobs = append(r.jobs, job)

	r.logger.Info("periodic: job added", "name", job.Name, "cron", job.Cron, "enabled", job.Enabled)
	return nil
}

// Remove unregisters the job called name.
func (r *Runner) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[name]
	if ok {
		r.c.Remove(id)
		delete(r.entries, name)
	} else if !hasJob(r.jobs, name) {
		return fmt.Errorf("job %q not found", name)
	}
	r.jobs = removeJob(r.jobs, name)

	r.logger.Info("periodic: job removed", "name", name)
	return nil
}

// Jobs returns a snapshot of the registered jobs.
func (r *Runner) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Fired returns how many times the job called name has fired.
func (r *Runner) Fired(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired[name]
}

func (r *Runner) fire(job Job) func() {
	return func() {
		r.mu.Lock()
		r.fired[job.Name]++
		r.mu.Unlock()

		r.logger.Info("periodic: firing job", "name", job.Name, "file", job.RunFile)
		if err := r.run(r.ctx, job); err != nil {
			r.logger.Warn("periodic: job failed", "name", job.Name, "error", err)
		}
	}
}

func hasJob(jobs []Job, name string) bool {
	for _, j := range jobs {
		if j.Name == name {
			return true
		}
	}
	return false
}

func removeJob(jobs []Job, name string) []Job {
	out := jobs[:0]
	for _, j := range jobs {
		if j.Name != name {
			out = append(out, j)
		}
	}
	return out
}
