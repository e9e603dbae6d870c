package poll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRunning is returned for a job whose previous pass has not finished.
var ErrAlreadyRunning = errors.New("poll already running")

// Job is one pollable source instance.
type Job interface {
	Name() string
	Poll(ctx context.Context, mode Mode) (*Result, error)
}

// Outcome is the result of one job within a runner pass.
type Outcome struct {
	Job    string
	Result *Result
	Err    error
}

type runnerJob struct {
	job Job
	mu  sync.Mutex
}

// Runner drives jobs on a fixed interval. Different jobs run concurrently;
// passes of the same job never overlap.
type Runner struct {
	jobs     []*runnerJob
	interval time.Duration
	logger   zerolog.Logger
}

// NewRunner creates a runner for jobs.
func NewRunner(interval time.Duration, jobs ...Job) (*Runner, error) {
	if interval <= 0 {
		return nil, apierror.Configuration("poll.interval", "must be positive (got %s)", interval)
	}

	r := &Runner{
		interval: interval,
		logger:   log.With().Str("component", "runner").Logger(),
	}
	seen := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if seen[job.Name()] {
			return nil, apierror.Configuration("poll.jobs", "duplicate job name %q", job.Name())
		}
		seen[job.Name()] = true
		r.jobs = append(r.jobs, &runnerJob{job: job})
	}
	return r, nil
}

// WithLogger replaces the runner's logger
func (r *Runner) WithLogger(logger zerolog.Logger) *Runner {
	r.logger = logger
	return r
}

// RunOnce runs every job once in mode and returns their outcomes in job order.
// A failing job does not stop the others.
func (r *Runner) RunOnce(ctx context.Context, mode Mode) []Outcome {
	outcomes := make([]Outcome, len(r.jobs))

	var g errgroup.Group
	for i, rj := range r.jobs {
		g.Go(func() error {
			res, err := rj.run(ctx, mode)
			outcomes[i] = Outcome{Job: rj.job.Name(), Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.Err != nil && !errors.Is(o.Err, ErrAlreadyRunning) {
			r.logger.Warn().Err(o.Err).Str("job", o.Job).Str("mode", mode.String()).Msg("Job failed, retrying next pass")
		}
	}
	return outcomes
}

// Run performs a deploy pass, then scheduled passes every interval until ctx
// is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Int("jobs", len(r.jobs)).
		Dur("interval", r.interval).
		Msg("Runner started")

	r.RunOnce(ctx, Deploy)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Runner stopped")
			return nil
		case <-ticker.C:
			r.RunOnce(ctx, Scheduled)
		}
	}
}

func (rj *runnerJob) run(ctx context.Context, mode Mode) (*Result, error) {
	if !rj.mu.TryLock() {
		skippedRunsTotal.WithLabelValues(rj.job.Name()).Inc()
		return nil, ErrAlreadyRunning
	}
	defer rj.mu.Unlock()
	return rj.job.Poll(ctx, mode)
}
