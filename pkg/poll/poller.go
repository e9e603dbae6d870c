package poll

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/Sternrassler/connector-poller/pkg/emit"
	"github.com/Sternrassler/connector-poller/pkg/watermark"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode selects the result cap of a pass.
type Mode int

const (
	// Scheduled is a regular timer-triggered pass.
	Scheduled Mode = iota
	// Deploy is the one-time pass when a source is first deployed.
	Deploy
)

func (m Mode) String() string {
	switch m {
	case Deploy:
		return "deploy"
	case Scheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "deploy" or "scheduled".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deploy":
		return Deploy, nil
	case "scheduled", "":
		return Scheduled, nil
	default:
		return 0, apierror.Configuration("mode", "unknown poll mode %q", s)
	}
}

// Source provides candidate items and their envelopes.
type Source[T any] interface {
	// Fetch returns the candidate set for one pass. since is the current
	// watermark, for APIs that filter server-side. maxResults of 0 means
	// uncapped.
	Fetch(ctx context.Context, since time.Time, maxResults int) ([]T, error)

	// Envelope builds the emission metadata of an item.
	Envelope(item T) emit.Envelope
}

// Config holds poller configuration
type Config struct {
	// Name labels logs and metrics
	Name string

	// Key is the watermark store key owned by this poller
	Key string

	// Sentinel is the watermark before anything was ever emitted
	Sentinel time.Time

	// DeployMaxResults caps deploy passes (0 = uncapped)
	DeployMaxResults int

	// ScheduledMaxResults caps scheduled passes (0 = uncapped)
	ScheduledMaxResults int
}

// DefaultConfig returns a config with the Unix epoch sentinel, 25 results on
// deploy and no cap on scheduled passes.
func DefaultConfig(name, key string) Config {
	return Config{
		Name:             name,
		Key:              key,
		Sentinel:         time.UnixMilli(0).UTC(),
		DeployMaxResults: 25,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Name == "" {
		return apierror.Configuration("poll.name", "must not be empty")
	}
	if c.Key == "" {
		return apierror.Configuration("poll.key", "must not be empty (poller %s)", c.Name)
	}
	if c.DeployMaxResults < 0 || c.ScheduledMaxResults < 0 {
		return apierror.Configuration("poll.max_results", "must be >= 0 (poller %s)", c.Name)
	}
	return nil
}

func (c Config) maxResults(mode Mode) int {
	if mode == Deploy {
		return c.DeployMaxResults
	}
	return c.ScheduledMaxResults
}

// Result summarises one pass.
type Result struct {
	// Fetched is the number of candidates returned by the source
	Fetched int
	// Emitted is the number of items the sink accepted
	Emitted int
	// Previous is the watermark read at the start of the pass
	Previous time.Time
	// Watermark is the watermark after the pass
	Watermark time.Time
	// Advanced reports whether the watermark was written
	Advanced bool
	// FirstRun is set when no watermark was stored yet
	FirstRun bool
	// Duration of the pass
	Duration time.Duration
	// RunID correlates the log lines of one pass
	RunID string
}

// Poller runs incremental poll passes for one source instance.
type Poller[T any] struct {
	source Source[T]
	store  watermark.Store
	sink   emit.Sink[T]
	filter Filter[T]
	config Config
	logger zerolog.Logger
}

// New creates a poller. It panics when source, store or sink is nil.
func New[T any](source Source[T], store watermark.Store, sink emit.Sink[T], config Config, filter Filter[T]) *Poller[T] {
	if source == nil || store == nil || sink == nil {
		panic("poll: source, store and sink must not be nil")
	}
	if config.Sentinel.IsZero() {
		config.Sentinel = time.UnixMilli(0).UTC()
	}

	return &Poller[T]{
		source: source,
		store:  store,
		sink:   sink,
		filter: filter,
		config: config,
		logger: log.With().Str("component", "poll").Str("poller", config.Name).Logger(),
	}
}

// WithLogger replaces the poller's logger
func (p *Poller[T]) WithLogger(logger zerolog.Logger) *Poller[T] {
	p.logger = logger.With().Str("poller", p.config.Name).Logger()
	return p
}

// Name returns the configured poller name.
func (p *Poller[T]) Name() string {
	return p.config.Name
}

type candidate[T any] struct {
	item T
	env  emit.Envelope
}

// newestFirst orders by timestamp descending, then id descending, so that
// the reverse is ascending by (timestamp, id).
func newestFirst[T any](a, b candidate[T]) int {
	if c := b.env.TS.Compare(a.env.TS); c != 0 {
		return c
	}
	return cmp.Compare(b.env.ID, a.env.ID)
}

// Poll runs one pass. On error the watermark is left at its value from the
// start of the pass; Result is still returned when emission failed midway.
func (p *Poller[T]) Poll(ctx context.Context, mode Mode) (*Result, error) {
	if err := p.config.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	modeLabel := mode.String()
	runID := uuid.NewString()
	logger := p.logger.With().Str("run_id", runID).Logger()
	fail := func(err error) error {
		pollsTotal.WithLabelValues(p.config.Name, modeLabel, "error").Inc()
		logger.Error().Err(err).Str("mode", modeLabel).Msg("Poll failed")
		return err
	}

	prev, found, err := watermark.GetOrDefault(ctx, p.store, p.config.Key, p.config.Sentinel)
	if err != nil {
		return nil, fail(fmt.Errorf("poll %s: read watermark %s: %w", p.config.Name, p.config.Key, err))
	}
	prev = prev.Truncate(time.Millisecond)
	res := &Result{Previous: prev, Watermark: prev, FirstRun: !found, RunID: runID}

	items, err := p.source.Fetch(ctx, prev, p.config.maxResults(mode))
	if err != nil {
		return nil, fail(fmt.Errorf("poll %s: %w", p.config.Name, err))
	}
	res.Fetched = len(items)

	working := make([]candidate[T], 0, len(items))
	for _, item := range items {
		env := p.source.Envelope(item)
		// watermarks persist at millisecond precision
		env.TS = env.TS.Truncate(time.Millisecond)
		if err := env.Validate(); err != nil {
			return nil, fail(fmt.Errorf("poll %s: %w", p.config.Name, err))
		}
		if !p.filter.Keep(item, env, prev) {
			continue
		}
		working = append(working, candidate[T]{item: item, env: env})
	}
	itemsFilteredTotal.WithLabelValues(p.config.Name).Add(float64(len(items) - len(working)))

	if len(working) == 0 {
		res.Duration = time.Since(start)
		pollsTotal.WithLabelValues(p.config.Name, modeLabel, "empty").Inc()
		pollDuration.WithLabelValues(p.config.Name, modeLabel).Observe(res.Duration.Seconds())
		logger.Debug().
			Str("mode", modeLabel).
			Int("fetched", res.Fetched).
			Time("watermark", prev).
			Msg("No new items")
		return res, nil
	}

	slices.SortFunc(working, newestFirst[T])
	newest := working[0].env.TS

	for i := len(working) - 1; i >= 0; i-- {
		c := working[i]
		if err := p.sink.Emit(ctx, c.item, c.env); err != nil {
			res.Duration = time.Since(start)
			return res, fail(fmt.Errorf("poll %s: emit %s: %w", p.config.Name, c.env.ID, err))
		}
		res.Emitted++
		itemsEmittedTotal.WithLabelValues(p.config.Name).Inc()
	}

	if newest.After(prev) {
		if err := p.store.Set(ctx, p.config.Key, newest); err != nil {
			res.Duration = time.Since(start)
			return res, fail(fmt.Errorf("poll %s: write watermark %s: %w", p.config.Name, p.config.Key, err))
		}
		res.Watermark = newest
		res.Advanced = true
		watermarkTimestamp.WithLabelValues(p.config.Name).Set(float64(newest.UnixMilli()) / 1000)
	}

	res.Duration = time.Since(start)
	pollsTotal.WithLabelValues(p.config.Name, modeLabel, "emitted").Inc()
	pollDuration.WithLabelValues(p.config.Name, modeLabel).Observe(res.Duration.Seconds())
	logger.Info().
		Str("mode", modeLabel).
		Int("fetched", res.Fetched).
		Int("emitted", res.Emitted).
		Time("previous", prev).
		Time("watermark", res.Watermark).
		Bool("first_run", res.FirstRun).
		Dur("duration", res.Duration).
		Msg("Poll complete")

	return res, nil
}
