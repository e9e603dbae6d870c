package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	remainingGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connector_ratelimit_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	}, []string{"api"})

	waitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_ratelimit_waits_total",
		Help: "Total number of requests delayed until the upstream window reset",
	}, []string{"api"})

	throttlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_ratelimit_throttles_total",
		Help: "Total number of requests throttled near quota exhaustion",
	}, []string{"api"})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_ratelimit_rejections_total",
		Help: "Total number of requests rejected because the reset was too far away",
	}, []string{"api"})
)

// ErrQuotaExhausted is returned by Wait when the upstream window resets later
// than the configured maximum wait.
var ErrQuotaExhausted = errors.New("rate limit quota exhausted")

// Config holds tracker configuration.
type Config struct {
	// Name identifies the API (e.g. "calendly"); it labels metrics and Redis keys
	Name string

	// RequestsPerSecond paces requests proactively (0 disables the token bucket)
	RequestsPerSecond float64

	// Burst is the token bucket size
	Burst int

	// MaxWait bounds how long Wait sleeps for an exhausted window
	MaxWait time.Duration

	// ThrottleDelay is added per request while NeedsThrottling
	ThrottleDelay time.Duration

	// Redis shares the observed state across poller replicas (optional)
	Redis *redis.Client
}

// DefaultConfig returns a conservative configuration for api.
func DefaultConfig(api string) Config {
	return Config{
		Name:              api,
		RequestsPerSecond: 5,
		Burst:             5,
		MaxWait:           time.Minute,
		ThrottleDelay:     time.Second,
	}
}

// Tracker gates requests to one API.
type Tracker struct {
	config  Config
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu    sync.RWMutex
	state *State
}

// NewTracker creates a new rate limit tracker.
func NewTracker(cfg Config, logger zerolog.Logger) *Tracker {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Tracker{
		config:  cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With().Str("api", cfg.Name).Logger(),
	}
}

func (t *Tracker) redisKey() string {
	return "ratelimit:" + t.config.Name
}

// GetState returns the last observed quota. Redis, when configured, wins over
// the local copy so replicas share one view. Returns nil when nothing was
// observed yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	if t.config.Redis != nil {
		vals, err := t.config.Redis.HGetAll(ctx, t.redisKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("get rate limit state: %w", err)
		}
		if len(vals) > 0 {
			return parseStoredState(vals)
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state == nil {
		return nil, nil
	}
	s := *t.state
	return &s, nil
}

func parseStoredState(vals map[string]string) (*State, error) {
	limit, err := strconv.Atoi(vals["limit"])
	if err != nil {
		return nil, fmt.Errorf("parse stored limit: %w", err)
	}
	remaining, err := strconv.Atoi(vals["remaining"])
	if err != nil {
		return nil, fmt.Errorf("parse stored remaining: %w", err)
	}
	resetAt, err := strconv.ParseInt(vals["reset_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse stored reset_at: %w", err)
	}
	lastUpdate, err := strconv.ParseInt(vals["last_update"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse stored last_update: %w", err)
	}
	return &State{
		Limit:      limit,
		Remaining:  remaining,
		ResetAt:    time.Unix(resetAt, 0),
		LastUpdate: time.UnixMilli(lastUpdate),
	}, nil
}

// UpdateFromHeaders parses rate limit headers and records the state.
// Responses without the headers are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(strings.TrimSpace(remainStr))
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	limit := 0
	if v := headers.Get(HeaderLimit); v != "" {
		if limit, err = strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
	}

	resetStr := headers.Get(HeaderReset)
	if resetStr == "" {
		return fmt.Errorf("%s header missing", HeaderReset)
	}
	// some APIs send fractional seconds
	resetVal, err := strconv.ParseFloat(strings.TrimSpace(resetStr), 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderReset, err)
	}

	now := time.Now()
	state := &State{
		Limit:      limit,
		Remaining:  remain,
		ResetAt:    resetTime(now, int64(math.Ceil(resetVal))),
		LastUpdate: now,
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	if t.config.Redis != nil {
		pipe := t.config.Redis.TxPipeline()
		pipe.HSet(ctx, t.redisKey(), map[string]any{
			"limit":       state.Limit,
			"remaining":   state.Remaining,
			"reset_at":    state.ResetAt.Unix(),
			"last_update": state.LastUpdate.UnixMilli(),
		})
		pipe.ExpireAt(ctx, t.redisKey(), state.ResetAt.Add(time.Minute))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("store rate limit state in redis: %w", err)
		}
	}

	remainingGauge.WithLabelValues(t.config.Name).Set(float64(remain))

	switch {
	case state.Exhausted():
		t.logger.Warn().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit exhausted - requests will wait for reset")
	case state.NeedsThrottling():
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", limit).
			Msg("Rate limit low - requests will be throttled")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Time("reset_at", state.ResetAt).
			Msg("Rate limit state updated")
	}

	return nil
}

// Wait blocks until a request may be sent. It returns ErrQuotaExhausted
// when the window resets later than MaxWait, or the context error.
func (t *Tracker) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	var delay time.Duration
	switch {
	case state.Exhausted():
		delay = state.TimeUntilReset()
		if t.config.MaxWait > 0 && delay > t.config.MaxWait {
			rejectionsTotal.WithLabelValues(t.config.Name).Inc()
			return fmt.Errorf("%w: %s resets in %s", ErrQuotaExhausted, t.config.Name, delay.Round(time.Second))
		}
		waitsTotal.WithLabelValues(t.config.Name).Inc()
		t.logger.Info().Dur("wait", delay).Msg("Waiting for rate limit reset")
	case state.NeedsThrottling():
		delay = t.config.ThrottleDelay
		throttlesTotal.WithLabelValues(t.config.Name).Inc()
	}

	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
