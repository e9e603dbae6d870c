package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_http_retries_total",
		Help: "Retried HTTP requests by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_http_retry_backoff_seconds",
		Help:    "Seconds slept before a retry, by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_http_retry_exhausted_total",
		Help: "Requests that failed after the last retry, by error class",
	}, []string{"error_class"})
)

// RetryConfig controls exponential backoff between attempts of one request.
type RetryConfig struct {
	// MaxAttempts counts the first try
	MaxAttempts int

	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig allows three attempts starting at one second, doubling
// up to thirty.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForClass scales base for an error class. Rate limit responses
// back off five times longer, network errors twice as long.
func RetryConfigForClass(class apierror.Class, base RetryConfig) RetryConfig {
	cfg := base
	switch class {
	case apierror.ClassRateLimit:
		cfg.InitialBackoff *= 5
		cfg.MaxBackoff = max(cfg.MaxBackoff, 60*time.Second)
	case apierror.ClassNetwork:
		cfg.InitialBackoff *= 2
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return cfg
}

// backoffFor returns the un-jittered wait before attempt+1.
func (r RetryConfig) backoffFor(attempt int) time.Duration {
	backoff := float64(r.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= r.BackoffMultiplier
		if time.Duration(backoff) >= r.MaxBackoff {
			return r.MaxBackoff
		}
	}
	return min(time.Duration(backoff), r.MaxBackoff)
}

// retryWithBackoff executes fn with exponential backoff. classify maps each
// failure to an error class; only retryable classes are retried. Context
// cancellation is honoured and jitter spreads concurrent retries.
func retryWithBackoff(ctx context.Context, base RetryConfig, fn func() error, classify func(error) apierror.Class) error {
	attempts := max(base.MaxAttempts, 1)

	var lastErr error
	var lastClass apierror.Class

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("error_class", string(lastClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		lastClass = classify(err)

		if !lastClass.Retryable() {
			return lastErr
		}
		if attempt >= attempts {
			break
		}

		retriesTotal.WithLabelValues(string(lastClass)).Inc()

		// ±20% jitter
		backoff := RetryConfigForClass(lastClass, base).backoffFor(attempt)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(lastClass)).Observe(jitter.Seconds())

		log.Debug().
			Str("error_class", string(lastClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("error_class", string(lastClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w: %w", ErrContextCancelled, ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	log.Warn().
		Str("error_class", string(lastClass)).
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, lastErr)
}
