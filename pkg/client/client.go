// Package client provides the HTTP transport shared by connectors, with
// request validation, rate limiting, retries and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/Sternrassler/connector-poller/pkg/ratelimit"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_http_requests_total",
		Help: "Total API requests by api and status",
	}, []string{"api", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_http_request_duration_seconds",
		Help:    "API request duration in seconds including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"api"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_http_errors_total",
		Help: "Total API errors by api and class",
	}, []string{"api", "class"})
)

// Client is a JSON API client for one SaaS API.
type Client struct {
	http        *resty.Client
	rateLimiter *ratelimit.Tracker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Name identifies the API in logs and metrics (e.g. "calendly")
	Name string

	// BaseURL is prefixed to relative request paths
	BaseURL string

	// Token is sent as "Authorization: <AuthScheme> <Token>" when set
	Token string

	// AuthScheme defaults to Bearer
	AuthScheme string

	// UserAgent header
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// Retry
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// RateLimit configures request pacing; its Name defaults to Name
	RateLimit ratelimit.Config
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(name, baseURL, token string) Config {
	return Config{
		Name:           name,
		BaseURL:        baseURL,
		Token:          token,
		AuthScheme:     "Bearer",
		UserAgent:      "connector-poller/1.0",
		Timeout:        30 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		RateLimit:      ratelimit.DefaultConfig(name),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Name == "" {
		return apierror.Configuration("client.name", "must not be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if c.BaseURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierror.Configuration("client.base_url", "must be an absolute http(s) URL (got %q)", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return apierror.Configuration("client.timeout", "must be positive (got %s)", c.Timeout)
	}
	if c.MaxRetries < 0 {
		return apierror.Configuration("client.max_retries", "must be >= 0 (got %d)", c.MaxRetries)
	}
	return nil
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Name == "" {
		cfg.RateLimit.Name = cfg.Name
	}

	logger := log.With().Str("component", "client").Str("api", cfg.Name).Logger()

	h := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent)
	if cfg.Token != "" {
		scheme := cfg.AuthScheme
		if scheme == "" {
			scheme = "Bearer"
		}
		h.SetAuthScheme(scheme).SetAuthToken(cfg.Token)
	}

	return &Client{
		http:        h,
		rateLimiter: ratelimit.NewTracker(cfg.RateLimit, logger),
		config:      cfg,
		logger:      logger,
	}, nil
}

// Name returns the API name.
func (c *Client) Name() string {
	return c.config.Name
}

// SetHTTPClient replaces the underlying transport (for testing).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.http.SetTransport(hc.Transport)
}

// Do sends req and decodes a successful JSON response into out (which may be
// nil). Failures are returned as *apierror.TransportError; an invalid request
// returns *apierror.ConfigurationError before any network call.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if err := req.Validate(); err != nil {
		return err
	}

	endpoint := req.endpoint()
	method := req.method()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(c.config.Name).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	retryCfg := RetryConfig{
		MaxAttempts:       c.config.MaxRetries + 1,
		InitialBackoff:    c.config.InitialBackoff,
		MaxBackoff:        c.config.MaxBackoff,
		BackoffMultiplier: 2.0,
	}

	send := func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		r := c.http.R().SetContext(ctx)
		if len(req.Query) > 0 {
			r.SetQueryParamsFromValues(req.Query)
		}
		if req.Body != nil {
			r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
		}

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("method", method).
			Msg("Executing request")

		resp, err := r.Execute(method, req.Path)
		if err != nil {
			errorsTotal.WithLabelValues(c.config.Name, string(apierror.ClassNetwork)).Inc()
			requestsTotal.WithLabelValues(c.config.Name, "network_error").Inc()
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
			return &apierror.TransportError{Class: apierror.ClassNetwork, Err: err}
		}

		if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header()); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		status := resp.StatusCode()
		requestsTotal.WithLabelValues(c.config.Name, strconv.Itoa(status)).Inc()

		if status >= 400 {
			class := apierror.ClassifyStatus(status)
			errorsTotal.WithLabelValues(c.config.Name, string(class)).Inc()
			title, message := parseErrorBody(status, resp.Body())

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", status).
				Str("error_class", string(class)).
				Str("title", title).
				Msg("API request error")

			return &apierror.TransportError{
				StatusCode: status,
				Class:      class,
				Title:      title,
				Message:    message,
			}
		}

		body = resp.Body()
		return nil
	}

	var err error
	if req.retryable() {
		err = retryWithBackoff(ctx, retryCfg, send, classify)
	} else {
		// a repeated POST or PATCH could apply the change twice
		err = send()
	}

	if err != nil {
		if apierror.IsTransport(err) {
			return err
		}
		if errors.Is(err, ratelimit.ErrQuotaExhausted) {
			return &apierror.TransportError{Class: apierror.ClassRateLimit, Err: err}
		}
		return apierror.AsTransport(err)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apierror.TransportError{
			Class: apierror.ClassServer,
			Title: "invalid response body",
			Err:   fmt.Errorf("decode %s %s: %w", method, endpoint, err),
		}
	}
	return nil
}

// Get performs a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Get(path, query), out)
}

// classify maps an attempt error to its retry class. Exhausted quotas and
// cancelled contexts are final.
func classify(err error) apierror.Class {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ""
	}
	var te *apierror.TransportError
	if errors.As(err, &te) {
		return te.Class
	}
	return ""
}
