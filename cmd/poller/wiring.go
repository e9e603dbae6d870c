package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/connector-poller/pkg/client"
	"github.com/Sternrassler/connector-poller/pkg/config"
	"github.com/Sternrassler/connector-poller/pkg/connectors/calendly"
	"github.com/Sternrassler/connector-poller/pkg/connectors/frontapp"
	"github.com/Sternrassler/connector-poller/pkg/connectors/vercel"
	"github.com/Sternrassler/connector-poller/pkg/emit"
	"github.com/Sternrassler/connector-poller/pkg/logging"
	"github.com/Sternrassler/connector-poller/pkg/poll"
	"github.com/Sternrassler/connector-poller/pkg/watermark"
)

// app holds the shared infrastructure built from the configuration.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	redis  *redis.Client
	store  watermark.Store
	close  []func() error
}

// newApp connects Redis when any component needs it and opens the
// watermark store.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	if cfg.NeedsRedis() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.close = append(a.close, a.redis.Close)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	switch cfg.Store.Backend {
	case config.StoreRedis:
		a.store = watermark.NewRedisStore(a.redis)
	case config.StoreSQLite:
		s, err := watermark.OpenSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = s
		a.close = append(a.close, s.Close)
	default:
		a.store = watermark.NewMemoryStore()
	}

	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.close) - 1; i >= 0; i-- {
		errs = append(errs, a.close[i]())
	}
	a.close = nil
	return errors.Join(errs...)
}

// Key builds the watermark key of a connector instance.
func (a *app) Key(connector, instance string) string {
	return watermark.Key{Prefix: a.cfg.Store.KeyPrefix, Connector: connector, Instance: instance}.String()
}

// SeenPrefix namespaces the dedupe ids of a connector instance.
func (a *app) SeenPrefix(connector, instance string) string {
	return watermark.Key{Prefix: a.cfg.Store.KeyPrefix, Connector: connector, Instance: instance, Slot: "seen"}.String()
}

func (a *app) apiClient(name, baseURL, token string) (*client.Client, error) {
	cc := client.DefaultConfig(name, baseURL, token)
	cc.Timeout = a.cfg.HTTP.Timeout
	cc.MaxRetries = a.cfg.HTTP.MaxRetries
	cc.RateLimit.RequestsPerSecond = a.cfg.HTTP.RequestsPerSecond
	cc.RateLimit.Burst = a.cfg.HTTP.Burst
	if a.cfg.HTTP.SharedRateLimit {
		cc.RateLimit.Redis = a.redis
	}
	return client.New(cc)
}

func (a *app) pollConfig(base poll.Config) poll.Config {
	base.DeployMaxResults = a.cfg.Poll.DeployMaxResults
	base.ScheduledMaxResults = a.cfg.Poll.ScheduledMaxResults
	return base
}

// Jobs builds one poller per enabled connector. only restricts the result
// to the named connectors when non-empty.
func (a *app) Jobs(only ...string) ([]poll.Job, error) {
	want := func(name string, enabled bool) bool {
		if len(only) == 0 {
			return enabled
		}
		for _, o := range only {
			if o == name {
				return true
			}
		}
		return false
	}

	var jobs []poll.Job

	if c := a.cfg.Calendly; want("calendly", c.Enabled) {
		api, err := a.apiClient("calendly", c.BaseURL, c.Token)
		if err != nil {
			return nil, err
		}
		scope := url.Values{}
		for k, v := range map[string]string{"organization": c.Organization, "group": c.Group, "user": c.User} {
			if v != "" {
				scope.Set(k, v)
			}
		}
		src := calendly.NewEventsSource(calendly.New(api, c.BaseURL), scope)
		jobs = append(jobs, newJob[calendly.Event](a, "calendly", c.Instance, src,
			poll.DefaultConfig(jobName("calendly", c.Instance), a.Key("calendly", c.Instance)),
			poll.NewerThanWatermark[calendly.Event]()))
	}

	if c := a.cfg.Vercel; want("vercel", c.Enabled) {
		api, err := a.apiClient("vercel", c.BaseURL, c.Token)
		if err != nil {
			return nil, err
		}
		src := vercel.NewDeploymentsSource(vercel.New(api), c.TeamID, c.ProjectID)
		jobs = append(jobs, newJob[vercel.Deployment](a, "vercel", c.Instance, src,
			poll.DefaultConfig(jobName("vercel", c.Instance), a.Key("vercel", c.Instance)),
			vercel.NewDeploymentsFilter(c.States...)))
	}

	if c := a.cfg.Front; want("frontapp", c.Enabled) {
		api, err := a.apiClient("frontapp", c.BaseURL, c.Token)
		if err != nil {
			return nil, err
		}
		params := url.Values{}
		for _, s := range c.Statuses {
			params.Add("q[statuses][]", s)
		}
		src := frontapp.NewConversationsSource(frontapp.New(api), c.InboxID, params)
		jobs = append(jobs, newJob[frontapp.Conversation](a, "frontapp", c.Instance, src,
			frontapp.PollConfig(jobName("frontapp", c.Instance), a.Key("frontapp", c.Instance)),
			poll.NewerThanWatermark[frontapp.Conversation]()))
	}

	if len(jobs) == 0 {
		return nil, errors.New("no connector selected")
	}
	return jobs, nil
}

func jobName(connector, instance string) string {
	return connector + "/" + instance
}

func newJob[T any](a *app, connector, instance string, src poll.Source[T], pc poll.Config, filter poll.Filter[T]) poll.Job {
	jl := logging.ForConnector(a.logger, connector, instance)
	return poll.New[T](src, a.store, newSink[T](a, connector, instance, jl), a.pollConfig(pc), filter).WithLogger(jl)
}

// newSink builds the configured sink, wrapped in id dedupe when enabled.
// Dedupe state lives in Redis when a connection exists.
func newSink[T any](a *app, connector, instance string, jl zerolog.Logger) emit.Sink[T] {
	var sink emit.Sink[T]
	switch a.cfg.Sink.Type {
	case config.SinkRedisStream:
		sink = emit.NewRedisStreamSink[T](a.redis, a.cfg.Sink.Stream, a.cfg.Sink.MaxLen)
	default:
		sink = emit.NewLogSink[T](jl)
	}

	if !a.cfg.Sink.Dedupe {
		return sink
	}
	var seen emit.Seen = emit.NewMemorySeen()
	if a.redis != nil {
		seen = emit.NewRedisSeen(a.redis, a.SeenPrefix(connector, instance), a.cfg.Sink.DedupeTTL)
	}
	return emit.Unique[T](sink, seen)
}
