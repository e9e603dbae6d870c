// Package config loads poller configuration from defaults, an optional YAML
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/Sternrassler/connector-poller/pkg/apierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (POLLER_POLL_INTERVAL ...).
const EnvPrefix = "POLLER"

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Sink types.
const (
	SinkLog         = "log"
	SinkRedisStream = "redis_stream"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Poll     PollConfig     `mapstructure:"poll"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Sink     SinkConfig     `mapstructure:"sink"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Calendly CalendlyConfig `mapstructure:"calendly"`
	Vercel   VercelConfig   `mapstructure:"vercel"`
	Front    FrontConfig    `mapstructure:"frontapp"`
}

type ServerConfig struct {
	// Addr serves /metrics and /health; empty disables the server
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type PollConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	DeployMaxResults    int           `mapstructure:"deploy_max_results"`
	ScheduledMaxResults int           `mapstructure:"scheduled_max_results"`
}

type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite_path"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SinkConfig struct {
	Type      string        `mapstructure:"type"`
	Stream    string        `mapstructure:"stream"`
	MaxLen    int64         `mapstructure:"max_len"`
	Dedupe    bool          `mapstructure:"dedupe"`
	DedupeTTL time.Duration `mapstructure:"dedupe_ttl"`
}

type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	// SharedRateLimit keeps rate-limit state in Redis across replicas
	SharedRateLimit bool `mapstructure:"shared_rate_limit"`
}

type CalendlyConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Token        string `mapstructure:"token"`
	BaseURL      string `mapstructure:"base_url"`
	Instance     string `mapstructure:"instance"`
	Organization string `mapstructure:"organization"`
	Group        string `mapstructure:"group"`
	User         string `mapstructure:"user"`
}

type VercelConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Token     string   `mapstructure:"token"`
	BaseURL   string   `mapstructure:"base_url"`
	Instance  string   `mapstructure:"instance"`
	TeamID    string   `mapstructure:"team_id"`
	ProjectID string   `mapstructure:"project_id"`
	States    []string `mapstructure:"states"`
}

type FrontConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Token    string   `mapstructure:"token"`
	BaseURL  string   `mapstructure:"base_url"`
	Instance string   `mapstructure:"instance"`
	InboxID  string   `mapstructure:"inbox_id"`
	Statuses []string `mapstructure:"statuses"`
}

// Load reads configuration. configPath names a YAML file; when empty,
// config.yaml is looked up in ./configs and the working directory and may
// be absent. envFiles are loaded into the environment first (default .env);
// missing files are ignored and existing variables are never overridden.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Tokens are also accepted under their conventional unprefixed names
	v.BindEnv("calendly.token", "POLLER_CALENDLY_TOKEN", "CALENDLY_TOKEN")
	v.BindEnv("vercel.token", "POLLER_VERCEL_TOKEN", "VERCEL_TOKEN")
	v.BindEnv("frontapp.token", "POLLER_FRONTAPP_TOKEN", "FRONT_API_TOKEN")
	v.BindEnv("redis.addr", "POLLER_REDIS_ADDR", "REDIS_URL")
	v.BindEnv("redis.password", "POLLER_REDIS_PASSWORD", "REDIS_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("poll.interval", "15m")
	v.SetDefault("poll.deploy_max_results", 25)
	v.SetDefault("poll.scheduled_max_results", 0)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.sqlite_path", "./data/watermarks.db")
	v.SetDefault("store.key_prefix", "wm")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("sink.type", SinkLog)
	v.SetDefault("sink.stream", "connector:events")
	v.SetDefault("sink.max_len", 10000)
	v.SetDefault("sink.dedupe", true)
	v.SetDefault("sink.dedupe_ttl", "168h")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.requests_per_second", 5.0)
	v.SetDefault("http.burst", 5)
	v.SetDefault("http.shared_rate_limit", false)

	v.SetDefault("calendly.enabled", false)
	v.SetDefault("calendly.token", "")
	v.SetDefault("calendly.base_url", "https://api.calendly.com")
	v.SetDefault("calendly.instance", "default")
	v.SetDefault("calendly.organization", "")
	v.SetDefault("calendly.group", "")
	v.SetDefault("calendly.user", "")

	v.SetDefault("vercel.enabled", false)
	v.SetDefault("vercel.token", "")
	v.SetDefault("vercel.base_url", "https://api.vercel.com")
	v.SetDefault("vercel.instance", "default")
	v.SetDefault("vercel.team_id", "")
	v.SetDefault("vercel.project_id", "")
	v.SetDefault("vercel.states", []string{})

	v.SetDefault("frontapp.enabled", false)
	v.SetDefault("frontapp.token", "")
	v.SetDefault("frontapp.base_url", "https://api2.frontapp.com")
	v.SetDefault("frontapp.instance", "default")
	v.SetDefault("frontapp.inbox_id", "")
	v.SetDefault("frontapp.statuses", []string{})
}

// Validate checks the settings needed to run pollers.
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return apierror.Configuration("poll.interval", "must be positive (got %s)", c.Poll.Interval)
	}
	if c.Poll.DeployMaxResults < 0 || c.Poll.ScheduledMaxResults < 0 {
		return apierror.Configuration("poll.max_results", "must not be negative")
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if !slices.Contains([]string{SinkLog, SinkRedisStream}, c.Sink.Type) {
		return apierror.Configuration("sink.type", "unknown sink %q", c.Sink.Type)
	}
	if c.Sink.Type == SinkRedisStream && c.Sink.Stream == "" {
		return apierror.Configuration("sink.stream", "required for the redis_stream sink")
	}

	enabled := 0
	for _, conn := range []struct {
		name    string
		enabled bool
		token   string
	}{
		{"calendly", c.Calendly.Enabled, c.Calendly.Token},
		{"vercel", c.Vercel.Enabled, c.Vercel.Token},
		{"frontapp", c.Front.Enabled, c.Front.Token},
	} {
		if !conn.enabled {
			continue
		}
		enabled++
		if conn.token == "" {
			return apierror.Configuration(conn.name+".token", "required when %s is enabled", conn.name)
		}
	}
	if enabled == 0 {
		return apierror.Configuration("connectors", "no connector enabled")
	}
	return nil
}

// ValidateStore checks only the watermark store settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Backend {
	case StoreMemory, StoreRedis:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return apierror.Configuration("store.sqlite_path", "required for the sqlite backend")
		}
	default:
		return apierror.Configuration("store.backend", "unknown backend %q", c.Store.Backend)
	}
	return nil
}

// NeedsRedis reports whether any component uses the Redis connection.
func (c *Config) NeedsRedis() bool {
	return c.Store.Backend == StoreRedis ||
		c.Sink.Type == SinkRedisStream ||
		c.HTTP.SharedRateLimit
}
