package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	Validation struct {
		MaxConcurrent int           `yaml:"max_concurrent"`
		RetryAttempts int           `yaml:"retry_attempts"`
		Timeout       time.Duration `yaml:"timeout"`
		DispatchDelay time.Duration `yaml:"dispatch_delay"`
		BackoffStep   time.Duration `yaml:"backoff_step"`
	} `yaml:"validation"`

	Probe struct {
		Method       string `yaml:"method"`
		ProxyBaseURL string `yaml:"proxy_base_url"`
		UserAgent    string `yaml:"user_agent"`
	} `yaml:"probe"`

	Events struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		BufferSize   int           `yaml:"buffer_size"`
	} `yaml:"events"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`
	} `yaml:"rate_limiting"`
}

// Validate reports every out-of-range value at once, joined into one error.
func (c *Config) Validate() error {
	var problems []error
	require := func(ok bool, field, rule string) {
		if !ok {
			problems = append(problems, fmt.Errorf("%s %s", field, rule))
		}
	}

	require(c.Server.Address != "", "server.address", "must not be empty")
	require(c.Server.ReadTimeout > 0, "server.read_timeout", "must be > 0")
	require(c.Server.ShutdownTimeout > 0, "server.shutdown_timeout", "must be > 0")
	// write_timeout may be 0: the events endpoint holds connections open
	require(c.Catalog.Path != "", "catalog.path", "must not be empty")

	require(c.Validation.MaxConcurrent >= 1, "validation.max_concurrent", "must be >= 1")
	require(c.Validation.RetryAttempts >= 1, "validation.retry_attempts", "must be >= 1")
	require(c.Validation.Timeout > 0, "validation.timeout", "must be > 0")
	require(c.Validation.DispatchDelay >= 0, "validation.dispatch_delay", "must be >= 0")
	require(c.Validation.BackoffStep >= 0, "validation.backoff_step", "must be >= 0")
	require(c.Probe.Method == "HEAD" || c.Probe.Method == "GET", "probe.method", "must be HEAD or GET")

	require(c.Events.PingInterval > 0, "events.ping_interval", "must be > 0")
	require(c.Events.WriteTimeout > 0, "events.write_timeout", "must be > 0")
	require(c.Events.BufferSize > 0, "events.buffer_size", "must be > 0")
	require(c.Logging.Level != "", "logging.level", "must not be empty")

	if c.Tracing.Enabled {
		require(c.Tracing.JaegerURL != "", "tracing.jaeger_url", "must be set when tracing is enabled")
		require(c.Tracing.SampleRate >= 0 && c.Tracing.SampleRate <= 1, "tracing.sample_rate", "must be within [0, 1]")
	}
	if c.Redis.Enabled {
		require(c.Redis.Address != "", "redis.address", "must be set when redis is enabled")
		require(c.Redis.PoolSize > 0, "redis.pool_size", "must be > 0 when redis is enabled")
	}
	if rl := c.RateLimiting.HTTP; c.RateLimiting.Enabled {
		require(rl.RequestsPerSecond > 0, "rate_limiting.http.requests_per_second", "must be > 0")
		require(rl.Burst > 0, "rate_limiting.http.burst", "must be > 0")
		require(rl.MaxConcurrent >= 0, "rate_limiting.http.max_concurrent", "must be >= 0")
	}

	return errors.Join(problems...)
}

// Load layers defaults, the YAML file at configPath (optional) and the
// environment, in that order. A .env file in the working directory feeds
// the environment first.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":3001"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 0
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Catalog.Path = "stations.json"

	cfg.Validation.MaxConcurrent = 3
	cfg.Validation.RetryAttempts = 2
	cfg.Validation.Timeout = 10 * time.Second
	cfg.Validation.DispatchDelay = 50 * time.Millisecond
	cfg.Validation.BackoffStep = 500 * time.Millisecond

	cfg.Probe.Method = "HEAD"
	cfg.Probe.UserAgent = "Eclairia-Radio-Player/1.0"

	cfg.Events.PingInterval = 30 * time.Second
	cfg.Events.WriteTimeout = 10 * time.Second
	cfg.Events.BufferSize = 64

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	return cfg
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// envOverrides maps environment variables onto config fields. Empty
// variables are ignored.
var envOverrides = []struct {
	name  string
	apply func(c *Config, v string)
}{
	{"PORT", func(c *Config, v string) { c.Server.Address = ":" + v }},
	{"ECLAIRIA_SERVER_ADDRESS", func(c *Config, v string) { c.Server.Address = v }},
	{"ECLAIRIA_CATALOG_PATH", func(c *Config, v string) { c.Catalog.Path = v }},
	{"ECLAIRIA_PROXY_BASE_URL", func(c *Config, v string) { c.Probe.ProxyBaseURL = v }},
	{"ECLAIRIA_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"ECLAIRIA_REDIS_ADDRESS", func(c *Config, v string) {
		c.Redis.Enabled = true
		c.Redis.Address = v
	}},
	{"ECLAIRIA_REDIS_PASSWORD", func(c *Config, v string) { c.Redis.Password = v }},
	{"ECLAIRIA_MAX_CONCURRENT", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Validation.MaxConcurrent = n
		}
	}},
}

func (c *Config) applyEnvOverrides() {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(c, v)
		}
	}
}
