// Package config defines service configuration and how it is loaded.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Source* configure the catalog search endpoint.
	SourceURL       string        `koanf:"source_url"`
	SourceTimeout   time.Duration `koanf:"source_timeout"`
	SourcePageDelay time.Duration `koanf:"source_page_delay"`
	SourceMaxPages  int           `koanf:"source_max_pages"`
	SourceCurrency  string        `koanf:"source_currency"`
	SourceDest      string        `koanf:"source_dest"`
	SourceSort      string        `koanf:"source_sort"`

	// DefaultLimit applies when a caller passes no limit; MaxLimit caps it.
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`

	// IngestRate caps parse and job requests per second; 0 disables the cap.
	IngestRate  float64 `koanf:"ingest_rate"`
	IngestBurst int     `koanf:"ingest_burst"`

	// StrictSuccess makes an ingest successful only when something was saved.
	StrictSuccess bool `koanf:"strict_success"`

	// StoreDriver is memory, sqlite or postgres.
	StoreDriver     string `koanf:"store_driver"`
	StoreDSN        string `koanf:"store_dsn"`
	StoreAutoSchema bool   `koanf:"store_auto_schema"`

	// QueueSize bounds the ingest job queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets how many ingest jobs run at once.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the pending-query table.
	DedupeSize int `koanf:"dedupe_size"`

	// ResultsBackend is memory or redis.
	ResultsBackend string        `koanf:"results_backend"`
	RedisURL       string        `koanf:"redis_url"`
	ResultsTTL     time.Duration `koanf:"results_ttl"`

	// Schedule* drive periodic ingests. An empty spec disables the scheduler.
	ScheduleSpec    string   `koanf:"schedule_spec"`
	ScheduleQueries []string `koanf:"schedule_queries"`
	ScheduleLimit   int      `koanf:"schedule_limit"`
	ScheduleOnStart bool     `koanf:"schedule_on_start"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":8080",
		SourceURL:       "https://search.wb.ru/exactmatch/ru/common/v4/search",
		SourceTimeout:   15 * time.Second,
		SourcePageDelay: 500 * time.Millisecond,
		SourceMaxPages:  100,
		SourceCurrency:  "rub",
		SourceDest:      "-1257786",
		SourceSort:      "popular",
		DefaultLimit:    100,
		MaxLimit:        1000,
		IngestBurst:     5,
		StoreDriver:     "memory",
		StoreAutoSchema: true,
		QueueSize:       256,
		WorkerCount:     2,
		DedupeSize:      10_000,
		ResultsBackend:  "memory",
		ResultsTTL:      7 * 24 * time.Hour,
		ScheduleLimit:   100,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	c.normalize()

	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	case c.SourceURL == "":
		return invalid("source_url must not be empty")
	case c.SourceTimeout <= 0:
		return invalid("source_timeout must be positive")
	case c.SourcePageDelay < 0:
		return invalid("source_page_delay must not be negative")
	case c.SourceMaxPages < 0:
		return invalid("source_max_pages must not be negative")
	case c.DefaultLimit < 1:
		return invalid("default_limit must be at least 1")
	case c.MaxLimit < c.DefaultLimit:
		return invalid("max_limit (%d) must not be below default_limit (%d)", c.MaxLimit, c.DefaultLimit)
	case c.IngestRate < 0:
		return invalid("ingest_rate must not be negative")
	case c.IngestRate > 0 && c.IngestBurst < 1:
		return invalid("ingest_burst must be at least 1 when ingest_rate is set")
	case c.QueueSize < 1:
		return invalid("queue_size must be at least 1")
	case c.WorkerCount < 1:
		return invalid("worker_count must be at least 1")
	case c.DedupeSize < 1:
		return invalid("dedupe_size must be at least 1")
	case c.ShutdownTimeout <= 0:
		return invalid("shutdown_timeout must be positive")
	}

	switch c.StoreDriver {
	case "memory":
	case "sqlite", "postgres":
		if c.StoreDSN == "" {
			return invalid("store_dsn is required for store_driver %q", c.StoreDriver)
		}
	default:
		return invalid("unknown store_driver %q", c.StoreDriver)
	}

	switch c.ResultsBackend {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return invalid("redis_url is required for results_backend redis")
		}
		if c.ResultsTTL < 0 {
			return invalid("results_ttl must not be negative")
		}
	default:
		return invalid("unknown results_backend %q", c.ResultsBackend)
	}

	if c.ScheduleSpec != "" {
		if len(c.ScheduleQueries) == 0 {
			return invalid("schedule_queries must not be empty when schedule_spec is set")
		}
		if c.ScheduleLimit < 0 || c.ScheduleLimit > c.MaxLimit {
			return invalid("schedule_limit must be between 0 and max_limit")
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	if c.StoreDriver == "" {
		c.StoreDriver = "memory"
	}
	c.ResultsBackend = strings.ToLower(strings.TrimSpace(c.ResultsBackend))
	if c.ResultsBackend == "" {
		c.ResultsBackend = "memory"
	}
	c.ScheduleSpec = strings.TrimSpace(c.ScheduleSpec)

	queries := c.ScheduleQueries[:0]
	for _, q := range c.ScheduleQueries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	c.ScheduleQueries = queries
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
