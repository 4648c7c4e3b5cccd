package inspector

import (
	"time"

	"github.com/hugolhafner/go-offsets/errorhandler"
	"github.com/hugolhafner/go-offsets/logger"
	"github.com/hugolhafner/go-offsets/otel"
)

const DefaultFetchTimeout = 5 * time.Second

type Config struct {
	FetchTimeout time.Duration
	Concurrency  int
	ErrorHandler errorhandler.Handler
	Logger       logger.Logger
	Telemetry    *otel.Telemetry
}

func defaultConfig() Config {
	l := logger.NewNoopLogger()
	return Config{
		FetchTimeout: DefaultFetchTimeout,
		Concurrency:  1,
		Logger:       l,
		Telemetry:    otel.Noop(),
	}
}

type Option func(*Config)

// WithFetchTimeout bounds the wait for the record at the latest offset
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.FetchTimeout = d
		}
	}
}

// WithConcurrency inspects up to n partitions at once. Results are still
// emitted in ascending partition order.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Concurrency = n
		}
	}
}

// WithErrorHandler decides what happens to per-partition errors.
// Defaults to errorhandler.Default on the configured logger.
func WithErrorHandler(h errorhandler.Handler) Option {
	return func(c *Config) {
		if h != nil {
			c.ErrorHandler = h
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(c *Config) {
		if t != nil {
			c.Telemetry = t
		}
	}
}
