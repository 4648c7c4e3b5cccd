package offsets

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/hugolhafner/go-offsets/auth"
	"github.com/hugolhafner/go-offsets/errorhandler"
	"github.com/hugolhafner/go-offsets/inspector"
	"github.com/hugolhafner/go-offsets/kafka"
	"github.com/hugolhafner/go-offsets/logger"
	"github.com/hugolhafner/go-offsets/otel"
)

// SessionOpener opens an authenticated session. provider is nil when SASL is
// disabled.
type SessionOpener func(ctx context.Context, provider auth.TokenProvider) (kafka.Session, error)

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	Region  string

	FetchTimeout time.Duration
	Concurrency  int

	// TLS and SASL/OAUTHBEARER are both required by MSK IAM listeners
	TLS  bool
	SASL bool

	// Location timestamps are printed in
	Location *time.Location

	Logger        logger.Logger
	Telemetry     *otel.Telemetry
	ErrorHandler  errorhandler.Handler
	TokenProvider auth.TokenProvider
	Opener        SessionOpener
}

type ConfigOption func(*Config)

func WithBrokers(brokers ...string) ConfigOption {
	return func(c *Config) {
		c.Brokers = brokers
	}
}

func WithTopic(topic string) ConfigOption {
	return func(c *Config) {
		c.Topic = topic
	}
}

func WithGroupID(id string) ConfigOption {
	return func(c *Config) {
		c.GroupID = id
	}
}

func WithRegion(region string) ConfigOption {
	return func(c *Config) {
		c.Region = region
	}
}

func WithFetchTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.FetchTimeout = d
	}
}

func WithConcurrency(n int) ConfigOption {
	return func(c *Config) {
		c.Concurrency = n
	}
}

func WithTLS(enabled bool) ConfigOption {
	return func(c *Config) {
		c.TLS = enabled
	}
}

func WithSASL(enabled bool) ConfigOption {
	return func(c *Config) {
		c.SASL = enabled
	}
}

func WithLocation(loc *time.Location) ConfigOption {
	return func(c *Config) {
		c.Location = loc
	}
}

func WithLogger(logger logger.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithTelemetry(t *otel.Telemetry) ConfigOption {
	return func(c *Config) {
		c.Telemetry = t
	}
}

func WithErrorHandler(h errorhandler.Handler) ConfigOption {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithTokenProvider replaces the MSK IAM provider built from the region
func WithTokenProvider(p auth.TokenProvider) ConfigOption {
	return func(c *Config) {
		c.TokenProvider = p
	}
}

// WithSessionOpener replaces the franz-go session, mostly for tests
func WithSessionOpener(o SessionOpener) ConfigOption {
	return func(c *Config) {
		c.Opener = o
	}
}

func defaultConfig() Config {
	return Config{
		FetchTimeout: inspector.DefaultFetchTimeout,
		Concurrency:  1,
		TLS:          true,
		SASL:         true,
		Location:     time.Local,
		Logger:       logger.NewNoopLogger(),
		Telemetry:    otel.Noop(),
	}
}

// KgoOpener opens a franz-go backed session for cfg
func KgoOpener(cfg Config) SessionOpener {
	return func(ctx context.Context, provider auth.TokenProvider) (kafka.Session, error) {
		opts := []kafka.Option{
			kafka.WithBootstrapServers(cfg.Brokers),
			kafka.WithGroupID(cfg.GroupID),
			kafka.WithLogger(cfg.Logger),
		}
		if cfg.TLS {
			opts = append(opts, kafka.WithTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
		}
		if provider != nil {
			opts = append(opts, kafka.WithSASL(auth.OauthMechanism(provider)))
		}

		s, err := kafka.Open(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
