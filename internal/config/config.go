package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/basicflag"
	"github.com/knadh/koanf/v2"

	offsets "github.com/hugolhafner/go-offsets"
	"github.com/hugolhafner/go-offsets/inspector"
	"github.com/hugolhafner/go-offsets/logger"
)

// ErrUsage marks command line errors. Nothing touches the network when it is returned.
var ErrUsage = errors.New("usage error")

const (
	SASLOAuthBearer = "oauthbearer"
	SASLNone        = "none"
)

// Config is the parsed command line. It is not modified after Parse.
type Config struct {
	BrokerList    string        `koanf:"broker-list"`
	Topic         string        `koanf:"topic-name"`
	GroupID       string        `koanf:"consumer-group-id"`
	Region        string        `koanf:"aws-region"`
	FetchTimeout  time.Duration `koanf:"fetch-timeout"`
	LogLevel      string        `koanf:"log-level"`
	Concurrency   int           `koanf:"concurrency"`
	TLS           bool          `koanf:"tls"`
	SASLMechanism string        `koanf:"sasl-mechanism"`
	UTC           bool          `koanf:"utc"`
}

var required = []string{"broker-list", "topic-name", "consumer-group-id", "aws-region"}

// NewFlagSet declares every flag the tool accepts.
func NewFlagSet(name string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	fs.String("broker-list", "", "comma separated host:port bootstrap brokers (required)")
	fs.String("topic-name", "", "topic to inspect (required)")
	fs.String("consumer-group-id", "", "consumer group id used to identify the client (required)")
	fs.String("aws-region", "", "AWS region of the MSK cluster (required)")
	fs.Duration("fetch-timeout", inspector.DefaultFetchTimeout, "how long to wait for the record at the latest offset")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.Int("concurrency", 1, "partitions inspected at once")
	fs.Bool("tls", true, "connect to brokers over TLS")
	fs.String("sasl-mechanism", SASLOAuthBearer, "oauthbearer (MSK IAM) or none")
	fs.Bool("utc", false, "print timestamps in UTC instead of local time")

	return fs
}

// Parse reads args into a Config. flag.ErrHelp is returned untouched when
// help was requested; every other failure wraps ErrUsage.
func Parse(name string, args []string, output io.Writer) (Config, error) {
	fs := NewFlagSet(name, output)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("%w: unexpected arguments %v", ErrUsage, fs.Args())
	}

	k := koanf.New(".")
	if err := k.Load(basicflag.Provider(fs, "."), nil); err != nil {
		return Config{}, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports every problem at once, missing required flags first.
func (c Config) Validate() error {
	var missing []string
	values := map[string]string{
		"broker-list":       c.BrokerList,
		"topic-name":        c.Topic,
		"consumer-group-id": c.GroupID,
		"aws-region":        c.Region,
	}
	for _, name := range required {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, "--"+name)
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required flags: %s", strings.Join(missing, ", ")))
	}

	if c.BrokerList != "" {
		for _, b := range c.Brokers() {
			if _, _, err := net.SplitHostPort(b); err != nil {
				errs = append(errs, fmt.Errorf("broker %q: %w", b, err))
			}
		}
		if len(c.Brokers()) == 0 {
			errs = append(errs, errors.New("broker list has no entries"))
		}
	}

	switch c.SASLMechanism {
	case SASLOAuthBearer, SASLNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported sasl mechanism %q", c.SASLMechanism))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrUsage, errors.Join(errs...))
	}
	return nil
}

// Brokers splits the broker list, dropping blanks.
func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.BrokerList, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c Config) Level() logger.LogLevel {
	return logger.ParseLevel(c.LogLevel)
}

func (c Config) Location() *time.Location {
	if c.UTC {
		return time.UTC
	}
	return time.Local
}

// Options converts the command line into application options.
func (c Config) Options() []offsets.ConfigOption {
	return []offsets.ConfigOption{
		offsets.WithBrokers(c.Brokers()...),
		offsets.WithTopic(c.Topic),
		offsets.WithGroupID(c.GroupID),
		offsets.WithRegion(c.Region),
		offsets.WithFetchTimeout(c.FetchTimeout),
		offsets.WithConcurrency(c.Concurrency),
		offsets.WithTLS(c.TLS),
		offsets.WithSASL(c.SASLMechanism == SASLOAuthBearer),
		offsets.WithLocation(c.Location()),
	}
}
