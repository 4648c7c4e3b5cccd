package offsets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hugolhafner/go-offsets/auth"
	"github.com/hugolhafner/go-offsets/inspector"
	"github.com/hugolhafner/go-offsets/kafka"
	"github.com/hugolhafner/go-offsets/logger"
	"github.com/hugolhafner/go-offsets/report"
)

const Version = "v0.1.0" // x-release-please-version

// Application runs a single inspection of one topic and prints the results
type Application struct {
	config Config
	logger logger.Logger

	mu      sync.Mutex
	running bool
}

func NewApplication(opts ...ConfigOption) (*Application, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return NewApplicationWithConfig(config)
}

func NewApplicationWithConfig(config Config) (*Application, error) {
	if err := validate(config); err != nil {
		return nil, err
	}

	if config.Logger == nil {
		config.Logger = logger.NewNoopLogger()
	}
	if config.Opener == nil {
		config.Opener = KgoOpener(config)
	}

	return &Application{
		config: config,
		logger: config.Logger.With("topic", config.Topic),
	}, nil
}

func validate(c Config) error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("no brokers configured"))
	}
	if c.Topic == "" {
		errs = append(errs, errors.New("topic is required"))
	}
	if c.GroupID == "" {
		errs = append(errs, errors.New("consumer group id is required"))
	}
	if c.SASL && c.TokenProvider == nil && c.Region == "" {
		errs = append(errs, errors.New("region is required to mint IAM tokens"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Run opens a session, inspects the topic and writes one line per result to
// out. The session is closed on every path. Lines printed before an error
// stand.
func (a *Application) Run(ctx context.Context, out io.Writer) error {
	if err := a.startRunning(); err != nil {
		return err
	}
	defer a.stopRunning()

	provider := a.tokenProvider()

	a.logger.Info("Opening session", "brokers", a.config.Brokers, "group", a.config.GroupID, "sasl", a.config.SASL)

	session, err := a.config.Opener(ctx, provider)
	if err != nil {
		if _, ok := kafka.AsConnectionError(err); !ok {
			err = kafka.NewConnectionError(err)
		}
		return err
	}
	defer session.Close()

	ins := inspector.New(
		session,
		inspector.WithFetchTimeout(a.config.FetchTimeout),
		inspector.WithConcurrency(a.config.Concurrency),
		inspector.WithErrorHandler(a.config.ErrorHandler),
		inspector.WithLogger(a.config.Logger),
		inspector.WithTelemetry(a.config.Telemetry),
	)
	printer := report.NewPrinter(out, report.WithLocation(a.config.Location))

	counts := make(map[inspector.Status]int)
	for r, err := range ins.Inspect(ctx, a.config.Topic) {
		if err != nil {
			return err
		}
		if err := printer.Print(r); err != nil {
			return err
		}
		counts[r.Status]++
	}

	a.logger.Info(
		"Inspection finished",
		"latest", counts[inspector.StatusLatest],
		"empty", counts[inspector.StatusEmptyPartition],
		"gaps", counts[inspector.StatusNoRecordAtLatest],
		"failed", counts[inspector.StatusFailed],
	)

	return nil
}

func (a *Application) tokenProvider() auth.TokenProvider {
	if !a.config.SASL {
		return nil
	}
	if a.config.TokenProvider != nil {
		return a.config.TokenProvider
	}

	return auth.NewMSKTokenProvider(
		a.config.Region,
		auth.WithLogger(a.config.Logger),
		auth.WithTelemetry(a.config.Telemetry),
	)
}

func (a *Application) startRunning() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}
	a.running = true
	return nil
}

func (a *Application) stopRunning() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.running = false
}
