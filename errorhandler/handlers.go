package errorhandler

import (
	"context"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-offsets/kafka"
	"github.com/hugolhafner/go-offsets/logger"
)

// Default is the handler used when none is configured: broker errors flagged
// as retriable get three attempts, anything else is reported and skipped
func Default(l logger.Logger) Handler {
	return RetryRetriable(3, backoff.NewFixed(500*time.Millisecond), LogAndContinue(l))
}

// LogAndContinue logs error and moves on to the next partition
func LogAndContinue(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error(
				"error inspecting partition, skipping",
				"error", ec.Error,
				"topic", ec.Partition.Topic,
				"partition", ec.Partition.Partition,
				"offset", ec.Offset,
				"attempt", ec.Attempt,
				"phase", ec.Phase.String(),
			)
			return ActionContinue{}
		},
	)
}

// LogAndFail logs error and aborts the run
func LogAndFail(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error(
				"error inspecting partition, failing",
				"error", ec.Error,
				"topic", ec.Partition.Topic,
				"partition", ec.Partition.Partition,
				"offset", ec.Offset,
				"attempt", ec.Attempt,
				"phase", ec.Phase.String(),
			)
			return ActionFail{}
		},
	)
}

// SilentFail aborts the run without logging
func SilentFail() Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			return ActionFail{}
		},
	)
}

// WithMaxAttempts wraps a handler with retry logic
// When the max attempts is reached, the fallback handler is called
func WithMaxAttempts(maxAttempts int, b backoff.Backoff, fallback Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			if ec.Attempt >= maxAttempts {
				return fallback.Handle(ctx, ec)
			}

			select {
			case <-ctx.Done():
				return ActionFail{}
			case <-time.After(b.Next(uint(ec.Attempt))):
			}

			return ActionRetry{}
		},
	)
}

// RetryRetriable retries only errors the broker marked as retriable.
// Everything else goes straight to fallback.
func RetryRetriable(maxAttempts int, b backoff.Backoff, fallback Handler) Handler {
	retry := WithMaxAttempts(maxAttempts, b, fallback)
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			if kafka.IsRetriable(ec.Error) {
				return retry.Handle(ctx, ec)
			}
			return fallback.Handle(ctx, ec)
		},
	)
}

// ActionLogger logs the action decided by the next handler
func ActionLogger(l logger.Logger, level logger.LogLevel, next Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			action := next.Handle(ctx, ec)

			l.Log(
				level,
				"Error handler decision",
				"action", action.Type().String(),
				"error", ec.Error,
				"topic", ec.Partition.Topic,
				"partition", ec.Partition.Partition,
				"offset", ec.Offset,
				"attempt", ec.Attempt,
				"phase", ec.Phase.String(),
			)
			return action
		},
	)
}
