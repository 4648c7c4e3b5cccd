package errorhandler

import (
	"github.com/hugolhafner/go-offsets/kafka"
)

// ErrorContext describes a per-partition failure so a handler can decide
// whether to retry, skip the partition or abort the run.
type ErrorContext struct {
	// Partition is the partition being inspected.
	Partition kafka.TopicPartition

	// Offset is the offset involved, -1 when not yet known.
	Offset int64

	// Error is the error that occurred.
	Error error

	// Attempt is current attempt number, 1 indexed.
	Attempt int

	// Phase indicates which step of the inspection failed
	Phase ErrorPhase
}

func NewErrorContext(tp kafka.TopicPartition, err error) ErrorContext {
	return ErrorContext{
		Partition: tp,
		Offset:    -1,
		Error:     err,
		Attempt:   1,
	}
}

func (ec ErrorContext) WithError(err error) ErrorContext {
	ec.Error = err
	return ec
}

func (ec ErrorContext) WithAttempt(attempt int) ErrorContext {
	ec.Attempt = attempt
	return ec
}

func (ec ErrorContext) WithOffset(offset int64) ErrorContext {
	ec.Offset = offset
	return ec
}

func (ec ErrorContext) WithPhase(phase ErrorPhase) ErrorContext {
	ec.Phase = phase
	return ec
}

func (ec ErrorContext) IncrementAttempt() ErrorContext {
	ec.Attempt++
	return ec
}
