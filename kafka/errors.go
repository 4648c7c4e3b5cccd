package kafka

import (
	"errors"

	"github.com/twmb/franz-go/pkg/kerr"
)

var (
	// ErrFetchTimeout is returned by FetchAt when nothing arrived in time
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrOffsetTruncated is returned by FetchAt when the requested offset is
	// no longer in the log, typically removed by retention after it was listed
	ErrOffsetTruncated = errors.New("offset no longer available")
)

// ConnectionError marks a cluster level failure: unreachable brokers,
// rejected credentials or a failed metadata round trip. It is fatal to a run.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return e.Cause.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func NewConnectionError(cause error) error {
	return &ConnectionError{Cause: cause}
}

func AsConnectionError(err error) (*ConnectionError, bool) {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsFetchGap reports whether err describes a record that could not be read at
// the latest offset for a benign reason.
func IsFetchGap(err error) bool {
	return errors.Is(err, ErrFetchTimeout) || errors.Is(err, ErrOffsetTruncated)
}

// IsRetriable reports whether the broker flagged err as safe to retry
func IsRetriable(err error) bool {
	return kerr.IsRetriable(err)
}
