package offsets

import (
	"errors"

	"github.com/hugolhafner/go-offsets/auth"
	"github.com/hugolhafner/go-offsets/kafka"
)

// Process exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var (
	ErrAlreadyRunning = errors.New("application is already running")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Category labels err for the operator: "Connection error", "Auth error" or
// "Error". A token that could not be minted at connect time is reported as a
// connection error, since that is where it stopped the run.
func Category(err error) string {
	if _, ok := kafka.AsConnectionError(err); ok {
		return "Connection error"
	}
	if _, ok := auth.AsAuthError(err); ok {
		return "Auth error"
	}
	return "Error"
}

// ExitCode maps the error returned by Run to a process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidConfig):
		return ExitUsage
	default:
		return ExitFailure
	}
}
