package mockkafka

import (
	"time"

	"github.com/hugolhafner/go-offsets/kafka"
)

// Option is a functional option for configuring a mock Session.
type Option func(*Session)

// WithFetchDelay adds an artificial delay to FetchAt calls, bounded by the
// fetch timeout.
func WithFetchDelay(d time.Duration) Option {
	return func(s *Session) {
		s.fetchDelay = d
	}
}

// WithEmptyFetches makes FetchAt return no records and no error when nothing
// is found, instead of reporting a timeout.
func WithEmptyFetches() Option {
	return func(s *Session) {
		s.emptyFetches = true
	}
}

// WithPartitionsError configures an error to be returned by all PartitionsOf calls.
func WithPartitionsError(err error) Option {
	return func(s *Session) {
		s.partitionsErr = err
	}
}

// WithLatestOffsetsError configures an error to be returned by all LatestOffsets calls.
func WithLatestOffsetsError(err error) Option {
	return func(s *Session) {
		s.offsetsErr = err
	}
}

// WithBeforeFetch registers a hook run before each FetchAt, outside the
// session lock. Handy for simulating retention racing an inspection.
func WithBeforeFetch(fn func(s *Session, tp kafka.TopicPartition, offset int64)) Option {
	return func(s *Session) {
		s.beforeFetch = fn
	}
}
