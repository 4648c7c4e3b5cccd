package mockkafka

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hugolhafner/go-offsets/auth"
	"github.com/hugolhafner/go-offsets/kafka"
)

var _ kafka.Session = (*Session)(nil)

// FetchCall records the arguments of one FetchAt call.
type FetchCall struct {
	TopicPartition kafka.TopicPartition
	Offset         int64
	Timeout        time.Duration
}

type partitionLog struct {
	start   int64
	end     int64
	records map[int64]kafka.ConsumerRecord
}

// Session is an in-memory kafka.Session. Each partition is a log with a start
// offset (moved by Truncate) and an end offset (moved by Append / SetEndOffset).
type Session struct {
	mu sync.Mutex

	topics map[string][]int32
	logs   map[kafka.TopicPartition]*partitionLog

	offsetErrs map[kafka.TopicPartition][]error
	fetchErrs  map[kafka.TopicPartition][]error

	partitionsErr error
	offsetsErr    error
	fetchDelay    time.Duration
	emptyFetches  bool
	beforeFetch   func(s *Session, tp kafka.TopicPartition, offset int64)

	fetchCalls         []FetchCall
	latestOffsetsCalls int
	closed             bool
	closeCalls         int
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		topics:     make(map[string][]int32),
		logs:       make(map[kafka.TopicPartition]*partitionLog),
		offsetErrs: make(map[kafka.TopicPartition][]error),
		fetchErrs:  make(map[kafka.TopicPartition][]error),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AddTopic creates topic with partitions 0..partitions-1, all empty.
func (s *Session) AddTopic(topic string, partitions int) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	for p := int32(0); p < int32(partitions); p++ {
		s.ensurePartition(kafka.TopicPartition{Topic: topic, Partition: p})
	}
	return s
}

func (s *Session) ensurePartition(tp kafka.TopicPartition) *partitionLog {
	if l, ok := s.logs[tp]; ok {
		return l
	}

	l := &partitionLog{records: make(map[int64]kafka.ConsumerRecord)}
	s.logs[tp] = l
	if !slices.Contains(s.topics[tp.Topic], tp.Partition) {
		s.topics[tp.Topic] = append(s.topics[tp.Topic], tp.Partition)
	}
	return l
}

// Append writes records at the end of a partition, creating it when needed.
// Topic, partition and offset are overwritten.
func (s *Session) Append(topic string, partition int32, records ...kafka.ConsumerRecord) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	l := s.ensurePartition(tp)
	for _, r := range records {
		r = r.Copy()
		r.Topic = topic
		r.Partition = partition
		r.Offset = l.end
		l.records[l.end] = r
		l.end++
	}
	return s
}

// SetEndOffset moves the end offset without writing records, modelling
// positions taken by transaction markers or compacted away.
func (s *Session) SetEndOffset(topic string, partition int32, end int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePartition(kafka.TopicPartition{Topic: topic, Partition: partition}).end = end
	return s
}

// Truncate drops every record below before, as log retention would.
func (s *Session) Truncate(topic string, partition int32, before int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.ensurePartition(kafka.TopicPartition{Topic: topic, Partition: partition})
	for off := range l.records {
		if off < before {
			delete(l.records, off)
		}
	}
	if before > l.start {
		l.start = before
	}
}

// FailLatestOffsets makes the next len(errs) LatestOffsets calls for the
// partition report errs in order through ListedOffset.Err.
func (s *Session) FailLatestOffsets(topic string, partition int32, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	s.offsetErrs[tp] = append(s.offsetErrs[tp], errs...)
}

// FailFetch makes the next len(errs) FetchAt calls for the partition return errs in order.
func (s *Session) FailFetch(topic string, partition int32, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tp := kafka.TopicPartition{Topic: topic, Partition: partition}
	s.fetchErrs[tp] = append(s.fetchErrs[tp], errs...)
}

func (s *Session) PartitionsOf(ctx context.Context, topic string) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.partitionsErr != nil {
		return nil, s.partitionsErr
	}

	partitions, ok := s.topics[topic]
	if !ok || len(partitions) == 0 {
		return nil, nil
	}

	out := slices.Clone(partitions)
	slices.Sort(out)
	return out, nil
}

func (s *Session) LatestOffsets(ctx context.Context, partitions []kafka.TopicPartition) (
	map[kafka.TopicPartition]kafka.ListedOffset, error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latestOffsetsCalls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.offsetsErr != nil {
		return nil, s.offsetsErr
	}

	out := make(map[kafka.TopicPartition]kafka.ListedOffset, len(partitions))
	for _, tp := range partitions {
		if errs := s.offsetErrs[tp]; len(errs) > 0 {
			out[tp] = kafka.ListedOffset{Err: errs[0]}
			s.offsetErrs[tp] = errs[1:]
			continue
		}

		l, ok := s.logs[tp]
		if !ok {
			out[tp] = kafka.ListedOffset{Err: fmt.Errorf("unknown partition %s", tp)}
			continue
		}
		out[tp] = kafka.ListedOffset{Offset: l.end}
	}

	return out, nil
}

func (s *Session) FetchAt(ctx context.Context, tp kafka.TopicPartition, offset int64, timeout time.Duration) (
	[]kafka.ConsumerRecord, error,
) {
	s.mu.Lock()
	s.fetchCalls = append(s.fetchCalls, FetchCall{TopicPartition: tp, Offset: offset, Timeout: timeout})
	hook := s.beforeFetch
	delay := s.fetchDelay
	s.mu.Unlock()

	if hook != nil {
		hook(s, tp, offset)
	}

	if delay > 0 {
		wait := min(delay, timeout)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if delay >= timeout {
			return nil, fmt.Errorf("%s at offset %d after %s: %w", tp, offset, timeout, kafka.ErrFetchTimeout)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if errs := s.fetchErrs[tp]; len(errs) > 0 {
		s.fetchErrs[tp] = errs[1:]
		return nil, errs[0]
	}

	l, ok := s.logs[tp]
	if !ok {
		return nil, fmt.Errorf("fetch %s: unknown partition", tp)
	}
	if offset < l.start || offset > l.end {
		return nil, fmt.Errorf("%s at offset %d: %w", tp, offset, kafka.ErrOffsetTruncated)
	}

	for off := offset; off < l.end; off++ {
		if r, ok := l.records[off]; ok {
			return []kafka.ConsumerRecord{r.Copy()}, nil
		}
	}

	if s.emptyFetches {
		return nil, nil
	}
	return nil, fmt.Errorf("%s at offset %d after %s: %w", tp, offset, timeout, kafka.ErrFetchTimeout)
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.closeCalls++
}

// FetchCalls returns every FetchAt call made so far.
func (s *Session) FetchCalls() []FetchCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.fetchCalls)
}

// LatestOffsetsCalls returns how many times LatestOffsets was called.
func (s *Session) LatestOffsetsCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latestOffsetsCalls
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeCalls
}

// Opener returns an open function handing out s once the provider has minted
// a token, the way a SASL handshake would. A mint failure becomes a
// *kafka.ConnectionError and s is never returned. A nil provider skips auth.
func Opener(s *Session) func(ctx context.Context, provider auth.TokenProvider) (kafka.Session, error) {
	return func(ctx context.Context, provider auth.TokenProvider) (kafka.Session, error) {
		if provider != nil {
			if _, err := provider.Mint(ctx); err != nil {
				return nil, kafka.NewConnectionError(fmt.Errorf("sasl authentication: %w", err))
			}
		}
		return s, nil
	}
}
