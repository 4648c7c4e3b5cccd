package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hugolhafner/go-offsets/logger"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/pkg/sasl"
)

var _ Session = (*KgoSession)(nil)

type SessionConfig struct {
	BootstrapServers []string
	GroupID          string
	ClientID         string
	DialTimeout      time.Duration
	TLS              *tls.Config
	SASL             sasl.Mechanism

	Logger logger.Logger
}

func defaultConfig() SessionConfig {
	return SessionConfig{
		BootstrapServers: []string{"localhost:9092"},
		GroupID:          "latest-offsets",
		DialTimeout:      10 * time.Second,
		Logger:           logger.NewNoopLogger(),
	}
}

type Option func(*SessionConfig)

func WithBootstrapServers(servers []string) Option {
	return func(cfg *SessionConfig) {
		cfg.BootstrapServers = servers
	}
}

// WithGroupID sets the consumer group name. No group is joined and nothing is
// committed; the name only identifies the client to the brokers.
func WithGroupID(id string) Option {
	return func(cfg *SessionConfig) {
		cfg.GroupID = id
	}
}

func WithClientID(id string) Option {
	return func(cfg *SessionConfig) {
		cfg.ClientID = id
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(cfg *SessionConfig) {
		if d > 0 {
			cfg.DialTimeout = d
		}
	}
}

func WithTLS(c *tls.Config) Option {
	return func(cfg *SessionConfig) {
		cfg.TLS = c
	}
}

// WithSASL sets the mechanism used to authenticate every broker connection.
// The mechanism is invoked whenever a connection is (re)authenticated, so
// credential callbacks are asked for a fresh token each time.
func WithSASL(m sasl.Mechanism) Option {
	return func(cfg *SessionConfig) {
		cfg.SASL = m
	}
}

func WithLogger(l logger.Logger) Option {
	return func(cfg *SessionConfig) {
		cfg.Logger = l.
			With("client", "kgo")
	}
}

type KgoSession struct {
	client *kgo.Client
	adm    *kadm.Client

	// shared by the session client and every read cursor
	baseOpts []kgo.Opt

	logger logger.Logger
}

// Open connects to the cluster and verifies that at least one broker accepts
// the configured credentials. Failures are returned as *ConnectionError.
func Open(ctx context.Context, opts ...Option) (*KgoSession, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ClientID == "" {
		cfg.ClientID = defaultClientID(cfg.GroupID)
	}

	baseOpts := []kgo.Opt{
		kgo.SeedBrokers(cfg.BootstrapServers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DialTimeout(cfg.DialTimeout),
		kgo.WithLogger(newKgoLogger(cfg.Logger)),
	}
	if cfg.TLS != nil {
		baseOpts = append(baseOpts, kgo.DialTLSConfig(cfg.TLS))
	}
	if cfg.SASL != nil {
		baseOpts = append(baseOpts, kgo.SASL(cfg.SASL))
	}

	client, err := kgo.NewClient(baseOpts...)
	if err != nil {
		return nil, NewConnectionError(fmt.Errorf("create kgo client: %w", err))
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, NewConnectionError(fmt.Errorf("connect to %v: %w", cfg.BootstrapServers, err))
	}

	cfg.Logger.Debug("Session opened", "brokers", cfg.BootstrapServers, "client_id", cfg.ClientID)

	return &KgoSession{
		client:   client,
		adm:      kadm.NewClient(client),
		baseOpts: baseOpts,
		logger:   cfg.Logger,
	}, nil
}

func defaultClientID(group string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return group
	}
	return group + "." + host
}

func (k *KgoSession) PartitionsOf(ctx context.Context, topic string) ([]int32, error) {
	details, err := k.adm.ListTopics(ctx, topic)
	if err != nil {
		return nil, NewConnectionError(fmt.Errorf("list topic %q: %w", topic, err))
	}

	td, ok := details[topic]
	if !ok || errors.Is(td.Err, kerr.UnknownTopicOrPartition) {
		return nil, nil
	}
	if td.Err != nil {
		return nil, fmt.Errorf("describe topic %q: %w", topic, td.Err)
	}

	if len(td.Partitions) == 0 {
		return nil, nil
	}

	partitions := make([]int32, 0, len(td.Partitions))
	for p := range td.Partitions {
		partitions = append(partitions, p)
	}
	slices.Sort(partitions)

	return partitions, nil
}

// LatestOffsets lists the end offset of exactly the requested partitions.
// The request is split by partition leader; a failed shard or a partition
// error code only marks the partitions it covers. A ConnectionError is
// returned when no shard reached a broker at all.
func (k *KgoSession) LatestOffsets(ctx context.Context, partitions []TopicPartition) (
	map[TopicPartition]ListedOffset, error,
) {
	if len(partitions) == 0 {
		return map[TopicPartition]ListedOffset{}, nil
	}

	shards := k.client.RequestSharded(ctx, newListEndOffsetsRequest(partitions))
	return collectListedOffsets(partitions, shards)
}

func newListEndOffsetsRequest(partitions []TopicPartition) *kmsg.ListOffsetsRequest {
	req := kmsg.NewPtrListOffsetsRequest()
	req.ReplicaID = -1

	index := make(map[string]int)
	for _, tp := range partitions {
		idx, ok := index[tp.Topic]
		if !ok {
			rt := kmsg.NewListOffsetsRequestTopic()
			rt.Topic = tp.Topic
			req.Topics = append(req.Topics, rt)
			idx = len(req.Topics) - 1
			index[tp.Topic] = idx
		}

		rp := kmsg.NewListOffsetsRequestTopicPartition()
		rp.Partition = tp.Partition
		rp.CurrentLeaderEpoch = -1
		rp.Timestamp = -1 // latest
		req.Topics[idx].Partitions = append(req.Topics[idx].Partitions, rp)
	}

	return req
}

func collectListedOffsets(partitions []TopicPartition, shards []kgo.ResponseShard) (
	map[TopicPartition]ListedOffset, error,
) {
	out := make(map[TopicPartition]ListedOffset, len(partitions))

	var (
		transportErrs []error
		reached       bool
	)
	for _, shard := range shards {
		if shard.Err != nil {
			var ke *kerr.Error
			if !errors.As(shard.Err, &ke) {
				transportErrs = append(transportErrs, shard.Err)
			} else {
				reached = true
			}

			if req, ok := shard.Req.(*kmsg.ListOffsetsRequest); ok {
				for _, rt := range req.Topics {
					for _, rp := range rt.Partitions {
						tp := TopicPartition{Topic: rt.Topic, Partition: rp.Partition}
						out[tp] = ListedOffset{Offset: -1, LeaderEpoch: -1, Err: shard.Err}
					}
				}
			}
			continue
		}

		reached = true
		resp, ok := shard.Resp.(*kmsg.ListOffsetsResponse)
		if !ok {
			continue
		}
		for _, rt := range resp.Topics {
			for _, rp := range rt.Partitions {
				tp := TopicPartition{Topic: rt.Topic, Partition: rp.Partition}
				if err := kerr.ErrorForCode(rp.ErrorCode); err != nil {
					out[tp] = ListedOffset{Offset: -1, LeaderEpoch: -1, Err: err}
					continue
				}
				out[tp] = ListedOffset{Offset: rp.Offset, LeaderEpoch: rp.LeaderEpoch}
			}
		}
	}

	if !reached && len(transportErrs) > 0 {
		return nil, NewConnectionError(fmt.Errorf("list end offsets: %w", errors.Join(transportErrs...)))
	}

	for _, tp := range partitions {
		if _, ok := out[tp]; !ok {
			out[tp] = ListedOffset{Offset: -1, LeaderEpoch: -1, Err: fmt.Errorf("no end offset returned for %s", tp)}
		}
	}

	return out, nil
}

func (k *KgoSession) FetchAt(ctx context.Context, tp TopicPartition, offset int64, timeout time.Duration) (
	[]ConsumerRecord, error,
) {
	// A cursor that may not reset: a truncated offset must surface as an
	// error instead of silently jumping to another record.
	cursorOpts := append(
		slices.Clone(k.baseOpts),
		kgo.ConsumePartitions(
			map[string]map[int32]kgo.Offset{
				tp.Topic: {tp.Partition: kgo.NewOffset().At(offset)},
			},
		),
		kgo.ConsumeResetOffset(kgo.NoResetOffset()),
	)

	cursor, err := kgo.NewClient(cursorOpts...)
	if err != nil {
		return nil, fmt.Errorf("open read cursor for %s: %w", tp, err)
	}
	defer cursor.Close()

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		fetches := cursor.PollRecords(pollCtx, 1)
		for _, fe := range fetches.Errors() {
			switch {
			case errors.Is(fe.Err, context.DeadlineExceeded):
				return nil, fmt.Errorf("%s at offset %d after %s: %w", tp, offset, timeout, ErrFetchTimeout)
			case errors.Is(fe.Err, context.Canceled):
				return nil, ctx.Err()
			case errors.Is(fe.Err, kerr.OffsetOutOfRange):
				return nil, fmt.Errorf("%s at offset %d: %w", tp, offset, ErrOffsetTruncated)
			default:
				return nil, fmt.Errorf("fetch %s at offset %d: %w", tp, offset, fe.Err)
			}
		}

		var records []ConsumerRecord
		fetches.EachRecord(
			func(r *kgo.Record) {
				if r.Topic == tp.Topic && r.Partition == tp.Partition && r.Offset >= offset {
					records = append(records, convertRecord(r))
				}
			},
		)

		if len(records) > 0 {
			return records, nil
		}

		if pollCtx.Err() != nil {
			return nil, fmt.Errorf("%s at offset %d after %s: %w", tp, offset, timeout, ErrFetchTimeout)
		}
	}
}

func (k *KgoSession) Close() {
	k.client.Close()
	k.logger.Debug("Session closed")
}

func convertRecord(r *kgo.Record) ConsumerRecord {
	return ConsumerRecord{
		Topic:       r.Topic,
		Partition:   r.Partition,
		Offset:      r.Offset,
		Key:         r.Key,
		Value:       r.Value,
		Headers:     convertFromKgoHeaders(r.Headers),
		Timestamp:   r.Timestamp,
		LeaderEpoch: r.LeaderEpoch,
	}
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}
	return converted
}
