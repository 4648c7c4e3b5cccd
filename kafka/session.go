package kafka

import (
	"context"
	"time"
)

// Session is an open, authenticated connection to a cluster scoped to one
// inspection run.
type Session interface {
	// PartitionsOf returns the partition indexes of topic in ascending order.
	// It returns nil, nil when the topic does not exist or has no partitions.
	PartitionsOf(ctx context.Context, topic string) ([]int32, error)

	// LatestOffsets returns the end offset for each requested partition.
	// Partition level failures are reported through ListedOffset.Err.
	LatestOffsets(ctx context.Context, partitions []TopicPartition) (map[TopicPartition]ListedOffset, error)

	// FetchAt positions a dedicated read cursor at offset and waits at most
	// timeout for records. Offsets are not assumed stable between calls.
	FetchAt(ctx context.Context, tp TopicPartition, offset int64, timeout time.Duration) ([]ConsumerRecord, error)

	Close()
}
