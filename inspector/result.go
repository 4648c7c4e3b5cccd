package inspector

import (
	"time"

	"github.com/hugolhafner/go-offsets/kafka"
)

// Status is the outcome of inspecting one partition
type Status int

const (
	StatusLatest           Status = iota // the record at the latest offset was read
	StatusEmptyPartition                 // nothing was ever written
	StatusNoRecordAtLatest               // records exist but the last one could not be read
	StatusTopicNotFound                  // topic absent or without partitions
	StatusFailed                         // per-partition error the run continued past
)

func (s Status) String() string {
	switch s {
	case StatusLatest:
		return "latest"
	case StatusEmptyPartition:
		return "empty_partition"
	case StatusNoRecordAtLatest:
		return "no_record_at_latest"
	case StatusTopicNotFound:
		return "topic_not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Gap says why the record at the latest offset could not be read
type Gap int

const (
	GapNone      Gap = iota
	GapTimeout       // nothing arrived within the fetch timeout
	GapEmpty         // the fetch completed without records
	GapTruncated     // retention removed the offset after it was listed
)

func (g Gap) String() string {
	switch g {
	case GapTimeout:
		return "timeout"
	case GapEmpty:
		return "empty"
	case GapTruncated:
		return "truncated"
	default:
		return "none"
	}
}

// Result is the immutable outcome for one partition, or for the topic when
// Status is StatusTopicNotFound.
type Result struct {
	Topic     string
	Partition int32
	Status    Status

	// LatestOffset is the listed end offset, -1 when it could not be listed
	LatestOffset int64

	// Offset and Timestamp of the record read, set for StatusLatest only
	Offset    int64
	Timestamp time.Time
	Record    *kafka.ConsumerRecord

	Gap Gap
	Err error
}

func (r Result) TopicPartition() kafka.TopicPartition {
	return kafka.TopicPartition{Topic: r.Topic, Partition: r.Partition}
}
