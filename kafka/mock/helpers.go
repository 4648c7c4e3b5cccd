package mockkafka

import (
	"time"

	"github.com/hugolhafner/go-offsets/kafka"
)

// RecordBuilder provides a fluent interface for building ConsumerRecords.
type RecordBuilder struct {
	record kafka.ConsumerRecord
}

// Record creates a new RecordBuilder with the given key and value.
func Record(key, value string) *RecordBuilder {
	return &RecordBuilder{
		record: kafka.ConsumerRecord{
			Key:   []byte(key),
			Value: []byte(value),
		},
	}
}

// WithTimestamp sets the record's timestamp.
func (b *RecordBuilder) WithTimestamp(ts time.Time) *RecordBuilder {
	b.record.Timestamp = ts
	return b
}

// WithHeader adds a header to the record.
func (b *RecordBuilder) WithHeader(key string, value []byte) *RecordBuilder {
	b.record.Headers = append(b.record.Headers, kafka.Header{Key: key, Value: value})
	return b
}

// WithLeaderEpoch sets the leader epoch.
func (b *RecordBuilder) WithLeaderEpoch(epoch int32) *RecordBuilder {
	b.record.LeaderEpoch = epoch
	return b
}

// Build returns the constructed ConsumerRecord. Topic, partition and offset
// are assigned when the record is appended to a session.
func (b *RecordBuilder) Build() kafka.ConsumerRecord {
	return b.record
}

// TimedRecords creates one record per timestamp, keyed by position.
func TimedRecords(timestamps ...time.Time) []kafka.ConsumerRecord {
	records := make([]kafka.ConsumerRecord, len(timestamps))
	for i, ts := range timestamps {
		records[i] = kafka.ConsumerRecord{Value: []byte("v"), Timestamp: ts}
	}
	return records
}
