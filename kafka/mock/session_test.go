//go:build unit

package mockkafka_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hugolhafner/go-offsets/auth"
	"github.com/hugolhafner/go-offsets/kafka"
	mockkafka "github.com/hugolhafner/go-offsets/kafka/mock"
	"github.com/stretchr/testify/require"
)

func TestMockSession_ImplementsInterface(t *testing.T) {
	var _ kafka.Session = (*mockkafka.Session)(nil)
}

func TestMockSession_PartitionsSorted(t *testing.T) {
	s := mockkafka.NewSession()
	s.Append("orders", 2, mockkafka.Record("k", "v").Build())
	s.Append("orders", 0, mockkafka.Record("k", "v").Build())

	partitions, err := s.PartitionsOf(context.Background(), "orders")
	require.NoError(t, err)
	require.Equal(t, []int32{0, 2}, partitions)

	partitions, err = s.PartitionsOf(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, partitions)
}

func TestMockSession_LatestOffsets(t *testing.T) {
	s := mockkafka.NewSession().AddTopic("orders", 2)
	s.Append("orders", 0, mockkafka.TimedRecords(time.Unix(1, 0), time.Unix(2, 0))...)

	tp0 := kafka.TopicPartition{Topic: "orders", Partition: 0}
	tp1 := kafka.TopicPartition{Topic: "orders", Partition: 1}

	offsets, err := s.LatestOffsets(context.Background(), []kafka.TopicPartition{tp0, tp1})
	require.NoError(t, err)
	require.EqualValues(t, 2, offsets[tp0].Offset)
	require.EqualValues(t, 0, offsets[tp1].Offset)
	require.Equal(t, 1, s.LatestOffsetsCalls())
}

func TestMockSession_FailLatestOffsetsIsConsumedInOrder(t *testing.T) {
	s := mockkafka.NewSession().AddTopic("orders", 1)
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}
	boom := errors.New("boom")
	s.FailLatestOffsets("orders", 0, boom)

	first, err := s.LatestOffsets(context.Background(), []kafka.TopicPartition{tp})
	require.NoError(t, err)
	require.ErrorIs(t, first[tp].Err, boom)

	second, err := s.LatestOffsets(context.Background(), []kafka.TopicPartition{tp})
	require.NoError(t, err)
	require.NoError(t, second[tp].Err)
}

func TestMockSession_FetchAt(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := mockkafka.NewSession()
	s.Append("orders", 0, mockkafka.TimedRecords(ts, ts.Add(time.Second))...)
	tp := kafka.TopicPartition{Topic: "orders", Partition: 0}

	records, err := s.FetchAt(context.Background(), tp, 1, time.Second)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.EqualValues(t, 1, records[0].Offset)
	require.True(t, records[0].Timestamp.Equal(ts.Add(time.Second)))

	require.Equal(t, []mockkafka.FetchCall{{TopicPartition: tp, Offset: 1, Timeout: time.Second}}, s.FetchCalls())
}

func TestMockSession_FetchAtTruncated(t *testing.T) {
	s := mockkafka.NewSession()
	s.Append("orders", 0, mockkafka.TimedRecords(time.Unix(1, 0), time.Unix(2, 0))...)
	s.Truncate("orders", 0, 2)

	_, err := s.FetchAt(context.Background(), kafka.TopicPartition{Topic: "orders"}, 1, time.Second)
	require.ErrorIs(t, err, kafka.ErrOffsetTruncated)
}

func TestMockSession_FetchAtMissingRecordTimesOut(t *testing.T) {
	s := mockkafka.NewSession().SetEndOffset("orders", 0, 3)

	_, err := s.FetchAt(context.Background(), kafka.TopicPartition{Topic: "orders"}, 2, time.Second)
	require.ErrorIs(t, err, kafka.ErrFetchTimeout)
}

func TestMockSession_FetchDelayBeyondTimeout(t *testing.T) {
	s := mockkafka.NewSession(mockkafka.WithFetchDelay(time.Hour))
	s.Append("orders", 0, mockkafka.Record("k", "v").Build())

	_, err := s.FetchAt(context.Background(), kafka.TopicPartition{Topic: "orders"}, 0, 5*time.Millisecond)
	require.ErrorIs(t, err, kafka.ErrFetchTimeout)
}

func TestMockSession_EmptyFetches(t *testing.T) {
	s := mockkafka.NewSession(mockkafka.WithEmptyFetches()).SetEndOffset("orders", 0, 1)

	records, err := s.FetchAt(context.Background(), kafka.TopicPartition{Topic: "orders"}, 0, time.Second)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestMockSession_Close(t *testing.T) {
	s := mockkafka.NewSession()
	require.False(t, s.Closed())
	s.Close()
	require.True(t, s.Closed())
	require.Equal(t, 1, s.CloseCalls())
}

func TestOpener(t *testing.T) {
	s := mockkafka.NewSession()
	open := mockkafka.Opener(s)

	got, err := open(context.Background(), auth.StaticToken("t"))
	require.NoError(t, err)
	require.Same(t, s, got)

	failing := auth.TokenProviderFunc(func(context.Context) (auth.Token, error) {
		return auth.Token{}, auth.NewAuthError("eu-west-1", errors.New("denied"))
	})
	got, err = open(context.Background(), failing)
	require.Nil(t, got)
	_, ok := kafka.AsConnectionError(err)
	require.True(t, ok)
	require.ErrorIs(t, err, auth.ErrNoToken)
}
