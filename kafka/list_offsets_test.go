//go:build unit

package kafka

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

func listOffsetsResponse(topic string, partitions map[int32]kmsg.ListOffsetsResponseTopicPartition) *kmsg.ListOffsetsResponse {
	resp := kmsg.NewPtrListOffsetsResponse()
	rt := kmsg.NewListOffsetsResponseTopic()
	rt.Topic = topic
	for p, rp := range partitions {
		rp.Partition = p
		rt.Partitions = append(rt.Partitions, rp)
	}
	resp.Topics = append(resp.Topics, rt)
	return resp
}

func offsetAt(offset int64) kmsg.ListOffsetsResponseTopicPartition {
	rp := kmsg.NewListOffsetsResponseTopicPartition()
	rp.Offset = offset
	rp.LeaderEpoch = 3
	return rp
}

func offsetErr(code int16) kmsg.ListOffsetsResponseTopicPartition {
	rp := kmsg.NewListOffsetsResponseTopicPartition()
	rp.ErrorCode = code
	rp.Offset = -1
	return rp
}

func TestNewListEndOffsetsRequest_OnlyRequestedPartitions(t *testing.T) {
	t.Parallel()

	req := newListEndOffsetsRequest(
		[]TopicPartition{
			{Topic: "orders", Partition: 3},
			{Topic: "payments", Partition: 0},
			{Topic: "orders", Partition: 7},
		},
	)

	require.EqualValues(t, -1, req.ReplicaID)
	require.Len(t, req.Topics, 2)

	require.Equal(t, "orders", req.Topics[0].Topic)
	require.Len(t, req.Topics[0].Partitions, 2)
	require.EqualValues(t, 3, req.Topics[0].Partitions[0].Partition)
	require.EqualValues(t, 7, req.Topics[0].Partitions[1].Partition)
	require.EqualValues(t, -1, req.Topics[0].Partitions[0].Timestamp)

	require.Equal(t, "payments", req.Topics[1].Topic)
	require.Len(t, req.Topics[1].Partitions, 1)
}

func TestCollectListedOffsets_PartitionErrorDoesNotHideSiblings(t *testing.T) {
	t.Parallel()

	p0 := TopicPartition{Topic: "orders", Partition: 0}
	p1 := TopicPartition{Topic: "orders", Partition: 1}
	req := newListEndOffsetsRequest([]TopicPartition{p0, p1})

	shards := []kgo.ResponseShard{
		{
			Req: req,
			Resp: listOffsetsResponse(
				"orders", map[int32]kmsg.ListOffsetsResponseTopicPartition{
					0: offsetAt(5),
					1: offsetErr(kerr.TopicAuthorizationFailed.Code),
				},
			),
		},
	}

	out, err := collectListedOffsets([]TopicPartition{p0, p1}, shards)
	require.NoError(t, err)

	require.NoError(t, out[p0].Err)
	require.EqualValues(t, 5, out[p0].Offset)
	require.EqualValues(t, 3, out[p0].LeaderEpoch)

	require.ErrorIs(t, out[p1].Err, kerr.TopicAuthorizationFailed)
	_, isConn := AsConnectionError(out[p1].Err)
	require.False(t, isConn)
}

func TestCollectListedOffsets_FailedShardMarksOnlyItsPartitions(t *testing.T) {
	t.Parallel()

	p0 := TopicPartition{Topic: "orders", Partition: 0}
	p1 := TopicPartition{Topic: "orders", Partition: 1}
	down := errors.New("dial tcp 10.0.0.2:9098: connection refused")

	shards := []kgo.ResponseShard{
		{
			Req:  newListEndOffsetsRequest([]TopicPartition{p0}),
			Resp: listOffsetsResponse("orders", map[int32]kmsg.ListOffsetsResponseTopicPartition{0: offsetAt(9)}),
		},
		{
			Req: newListEndOffsetsRequest([]TopicPartition{p1}),
			Err: down,
		},
	}

	out, err := collectListedOffsets([]TopicPartition{p0, p1}, shards)
	require.NoError(t, err)
	require.EqualValues(t, 9, out[p0].Offset)
	require.ErrorIs(t, out[p1].Err, down)
}

func TestCollectListedOffsets_NoBrokerReachedIsConnectionError(t *testing.T) {
	t.Parallel()

	p0 := TopicPartition{Topic: "orders", Partition: 0}
	shards := []kgo.ResponseShard{
		{Req: newListEndOffsetsRequest([]TopicPartition{p0}), Err: errors.New("i/o timeout")},
	}

	_, err := collectListedOffsets([]TopicPartition{p0}, shards)
	_, ok := AsConnectionError(err)
	require.True(t, ok)
	require.ErrorContains(t, err, "i/o timeout")
}

func TestCollectListedOffsets_BrokerErrorOnShardIsPerPartition(t *testing.T) {
	t.Parallel()

	p0 := TopicPartition{Topic: "orders", Partition: 0}
	shards := []kgo.ResponseShard{
		{Req: newListEndOffsetsRequest([]TopicPartition{p0}), Err: kerr.LeaderNotAvailable},
	}

	out, err := collectListedOffsets([]TopicPartition{p0}, shards)
	require.NoError(t, err)
	require.ErrorIs(t, out[p0].Err, kerr.LeaderNotAvailable)
	require.True(t, IsRetriable(out[p0].Err))
}

func TestCollectListedOffsets_MissingPartitionIsReported(t *testing.T) {
	t.Parallel()

	p0 := TopicPartition{Topic: "orders", Partition: 0}
	p1 := TopicPartition{Topic: "orders", Partition: 1}
	shards := []kgo.ResponseShard{
		{
			Req:  newListEndOffsetsRequest([]TopicPartition{p0, p1}),
			Resp: listOffsetsResponse("orders", map[int32]kmsg.ListOffsetsResponseTopicPartition{0: offsetAt(1)}),
		},
	}

	out, err := collectListedOffsets([]TopicPartition{p0, p1}, shards)
	require.NoError(t, err)
	require.NoError(t, out[p0].Err)
	require.ErrorContains(t, out[p1].Err, "no end offset returned for orders-1")
}
