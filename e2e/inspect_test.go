//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	offsets "github.com/hugolhafner/go-offsets"
	"github.com/hugolhafner/go-offsets/inspector"
	"github.com/hugolhafner/go-offsets/kafka"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func openSession(t *testing.T, broker string) *kafka.KgoSession {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := kafka.Open(ctx, kafka.WithBootstrapServers([]string{broker}), kafka.WithGroupID("e2e"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

func TestInspect_LatestRecordPerPartition(t *testing.T) {
	broker := ensureContainer(t)
	topic := testTopicName(t, "latest")
	createTopic(t, broker, 3, topic)

	produceTimed(t, broker, topic, 0, base, base.Add(time.Second), base.Add(2*time.Second))
	produceTimed(t, broker, topic, 2, base.Add(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := inspector.Collect(inspector.New(openSession(t, broker)).Inspect(ctx, topic))
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, inspector.StatusLatest, results[0].Status)
	require.EqualValues(t, 2, results[0].Offset)
	require.True(t, results[0].Timestamp.Equal(base.Add(2*time.Second)))
	require.Equal(t, "value-2", string(results[0].Record.Value))

	require.Equal(t, inspector.StatusEmptyPartition, results[1].Status)

	require.Equal(t, inspector.StatusLatest, results[2].Status)
	require.EqualValues(t, 0, results[2].Offset)
	require.True(t, results[2].Timestamp.Equal(base.Add(time.Hour)))
}

func TestInspect_MissingTopic(t *testing.T) {
	broker := ensureContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := inspector.Collect(inspector.New(openSession(t, broker)).Inspect(ctx, testTopicName(t, "ghost")))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, inspector.StatusTopicNotFound, results[0].Status)
}

func TestInspect_TruncatedPartition(t *testing.T) {
	broker := ensureContainer(t)
	topic := testTopicName(t, "truncated")
	createTopic(t, broker, 1, topic)

	produceTimed(t, broker, topic, 0, base, base, base)
	truncate(t, broker, topic, 0, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	results, err := inspector.Collect(
		inspector.New(openSession(t, broker), inspector.WithFetchTimeout(2*time.Second)).Inspect(ctx, topic),
	)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, inspector.StatusNoRecordAtLatest, results[0].Status)
	require.EqualValues(t, 3, results[0].LatestOffset)
}

func TestInspect_Idempotent(t *testing.T) {
	broker := ensureContainer(t)
	topic := testTopicName(t, "idempotent")
	createTopic(t, broker, 2, topic)
	produceTimed(t, broker, topic, 1, base, base.Add(time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	i := inspector.New(openSession(t, broker), inspector.WithConcurrency(2))
	first, err := inspector.Collect(i.Inspect(ctx, topic))
	require.NoError(t, err)
	second, err := inspector.Collect(i.Inspect(ctx, topic))
	require.NoError(t, err)

	require.Len(t, first, 2)
	for idx := range first {
		require.Equal(t, first[idx].Status, second[idx].Status)
		require.Equal(t, first[idx].Offset, second[idx].Offset)
		require.True(t, first[idx].Timestamp.Equal(second[idx].Timestamp))
	}
}

func TestApplication_PrintsLines(t *testing.T) {
	broker := ensureContainer(t)
	topic := testTopicName(t, "app")
	createTopic(t, broker, 2, topic)
	produceTimed(t, broker, topic, 0, base, base, base, base, base.Add(time.Second))

	app, err := offsets.NewApplication(
		offsets.WithBrokers(broker),
		offsets.WithTopic(topic),
		offsets.WithGroupID("e2e"),
		offsets.WithTLS(false),
		offsets.WithSASL(false),
		offsets.WithLocation(time.UTC),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, app.Run(ctx, &out))
	require.Equal(
		t,
		"Partition: 0, Latest Offset: 4, Timestamp: 2026-05-04 10:30:01\n"+
			"Partition: 1, No messages found in the partition.\n",
		out.String(),
	)
}

func TestOpen_UnreachableBrokerIsConnectionError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := kafka.Open(
		ctx,
		kafka.WithBootstrapServers([]string{fmt.Sprintf("127.0.0.1:%d", 1)}),
		kafka.WithDialTimeout(time.Second),
	)
	_, ok := kafka.AsConnectionError(err)
	require.True(t, ok)
}
