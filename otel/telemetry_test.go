//go:build unit

package otel

import (
	"context"
	"testing"

	"github.com/hugolhafner/go-offsets/kafka"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTelemetry_WithProviders(t *testing.T) {
	t.Parallel()
	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()
	defer tp.Shutdown(context.Background())
	defer mp.Shutdown(context.Background())

	tel, err := NewTelemetry(tp, mp, nil)
	require.NoError(t, err)
	require.NotNil(t, tel.Tracer)
	require.NotNil(t, tel.Propagator)
	require.NotNil(t, tel.PartitionsInspected)
	require.NotNil(t, tel.FetchDuration)
	require.NotNil(t, tel.TokensMinted)
	require.NotNil(t, tel.Errors)
	require.NotNil(t, tel.ErrorHandlerActions)
}

func TestNoop(t *testing.T) {
	t.Parallel()
	tel := Noop()
	require.NotNil(t, tel)
	require.NotNil(t, tel.Tracer)
}

func TestPartitionsInspected_RecordsStatus(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	tel, err := NewTelemetry(nil, mp, nil)
	require.NoError(t, err)

	ctx := context.Background()
	tel.PartitionsInspected.Add(ctx, 1, metric.WithAttributes(AttrResultStatus.String("latest")))
	tel.PartitionsInspected.Add(ctx, 2, metric.WithAttributes(AttrResultStatus.String("latest")))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "offsets.partitions.inspected" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		require.EqualValues(t, 3, sum.DataPoints[0].Value)
		found = true
	}
	require.True(t, found)
}

func TestCarrier_RoundTripsTraceContext(t *testing.T) {
	t.Parallel()
	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	tel, err := NewTelemetry(tp, nil, nil)
	require.NoError(t, err)

	ctx, span := tel.Tracer.Start(context.Background(), "produce")
	defer span.End()

	var headers []kafka.Header
	tel.Propagator.Inject(ctx, NewKafkaHeadersCarrier(&headers))
	require.Contains(t, NewKafkaHeadersCarrier(&headers).Keys(), "traceparent")

	extracted := tel.Propagator.Extract(context.Background(), NewKafkaHeadersCarrier(&headers))
	require.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
}

func TestCarrier_SetOverwrites(t *testing.T) {
	t.Parallel()
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := NewKafkaHeadersCarrier(&headers)

	c.Set("a", "2")
	c.Set("b", "3")

	require.Equal(t, "2", c.Get("a"))
	require.Equal(t, "3", c.Get("b"))
	require.Equal(t, "", c.Get("missing"))
	require.Len(t, headers, 2)
}
