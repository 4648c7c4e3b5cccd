package otel

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	traceNoop "go.opentelemetry.io/otel/trace/noop"
)

const scopeName = "github.com/hugolhafner/go-offsets"

// Telemetry holds the OpenTelemetry instruments used during an inspection
// When no providers are configured, all instruments are noops with zero overhead
type Telemetry struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator

	// Inspection metrics
	PartitionsInspected metric.Int64Counter
	FetchDuration       metric.Float64Histogram

	// Auth metrics
	TokensMinted metric.Int64Counter

	// Error metrics
	Errors              metric.Int64Counter
	ErrorHandlerActions metric.Int64Counter
}

// NewTelemetry creates a Telemetry instance from the given providers.
// all providers are optional and defaulted to noops if nil
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider, prop propagation.TextMapPropagator) (
	*Telemetry, error,
) {
	if tp == nil {
		tp = traceNoop.NewTracerProvider()
	}
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}

	tracer := tp.Tracer(scopeName)
	meter := mp.Meter(scopeName)

	partitionsInspected, err := meter.Int64Counter(
		"offsets.partitions.inspected",
		metric.WithDescription("Partitions inspected, by result status"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"offsets.fetch.duration",
		metric.WithDescription("Time to read the record at the latest offset"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensMinted, err := meter.Int64Counter(
		"offsets.auth.tokens",
		metric.WithDescription("Bearer tokens minted, by status"),
	)
	if err != nil {
		return nil, err
	}

	errors, err := meter.Int64Counter(
		"offsets.errors",
		metric.WithDescription("Per-partition errors encountered"),
	)
	if err != nil {
		return nil, err
	}

	errorHandlerActions, err := meter.Int64Counter(
		"offsets.error_handler.actions",
		metric.WithDescription("Error handler decisions"),
	)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Tracer:              tracer,
		Propagator:          prop,
		PartitionsInspected: partitionsInspected,
		FetchDuration:       fetchDuration,
		TokensMinted:        tokensMinted,
		Errors:              errors,
		ErrorHandlerActions: errorHandlerActions,
	}, nil
}

// Noop returns a Telemetry instance with all noop instruments
func Noop() *Telemetry {
	t, _ := NewTelemetry(nil, nil, nil)
	return t
}
