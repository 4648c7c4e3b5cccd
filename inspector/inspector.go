package inspector

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugolhafner/go-offsets/errorhandler"
	"github.com/hugolhafner/go-offsets/kafka"
	"github.com/hugolhafner/go-offsets/logger"
	"github.com/hugolhafner/go-offsets/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrAlreadyInspected is yielded when an inspection sequence is ranged over twice
var ErrAlreadyInspected = errors.New("inspection already consumed")

// Inspector finds the latest record of every partition of a topic
type Inspector struct {
	session kafka.Session
	config  Config
	logger  logger.Logger
	tel     *otel.Telemetry
}

func New(session kafka.Session, opts ...Option) *Inspector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = errorhandler.Default(cfg.Logger)
	}

	return &Inspector{
		session: session,
		config:  cfg,
		logger:  cfg.Logger.With("component", "inspector"),
		tel:     cfg.Telemetry,
	}
}

// Inspect returns a lazy, one-shot sequence with one Result per partition in
// ascending partition order, or a single StatusTopicNotFound result.
//
// A non-nil error ends the sequence. It is a connection level failure, a
// cancelled context, or a partition error the error handler chose to fail on.
// Results yielded before it stand.
func (i *Inspector) Inspect(ctx context.Context, topic string) iter.Seq2[Result, error] {
	var consumed atomic.Bool

	return func(yield func(Result, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(Result{}, ErrAlreadyInspected)
			return
		}

		ctx, span := i.tel.Tracer.Start(
			ctx, "inspect topic", trace.WithAttributes(
				otel.AttrTopic.String(topic),
				otel.AttrInspectWorker.Int(i.config.Concurrency),
			),
		)
		defer span.End()

		partitions, err := i.session.PartitionsOf(ctx, topic)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve partitions")
			yield(Result{}, fmt.Errorf("resolve partitions of %q: %w", topic, err))
			return
		}

		if len(partitions) == 0 {
			r := Result{Topic: topic, Status: StatusTopicNotFound, LatestOffset: -1}
			i.observe(ctx, r)
			yield(r, nil)
			return
		}

		i.logger.Debug("Inspecting topic", "topic", topic, "partitions", len(partitions))

		if i.config.Concurrency > 1 && len(partitions) > 1 {
			i.inspectConcurrently(ctx, topic, partitions, yield)
			return
		}

		for _, p := range partitions {
			if err := ctx.Err(); err != nil {
				yield(Result{}, err)
				return
			}

			r, err := i.inspectPartition(ctx, kafka.TopicPartition{Topic: topic, Partition: p})
			if !yield(r, err) || err != nil {
				return
			}
		}
	}
}

type outcome struct {
	result Result
	err    error
}

// inspectConcurrently fans partitions out to a bounded set of workers. Every
// worker reads through its own cursor; results are re-sequenced by index.
func (i *Inspector) inspectConcurrently(
	ctx context.Context, topic string, partitions []int32, yield func(Result, error) bool,
) {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan outcome, len(partitions))
	for idx := range slots {
		slots[idx] = make(chan outcome, 1)
	}

	sem := make(chan struct{}, i.config.Concurrency)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for idx, p := range partitions {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				slots[idx] <- outcome{err: ctx.Err()}
				continue
			}

			wg.Add(1)
			go func(idx int, tp kafka.TopicPartition) {
				defer wg.Done()
				defer func() { <-sem }()

				r, err := i.inspectPartition(ctx, tp)
				slots[idx] <- outcome{result: r, err: err}
			}(idx, kafka.TopicPartition{Topic: topic, Partition: p})
		}
	}()

	for idx := range partitions {
		o := <-slots[idx]
		if !yield(o.result, o.err) || o.err != nil {
			return
		}
	}
}

func (i *Inspector) inspectPartition(ctx context.Context, tp kafka.TopicPartition) (Result, error) {
	ctx, span := i.tel.Tracer.Start(
		ctx, "inspect partition", trace.WithAttributes(
			otel.AttrTopic.String(tp.Topic),
			otel.AttrPartition.Int(int(tp.Partition)),
		),
	)
	defer span.End()

	r, err := i.resolvePartition(ctx, span, tp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inspection failed")
		return Result{}, err
	}

	i.observe(ctx, r)
	return r, nil
}

func (i *Inspector) resolvePartition(ctx context.Context, span trace.Span, tp kafka.TopicPartition) (Result, error) {
	base := Result{Topic: tp.Topic, Partition: tp.Partition, LatestOffset: -1}

	var latest int64
	skipped, err := i.attempt(
		ctx, tp, errorhandler.PhaseListOffsets, -1, func() error {
			offsets, err := i.session.LatestOffsets(ctx, []kafka.TopicPartition{tp})
			if err != nil {
				return err
			}

			lo, ok := offsets[tp]
			if !ok {
				return fmt.Errorf("no end offset listed for %s", tp)
			}
			if lo.Err != nil {
				return fmt.Errorf("list end offset of %s: %w", tp, lo.Err)
			}

			latest = lo.Offset
			return nil
		},
	)
	if err != nil {
		return Result{}, err
	}
	if skipped != nil {
		base.Status = StatusFailed
		base.Err = skipped
		return base, nil
	}

	base.LatestOffset = latest
	span.SetAttributes(otel.AttrLatestOffset.Int64(latest))

	if latest <= 0 {
		base.Status = StatusEmptyPartition
		return base, nil
	}

	// The end offset is the next position to be written.
	target := latest - 1

	var (
		records []kafka.ConsumerRecord
		gapErr  error
	)
	start := time.Now()
	skipped, err = i.attempt(
		ctx, tp, errorhandler.PhaseFetch, target, func() error {
			recs, err := i.session.FetchAt(ctx, tp, target, i.config.FetchTimeout)
			if kafka.IsFetchGap(err) {
				records, gapErr = nil, err
				return nil
			}
			if err != nil {
				return err
			}

			records, gapErr = recs, nil
			return nil
		},
	)
	if err != nil {
		return Result{}, err
	}
	if skipped != nil {
		i.recordFetch(ctx, start, otel.StatusFailed)
		base.Status = StatusFailed
		base.Err = skipped
		return base, nil
	}

	if len(records) == 0 {
		gap := gapOf(gapErr)
		i.recordFetch(ctx, start, gap.String())
		i.logger.Debug(
			"No record at latest offset",
			"topic", tp.Topic,
			"partition", tp.Partition,
			"offset", target,
			"reason", gap.String(),
		)

		base.Status = StatusNoRecordAtLatest
		base.Gap = gap
		base.Err = gapErr
		return base, nil
	}

	i.recordFetch(ctx, start, otel.StatusSuccess)

	rec := records[0]
	i.linkProducerSpan(ctx, span, &rec)

	base.Status = StatusLatest
	base.Offset = rec.Offset
	base.Timestamp = rec.Timestamp
	base.Record = &rec
	return base, nil
}

// attempt runs fn until it succeeds or the error handler stops retrying it.
// skipped is the last error when the handler chose to continue; err is
// non-nil when the run must stop.
func (i *Inspector) attempt(
	ctx context.Context, tp kafka.TopicPartition, phase errorhandler.ErrorPhase, offset int64, fn func() error,
) (skipped error, err error) {
	ec := errorhandler.NewErrorContext(tp, nil).WithPhase(phase).WithOffset(offset)

	for {
		callErr := fn()
		if callErr == nil {
			return nil, nil
		}

		if _, ok := kafka.AsConnectionError(callErr); ok {
			return nil, callErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		ec = ec.WithError(callErr)
		phaseAttr := otel.AttrErrorPhase.String(phase.String())
		i.tel.Errors.Add(ctx, 1, metric.WithAttributes(phaseAttr))

		action := i.config.ErrorHandler.Handle(ctx, ec)
		i.tel.ErrorHandlerActions.Add(
			ctx, 1, metric.WithAttributes(phaseAttr, otel.AttrErrorAction.String(action.Type().String())),
		)

		switch action.Type() {
		case errorhandler.ActionTypeRetry:
			ec = ec.IncrementAttempt()
		case errorhandler.ActionTypeContinue:
			return callErr, nil
		default:
			return nil, fmt.Errorf("%s %s: %w", phase, tp, callErr)
		}
	}
}

// linkProducerSpan links the inspection span to the trace that produced the
// record, when the producer propagated one in its headers.
func (i *Inspector) linkProducerSpan(ctx context.Context, span trace.Span, rec *kafka.ConsumerRecord) {
	if len(rec.Headers) == 0 {
		return
	}

	producerCtx := i.tel.Propagator.Extract(ctx, otel.NewKafkaHeadersCarrier(&rec.Headers))
	sc := trace.SpanContextFromContext(producerCtx)
	if !sc.IsValid() {
		return
	}

	span.AddLink(trace.Link{SpanContext: sc})
}

func (i *Inspector) recordFetch(ctx context.Context, start time.Time, status string) {
	i.tel.FetchDuration.Record(
		ctx, time.Since(start).Seconds(),
		metric.WithAttributes(otel.AttrFetchStatus.String(status)),
	)
}

func (i *Inspector) observe(ctx context.Context, r Result) {
	i.tel.PartitionsInspected.Add(ctx, 1, metric.WithAttributes(otel.AttrResultStatus.String(r.Status.String())))
}

func gapOf(err error) Gap {
	switch {
	case err == nil:
		return GapEmpty
	case errors.Is(err, kafka.ErrOffsetTruncated):
		return GapTruncated
	default:
		return GapTimeout
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Result, error]) ([]Result, error) {
	var results []Result
	for r, err := range seq {
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
