package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"apigate/internal/ratelimit"
)

// InstrumentedCounterStore wraps a ratelimit.CounterStore with OpenTelemetry
// tracing and metrics. Counter keys carry caller identity, so they are never
// attached to spans or metric attributes; only aggregate outcomes are.
type InstrumentedCounterStore struct {
	inner    ratelimit.CounterStore
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
	denied   metric.Int64Counter
}

// NewInstrumentedCounterStore creates a counter store wrapper that records a
// trace span, a latency histogram sample, and error/denial counters for every
// increment-and-check call.
func NewInstrumentedCounterStore(inner ratelimit.CounterStore) (*InstrumentedCounterStore, error) {
	tracer := otel.Tracer("apigate/ratelimit")
	meter := otel.Meter("apigate/ratelimit")

	duration, err := meter.Float64Histogram(
		"ratelimit.check.duration",
		metric.WithDescription("Duration of rate limit counter checks in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"ratelimit.store.errors",
		metric.WithDescription("Number of counter store errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	deniedCounter, err := meter.Int64Counter(
		"ratelimit.requests.denied",
		metric.WithDescription("Number of requests denied by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedCounterStore{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
		denied:   deniedCounter,
	}, nil
}

// IncrementAndCheck delegates to the wrapped store and records the outcome.
func (s *InstrumentedCounterStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error) {
	ctx, span := s.tracer.Start(ctx, "ratelimit.IncrementAndCheck",
		trace.WithAttributes(
			attribute.Int("ratelimit.limit", limit),
			attribute.String("ratelimit.window", window.String()),
		),
	)
	start := time.Now()

	result, err := s.inner.IncrementAndCheck(ctx, key, limit, window)

	s.duration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		s.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Bool("ratelimit.allowed", result.Allowed))
		if !result.Allowed {
			s.denied.Add(ctx, 1)
		}
		span.SetStatus(codes.Ok, "")
	}

	span.End()
	return result, err
}

// Close closes the wrapped store.
func (s *InstrumentedCounterStore) Close() error {
	return s.inner.Close()
}
