package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "eclairia"

// TracerProvider owns the SDK provider installed by Init. Its zero value
// is the disabled state.
type TracerProvider struct {
	sdk *tracesdk.TracerProvider
}

type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	JaegerURL   string
	Environment string
	SampleRate  float64
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "eclairia",
		Version:     "1.0.0",
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		SampleRate:  1.0,
	}
}

// Init installs a global Jaeger-backed tracer provider. While tracing is
// disabled the global no-op provider stays in place.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(newResource(cfg)),
		tracesdk.WithSampler(sampler(cfg.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{sdk: tp}, nil
}

func newResource(cfg Config) *resource.Resource {
	return resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.Version),
		attribute.String("deployment.environment", cfg.Environment),
	)
}

// sampler follows the caller's decision when a request arrives with a
// trace, and samples new root traces (runs, requests) at rate.
func sampler(rate float64) tracesdk.Sampler {
	var root tracesdk.Sampler
	switch {
	case rate >= 1:
		root = tracesdk.AlwaysSample()
	case rate <= 0:
		root = tracesdk.NeverSample()
	default:
		root = tracesdk.TraceIDRatioBased(rate)
	}
	return tracesdk.ParentBased(root)
}

// Shutdown flushes pending spans to Jaeger.
func (p *TracerProvider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// AddSpanAttributes annotates the span carried by ctx, if it records.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError marks the span carried by ctx as failed with err.
func RecordError(ctx context.Context, err error) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

var (
	RunIDKey      = attribute.Key("validation.run_id")
	StationIDKey  = attribute.Key("station.id")
	StationURLKey = attribute.Key("station.stream_url")
	AttemptKey    = attribute.Key("probe.attempt")
	ErrorKindKey  = attribute.Key("probe.error_kind")
	StatusCodeKey = attribute.Key("probe.status_code")
)

// TraceHTTPRequest opens the server span for one request, named
// "METHOD route".
func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return StartSpan(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
		),
	)
}

func TraceValidationRun(ctx context.Context, runID string, stations int) (context.Context, trace.Span) {
	return StartSpan(ctx, "validation.run",
		trace.WithAttributes(
			RunIDKey.String(runID),
			attribute.Int("validation.stations", stations),
		),
	)
}

// TraceProbeAttempt is the client span of a single stream request.
func TraceProbeAttempt(ctx context.Context, stationID, streamURL string, attempt int) (context.Context, trace.Span) {
	return StartSpan(ctx, "validation.probe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			StationIDKey.String(stationID),
			StationURLKey.String(streamURL),
			AttemptKey.Int(attempt),
		),
	)
}

func TraceRepositoryOperation(ctx context.Context, operation, backend string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("repository.%s", operation),
		trace.WithAttributes(
			attribute.String("repository.operation", operation),
			attribute.String("repository.backend", backend),
		),
	)
}
