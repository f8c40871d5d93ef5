package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/evfleetops/alloc-core"

// InitTracer wires a Jaeger exporter at the given collector endpoint
// (config.OpenTelemetryConfig.Jaeger.Endpoint). An empty endpoint falls
// back to the default collector address.
func InitTracer(serviceName, jaegerEndpoint string) (*sdktrace.TracerProvider, error) {
	if jaegerEndpoint == "" {
		jaegerEndpoint = "http://jaeger:14268/api/traces"
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(jaegerEndpoint),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("v1.0.0"),
		)),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp, nil
}

// StartRunSpan opens the root span for one coordinator run.
func StartRunSpan(ctx context.Context, runID, siteID, mode string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "coordinator.run")
	span.SetAttributes(
		attrString("run.id", runID),
		attrString("run.site_id", siteID),
		attrString("run.mode", mode),
	)
	return ctx, span
}

// StartSolverSpan opens a child span around one solver-stage invocation
// (allocation or charging).
func StartSolverSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "solver."+stage)
	span.SetAttributes(attrString("solver.stage", stage))
	return ctx, span
}

func attrString(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
