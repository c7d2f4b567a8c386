// Package tracing wires a process-local OpenTelemetry TracerProvider,
// grounded on the teacher's observability/otel.Init (otel/init.go), trimmed
// to the span-recording concern only: this module has no OTLP collector to
// export to, so it registers a TracerProvider with no span processor
// attached rather than pulling in the otlptrace/otlpmetric exporter
// packages the teacher's fuller Init wires for its own collector.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Setup registers a global TracerProvider tagged with service/env resource
// attributes and returns the tracer pool.Pool's Submit starts its span
// against; no other pool method starts a span.
func Setup(service, env string) trace.Tracer {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(service)}
	if env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(env))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		res = resource.Default()
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Tracer("lendcore/pool")
}

// StartSpan starts a child span under name, ending it is left to the
// caller via the returned trace.Span's End method.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = otel.Tracer("lendcore/pool")
	}
	return tracer.Start(ctx, name)
}
