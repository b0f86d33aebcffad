// Package otelhelper provides distributed tracing helpers for execution
// monitoring.
package otelhelper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Common attribute keys.
	WorkflowIDKey  = "flowversal.workflow.id"
	ExecutionIDKey = "flowversal.execution.id"
	NodeIDKey      = "flowversal.node.id"
	NodeTypeKey    = "flowversal.node.type"
	ApprovalIDKey  = "flowversal.approval.id"
	JobNameKey     = "flowversal.job.name"
)

// InitTracer builds an OTLP-exporting tracer provider and registers it
// globally. The exporter endpoint comes from the standard OTEL_EXPORTER_OTLP_*
// environment variables. Callers own the returned provider's Shutdown.
func InitTracer(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return tp, nil
}

// NewTracer returns a tracer from the globally registered provider. Without
// InitTracer having run, the tracer is a no-op.
//
//nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(serviceName string) trace.Tracer {
	return otel.Tracer(serviceName)
}

//nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
