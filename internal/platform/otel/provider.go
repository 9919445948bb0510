// Package otel wires the global OpenTelemetry tracer provider for taskdeck
// services.
package otel

import (
	"context"

	"github.com/taskdeck/taskdeck/internal/platform/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// settings selects the OTLP trace exporter. Tracing stays off until an
// exporter endpoint is configured.
type settings struct {
	ExporterEndpoint string `env:"TASKDECK_OTEL_EXPORTER_ENDPOINT"`
	Insecure         bool   `env:"TASKDECK_OTEL_INSECURE"`
}

// Setup registers the global tracer provider and trace-context propagator
// for serviceName. The returned function flushes pending spans; callers
// defer it. Without TASKDECK_OTEL_EXPORTER_ENDPOINT, Setup registers
// nothing and the returned function is a no-op.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var cfg settings
	if err := config.FromEnv(&cfg); err != nil {
		return noop, err
	}
	if cfg.ExporterEndpoint == "" {
		return noop, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.ExporterEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return noop, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}
