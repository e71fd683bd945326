// Package tracing wires up an OpenTelemetry TracerProvider so each worker's
// encrypt/decrypt span (spec §5) carries a trace ID that metrics.go's
// exemplar support can attach to a Prometheus observation.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config selects and configures the trace exporter.
type Config struct {
	// Exporter is one of "otlp", "jaeger", "stdout", or "none" (the default,
	// which installs a no-op provider so StartChunkSpan calls are free).
	Exporter       string
	OTLPEndpoint   string // collector address, used when Exporter is "otlp"
	JaegerEndpoint string // collector HTTP endpoint, used when Exporter is "jaeger"
	ServiceName    string
}

// Provider owns the process-wide TracerProvider and its shutdown hook.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// Setup installs cfg's exporter as the global TracerProvider and returns a
// Provider whose Shutdown flushes and closes it. A zero Config installs a
// no-op provider so StartChunkSpan calls cost nothing.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "selfencrypt-go"
	}

	switch cfg.Exporter {
	case "", "none":
		tp := trace.NewNoopTracerProvider()
		otel.SetTracerProvider(tp)
		return &Provider{tracer: tp.Tracer(cfg.ServiceName), shutdown: func(context.Context) error { return nil }}, nil

	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("tracing: stdout exporter: %w", err)
		}
		return newSDKProvider(ctx, cfg, exp)

	case "otlp":
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("tracing: otlp exporter: %w", err)
		}
		return newSDKProvider(ctx, cfg, exp)

	case "jaeger":
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("tracing: jaeger exporter: %w", err)
		}
		return newSDKProvider(ctx, cfg, exp)

	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q", cfg.Exporter)
	}
}

func newSDKProvider(ctx context.Context, cfg Config, exp sdktrace.SpanExporter) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tracer:   tp.Tracer(cfg.ServiceName),
		shutdown: tp.Shutdown,
	}, nil
}

// Tracer returns the tracer workers use to open per-chunk spans.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes any buffered spans and releases exporter resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

// StartChunkSpan opens a span for one worker's encrypt or decrypt pass over
// a single chunk, tagged with its index the way spec §5 requires.
func StartChunkSpan(ctx context.Context, tracer trace.Tracer, operation string, chunkIndex int) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.Int("selfencrypt.chunk_index", chunkIndex),
	))
}
