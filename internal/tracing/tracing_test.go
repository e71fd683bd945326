package tracing

import (
	"context"
	"testing"
)

func TestSetupNoopByDefault(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Shutdown(context.Background())

	ctx, span := StartChunkSpan(context.Background(), p.Tracer(), "encrypt_chunk", 3)
	if ctx == nil {
		t.Fatalf("expected non-nil context")
	}
	span.End()
}

func TestSetupStdoutExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{Exporter: "stdout", ServiceName: "test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := StartChunkSpan(context.Background(), p.Tracer(), "decrypt_chunk", 0)
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSetupJaegerExporter(t *testing.T) {
	p, err := Setup(context.Background(), Config{Exporter: "jaeger", JaegerEndpoint: "http://127.0.0.1:14268/api/traces", ServiceName: "test"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := StartChunkSpan(context.Background(), p.Tracer(), "encrypt_chunk", 1)
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}
