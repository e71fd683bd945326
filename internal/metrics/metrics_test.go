package metrics

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.engineOperationsTotal == nil {
		t.Error("engineOperationsTotal is nil")
	}
	if m.chunkOperationsTotal == nil {
		t.Error("chunkOperationsTotal is nil")
	}
	if m.storeOperationsTotal == nil {
		t.Error("storeOperationsTotal is nil")
	}
}

func TestMetrics_RecordEngineOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})

	m.RecordEngineOperation(context.Background(), "write", 10*time.Millisecond, 1024)
	m.RecordEngineOperation(context.Background(), "finalise", 50*time.Millisecond, 0)
}

func TestMetrics_RecordChunkOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})

	m.RecordChunkOperation(context.Background(), "encrypt", 2*time.Millisecond)
	m.RecordChunkOperation(context.Background(), "decrypt", 2*time.Millisecond)
}

func TestMetrics_RecordStoreOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})

	m.RecordStoreOperation(context.Background(), "put", "memory", 1*time.Millisecond)
}

func TestMetrics_RecordStoreError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})

	m.RecordStoreError(context.Background(), "get", "s3", "chunk_missing")
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})

	m.RecordEngineOperation(context.Background(), "write", 10*time.Millisecond, 1024)
	m.RecordStoreOperation(context.Background(), "put", "memory", 1*time.Millisecond)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{"selfencrypt_engine_operations_total", "selfencrypt_store_operations_total"} {
		if !contains(body, metric) {
			t.Errorf("expected metrics output to contain %q", metric)
		}
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return len(substr) == 0
}
