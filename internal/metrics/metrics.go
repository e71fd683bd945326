// Package metrics exposes Prometheus counters and histograms for the
// engine's write/finalise/read pipeline, per-chunk encrypt/decrypt passes,
// ChunkStore calls, and buffer-pool effectiveness. There are no inbound
// HTTP requests to measure at the core, so the metric set is entirely
// engine- and chunk-level.
package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

var (
	// defaultRegistry is the default Prometheus registry
	defaultRegistry = prometheus.DefaultRegisterer
)

// Config holds metrics configuration.
type Config struct {
	// EnableBackendLabel includes the chunk store backend name ("memory",
	// "s3", "redis") as a metric label; disable to avoid a label per
	// backend instance in multi-tenant deployments.
	EnableBackendLabel bool
}

// Metrics holds all application metrics.
type Metrics struct {
	config Config

	engineOperationsTotal *prometheus.CounterVec
	engineDuration        *prometheus.HistogramVec
	engineBytesTotal      *prometheus.CounterVec
	engineErrorsTotal     *prometheus.CounterVec

	chunkOperationsTotal *prometheus.CounterVec
	chunkDuration        *prometheus.HistogramVec

	storeOperationsTotal *prometheus.CounterVec
	storeDuration        *prometheus.HistogramVec
	storeErrorsTotal     *prometheus.CounterVec

	bufferPoolHits   *prometheus.GaugeVec
	bufferPoolMisses *prometheus.GaugeVec

	hardwareAccelerationEnabled *prometheus.GaugeVec
	goroutines                  prometheus.Gauge
	memoryAllocBytes            prometheus.Gauge
	memorySysBytes              prometheus.Gauge
}

// NewMetrics creates a new metrics instance with default configuration.
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(Config{EnableBackendLabel: true})
}

// NewMetricsWithConfig creates a new metrics instance with the provided configuration.
func NewMetricsWithConfig(cfg Config) *Metrics {
	return newMetricsWithRegistry(defaultRegistry, cfg)
}

// NewMetricsWithRegistry creates a new metrics instance with a custom registry.
// This is useful for testing to avoid metric registration conflicts.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetricsWithRegistry(reg, Config{EnableBackendLabel: true})
}

// newMetricsWithRegistry creates a new metrics instance with a custom registry (for testing).
func newMetricsWithRegistry(reg prometheus.Registerer, cfg Config) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		config: cfg,
		engineOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selfencrypt_engine_operations_total",
				Help: "Total number of Write/Finalise/Read/DeleteAll calls",
			},
			[]string{"operation"},
		),
		engineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "selfencrypt_engine_duration_seconds",
				Help:    "Write/Finalise/Read/DeleteAll latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		engineBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selfencrypt_engine_bytes_total",
				Help: "Total plaintext bytes written or read",
			},
			[]string{"operation"},
		),
		engineErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selfencrypt_engine_errors_total",
				Help: "Total engine operation failures by error kind",
			},
			[]string{"operation", "error_type"},
		),
		chunkOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selfencrypt_chunk_operations_total",
				Help: "Total per-chunk encrypt/decrypt pipeline runs",
			},
			[]string{"operation"}, // "encrypt" or "decrypt"
		),
		chunkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "selfencrypt_chunk_duration_seconds",
				Help:    "Per-chunk encrypt/decrypt pipeline duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"operation"},
		),
		storeOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selfencrypt_store_operations_total",
				Help: "Total ChunkStore Put/Get/Delete calls",
			},
			[]string{"operation", "backend"},
		),
		storeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "selfencrypt_store_duration_seconds",
				Help:    "ChunkStore call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		storeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "selfencrypt_store_errors_total",
				Help: "Total ChunkStore call failures",
			},
			[]string{"operation", "backend", "error_type"},
		),
		bufferPoolHits: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "selfencrypt_buffer_pool_hits_total",
				Help: "Cumulative number of buffer pool hits, as last sampled from the pool",
			},
			[]string{"size_class"},
		),
		bufferPoolMisses: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "selfencrypt_buffer_pool_misses_total",
				Help: "Cumulative number of buffer pool misses, as last sampled from the pool",
			},
			[]string{"size_class"},
		),
		hardwareAccelerationEnabled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "selfencrypt_hardware_acceleration_enabled",
				Help: "Hardware AES acceleration status (1=enabled, 0=disabled)",
			},
			[]string{"type"},
		),
		goroutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "selfencrypt_goroutines",
				Help: "Number of goroutines",
			},
		),
		memoryAllocBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "selfencrypt_memory_alloc_bytes",
				Help: "Number of bytes allocated and not yet freed",
			},
		),
		memorySysBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "selfencrypt_memory_sys_bytes",
				Help: "Total bytes of memory obtained from OS",
			},
		),
	}
}

// SetHardwareAccelerationStatus sets the hardware acceleration status metric.
func (m *Metrics) SetHardwareAccelerationStatus(accelType string, enabled bool) {
	val := 0.0
	if enabled {
		val = 1.0
	}
	m.hardwareAccelerationEnabled.WithLabelValues(accelType).Set(val)
}

// GetHardwareAccelerationEnabledMetric returns the hardware acceleration enabled metric (for testing).
func (m *Metrics) GetHardwareAccelerationEnabledMetric() *prometheus.GaugeVec {
	return m.hardwareAccelerationEnabled
}

// RecordEngineOperation records a top-level Write/Finalise/Read/DeleteAll call.
func (m *Metrics) RecordEngineOperation(ctx context.Context, operation string, duration time.Duration, bytes int64) {
	labels := prometheus.Labels{"operation": operation}

	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.engineOperationsTotal.With(labels).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.engineOperationsTotal.With(labels).Inc()
		}

		if observer, ok := m.engineDuration.With(labels).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.engineDuration.With(labels).Observe(duration.Seconds())
		}
	} else {
		m.engineOperationsTotal.With(labels).Inc()
		m.engineDuration.With(labels).Observe(duration.Seconds())
	}

	if bytes > 0 {
		m.engineBytesTotal.WithLabelValues(operation).Add(float64(bytes))
	}
}

// RecordEngineError records a failed Write/Finalise/Read/DeleteAll call.
func (m *Metrics) RecordEngineError(operation, errorType string) {
	m.engineErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordChunkOperation records one worker's encrypt or decrypt pass over a
// single chunk.
func (m *Metrics) RecordChunkOperation(ctx context.Context, operation string, duration time.Duration) {
	labels := prometheus.Labels{"operation": operation}

	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.chunkOperationsTotal.With(labels).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.chunkOperationsTotal.With(labels).Inc()
		}

		if observer, ok := m.chunkDuration.With(labels).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.chunkDuration.With(labels).Observe(duration.Seconds())
		}
	} else {
		m.chunkOperationsTotal.With(labels).Inc()
		m.chunkDuration.With(labels).Observe(duration.Seconds())
	}
}

// RecordStoreOperation records a ChunkStore Put/Get/Delete call.
func (m *Metrics) RecordStoreOperation(ctx context.Context, operation, backend string, duration time.Duration) {
	backendLabel := m.backendLabel(backend)

	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.storeOperationsTotal.WithLabelValues(operation, backendLabel).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.storeOperationsTotal.WithLabelValues(operation, backendLabel).Inc()
		}

		if observer, ok := m.storeDuration.WithLabelValues(operation, backendLabel).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.storeDuration.WithLabelValues(operation, backendLabel).Observe(duration.Seconds())
		}
	} else {
		m.storeOperationsTotal.WithLabelValues(operation, backendLabel).Inc()
		m.storeDuration.WithLabelValues(operation, backendLabel).Observe(duration.Seconds())
	}
}

// RecordStoreError records a ChunkStore call failure.
func (m *Metrics) RecordStoreError(ctx context.Context, operation, backend, errorType string) {
	backendLabel := m.backendLabel(backend)

	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.storeErrorsTotal.WithLabelValues(operation, backendLabel, errorType).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.storeErrorsTotal.WithLabelValues(operation, backendLabel, errorType).Inc()
		}
	} else {
		m.storeErrorsTotal.WithLabelValues(operation, backendLabel, errorType).Inc()
	}
}

func (m *Metrics) backendLabel(backend string) string {
	if !m.config.EnableBackendLabel {
		return "*"
	}
	return backend
}

// SetBufferPoolStats records a snapshot of one size class's cumulative
// hit/miss counters, as reported by bufferpool.Pool.Stats.
func (m *Metrics) SetBufferPoolStats(sizeClass string, hits, misses int64) {
	m.bufferPoolHits.WithLabelValues(sizeClass).Set(float64(hits))
	m.bufferPoolMisses.WithLabelValues(sizeClass).Set(float64(misses))
}

// UpdateSystemMetrics updates system-level metrics (goroutines, memory).
func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAllocBytes.Set(float64(memStats.Alloc))
	m.memorySysBytes.Set(float64(memStats.Sys))
}

// StartSystemMetricsCollector starts a goroutine that periodically updates
// system metrics every interval. The returned func stops the collector.
func (m *Metrics) StartSystemMetricsCollector(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				m.UpdateSystemMetrics()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// getExemplar extracts trace ID from context and returns prometheus Labels for exemplar.
func getExemplar(ctx context.Context) prometheus.Labels {
	if ctx == nil {
		return nil
	}
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.IsValid() {
		return prometheus.Labels{"trace_id": spanContext.TraceID().String()}
	}
	return nil
}
