package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordStoreOperation_BackendLabelEnabled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordStoreOperation(context.Background(), "put", "s3", time.Millisecond)
	m.RecordStoreOperation(context.Background(), "put", "s3", time.Millisecond)
	m.RecordStoreOperation(context.Background(), "put", "redis", time.Millisecond)

	countS3 := testutil.ToFloat64(m.storeOperationsTotal.WithLabelValues("put", "s3"))
	assert.Equal(t, 2.0, countS3)

	countRedis := testutil.ToFloat64(m.storeOperationsTotal.WithLabelValues("put", "redis"))
	assert.Equal(t, 1.0, countRedis)
}

func TestRecordStoreOperation_DisableBackendLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{EnableBackendLabel: false}
	m := newMetricsWithRegistry(reg, cfg)

	m.RecordStoreOperation(context.Background(), "put", "s3", time.Millisecond)
	m.RecordStoreOperation(context.Background(), "put", "redis", time.Millisecond)

	count := testutil.ToFloat64(m.storeOperationsTotal.WithLabelValues("put", "*"))
	assert.Equal(t, 2.0, count)
}

func TestRecordStoreError_DisableBackendLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{EnableBackendLabel: false}
	m := newMetricsWithRegistry(reg, cfg)

	m.RecordStoreError(context.Background(), "get", "s3", "chunk_missing")
	m.RecordStoreError(context.Background(), "get", "redis", "chunk_missing")

	count := testutil.ToFloat64(m.storeErrorsTotal.WithLabelValues("get", "*", "chunk_missing"))
	assert.Equal(t, 2.0, count)
}
