// Command selfencrypt is a small CLI around the engine package: encrypt or
// decrypt a file against a chosen ChunkStore backend, print the resulting
// data map as JSON, run a throughput benchmark, or serve the operational
// HTTP surface. Flag-based, one flag.FlagSet per subcommand.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
	"github.com/maidsafe-archive/selfencrypt-go/internal/cipherengine"
	"github.com/maidsafe-archive/selfencrypt-go/internal/config"
	"github.com/maidsafe-archive/selfencrypt-go/internal/datamap"
	"github.com/maidsafe-archive/selfencrypt-go/internal/debug"
	"github.com/maidsafe-archive/selfencrypt-go/internal/engine"
	"github.com/maidsafe-archive/selfencrypt-go/internal/httpserver"
	"github.com/maidsafe-archive/selfencrypt-go/internal/metrics"
	"github.com/maidsafe-archive/selfencrypt-go/internal/tracing"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := logrus.New()
	debug.InitFromEnv()
	if debug.Enabled() {
		logger.SetLevel(logrus.DebugLevel)
		logger.Debug("debug logging enabled")
	}

	var err error
	switch os.Args[1] {
	case "encrypt":
		err = runEncrypt(os.Args[2:], logger)
	case "decrypt":
		err = runDecrypt(os.Args[2:], logger)
	case "bench":
		err = runBench(os.Args[2:], logger)
	case "serve":
		err = runServe(os.Args[2:], logger)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: selfencrypt <encrypt|decrypt|bench|serve> [flags]")
}

func runEncrypt(args []string, logger *logrus.Logger) error {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	input := fs.String("in", "", "plaintext input file")
	output := fs.String("out", "", "data map output file (JSON); stdout if empty")
	fs.Parse(args)

	if *input == "" {
		return fmt.Errorf("encrypt: -in is required")
	}

	cfg, store, err := loadConfigAndStore(context.Background(), *configPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		return fmt.Errorf("encrypt: read %s: %w", *input, err)
	}

	e := engine.New(store, cfg, logger.WithField("component", "engine"))
	if err := e.Write(data, 0); err != nil {
		return fmt.Errorf("encrypt: write: %w", err)
	}
	dm, err := e.Finalise()
	if err != nil {
		return fmt.Errorf("encrypt: finalise: %w", err)
	}

	return writeDataMap(dm, *output)
}

func runDecrypt(args []string, logger *logrus.Logger) error {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	dataMapPath := fs.String("datamap", "", "data map input file (JSON)")
	output := fs.String("out", "", "plaintext output file; stdout if empty")
	fs.Parse(args)

	if *dataMapPath == "" {
		return fmt.Errorf("decrypt: -datamap is required")
	}

	cfg, store, err := loadConfigAndStore(context.Background(), *configPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(*dataMapPath)
	if err != nil {
		return fmt.Errorf("decrypt: read %s: %w", *dataMapPath, err)
	}
	var dm datamap.DataMap
	if err := json.Unmarshal(raw, &dm); err != nil {
		return fmt.Errorf("decrypt: parse data map: %w", err)
	}

	e, err := engine.Open(store, cfg, logger.WithField("component", "engine"), &dm)
	if err != nil {
		return fmt.Errorf("decrypt: open: %w", err)
	}

	buf := make([]byte, dm.TotalSize)
	if _, err := e.Read(buf, 0); err != nil {
		return fmt.Errorf("decrypt: read: %w", err)
	}

	if *output == "" {
		_, err = os.Stdout.Write(buf)
		return err
	}
	return os.WriteFile(*output, buf, 0o644)
}

// runBench reports write and read throughput for a synthetic payload
// against the configured backend. The default "-format text" output is the
// standard `go test -bench` line format so selfencrypt-bench can feed it
// straight into benchstat; "-format json" is for scripting.
func runBench(args []string, logger *logrus.Logger) error {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	size := fs.Int64("size", 64*1024*1024, "synthetic payload size in bytes")
	iterations := fs.Int("iterations", 5, "number of write/read iterations to sample")
	output := fs.String("out", "", "benchmark result output file; stdout if empty")
	format := fs.String("format", "text", "text (benchstat-compatible) or json")
	fs.Parse(args)

	cfg, store, err := loadConfigAndStore(context.Background(), *configPath)
	if err != nil {
		return err
	}

	data := make([]byte, *size)
	for i := range data {
		data[i] = byte(i)
	}

	samples := make([]benchSample, 0, *iterations)
	for i := 0; i < *iterations; i++ {
		e := engine.New(store, cfg, logger.WithField("component", "engine"))

		writeStart := time.Now()
		if err := e.Write(data, 0); err != nil {
			return fmt.Errorf("bench: write: %w", err)
		}
		dm, err := e.Finalise()
		if err != nil {
			return fmt.Errorf("bench: finalise: %w", err)
		}
		writeElapsed := time.Since(writeStart)

		readStart := time.Now()
		buf := make([]byte, dm.TotalSize)
		if _, err := e.Read(buf, 0); err != nil {
			return fmt.Errorf("bench: read: %w", err)
		}
		readElapsed := time.Since(readStart)

		if err := e.DeleteAll(context.Background()); err != nil {
			return fmt.Errorf("bench: delete_all: %w", err)
		}

		samples = append(samples, benchSample{
			writeNanos: writeElapsed.Nanoseconds(),
			readNanos:  readElapsed.Nanoseconds(),
		})
	}

	var out []byte
	switch *format {
	case "json":
		out, err = json.MarshalIndent(summarizeBenchSamples(*size, samples), "", "  ")
	default:
		out = []byte(formatBenchstatText(*size, samples))
	}
	if err != nil {
		return err
	}
	if *output == "" {
		fmt.Print(string(out))
		if *format != "json" {
			return nil
		}
		fmt.Println()
		return nil
	}
	return os.WriteFile(*output, out, 0o644)
}

type benchSample struct {
	writeNanos int64
	readNanos  int64
}

// formatBenchstatText renders samples as standard `go test -bench` lines,
// the format golang.org/x/perf/benchstat's Collection.AddConfig parses.
func formatBenchstatText(payloadBytes int64, samples []benchSample) string {
	var b strings.Builder
	for _, s := range samples {
		writeMBps := float64(payloadBytes) / (float64(s.writeNanos) / 1e9) / (1024 * 1024)
		readMBps := float64(payloadBytes) / (float64(s.readNanos) / 1e9) / (1024 * 1024)
		fmt.Fprintf(&b, "BenchmarkSelfEncryptWrite 1 %d ns/op %.2f MB/s\n", s.writeNanos, writeMBps)
		fmt.Fprintf(&b, "BenchmarkSelfEncryptRead 1 %d ns/op %.2f MB/s\n", s.readNanos, readMBps)
	}
	return b.String()
}

type benchResult struct {
	PayloadBytes        int64   `json:"payload_bytes"`
	Iterations          int     `json:"iterations"`
	WriteSeconds        float64 `json:"write_seconds_mean"`
	ReadSeconds         float64 `json:"read_seconds_mean"`
	WriteBytesPerSecond float64 `json:"write_bytes_per_second_mean"`
	ReadBytesPerSecond  float64 `json:"read_bytes_per_second_mean"`
}

func summarizeBenchSamples(payloadBytes int64, samples []benchSample) benchResult {
	var writeTotal, readTotal int64
	for _, s := range samples {
		writeTotal += s.writeNanos
		readTotal += s.readNanos
	}
	n := int64(len(samples))
	writeMean := time.Duration(writeTotal / n)
	readMean := time.Duration(readTotal / n)
	return benchResult{
		PayloadBytes:        payloadBytes,
		Iterations:          len(samples),
		WriteSeconds:        writeMean.Seconds(),
		ReadSeconds:         readMean.Seconds(),
		WriteBytesPerSecond: float64(payloadBytes) / writeMean.Seconds(),
		ReadBytesPerSecond:  float64(payloadBytes) / readMean.Seconds(),
	}
}

// runServe starts the operational HTTP surface (health/ready/live/metrics),
// wired with the configured metrics and tracing exporters.
func runServe(args []string, logger *logrus.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	addr := fs.String("addr", ":8080", "HTTP listen address")
	tracingExporter := fs.String("tracing-exporter", "none", "none | stdout | otlp | jaeger")
	otlpEndpoint := fs.String("otlp-endpoint", "", "OTLP collector endpoint")
	jaegerEndpoint := fs.String("jaeger-endpoint", "", "Jaeger collector HTTP endpoint")
	fs.Parse(args)

	watcher, err := config.NewWatcher(*configPath, logger.WithField("component", "config"))
	if err != nil {
		return fmt.Errorf("serve: config: %w", err)
	}
	defer watcher.Close()

	cfg := watcher.Current()
	applyLoggingConfig(logger, cfg.Logging)

	store, err := buildStore(context.Background(), cfg.Store)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics()
	stopSysMetrics := m.StartSystemMetricsCollector(15 * time.Second)
	defer stopSysMetrics()
	m.SetHardwareAccelerationStatus("aes", cipherengine.HardwareAccelerated())

	tp, err := tracing.Setup(context.Background(), tracing.Config{
		Exporter:       *tracingExporter,
		OTLPEndpoint:   *otlpEndpoint,
		JaegerEndpoint: *jaegerEndpoint,
		ServiceName:    "selfencrypt-go",
	})
	if err != nil {
		return fmt.Errorf("serve: tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	healthCheck := storeHealthCheck(store)
	h := httpserver.New(logger, m, healthCheck)
	return h.ListenAndServe(*addr)
}

func applyLoggingConfig(logger *logrus.Logger, cfg config.LoggingConfig) {
	if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	debug.InitFromLogLevel(cfg.Level)
}

// storeHealthCheck probes store's availability with a Get against a key
// that is never present, so a healthy backend reports ErrNotFound rather
// than a transport failure.
func storeHealthCheck(store chunkstore.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		var probe [chunkstore.KeySize]byte
		_, err := store.Get(ctx, probe)
		if err == chunkstore.ErrNotFound {
			return nil
		}
		return err
	}
}

func loadConfigAndStore(ctx context.Context, path string) (engine.Config, chunkstore.Store, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return engine.Config{}, nil, err
	}
	store, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return engine.Config{}, nil, err
	}
	return engineConfigFrom(cfg), store, nil
}

func writeDataMap(dm *datamap.DataMap, path string) error {
	out, err := json.MarshalIndent(dm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal data map: %w", err)
	}
	if path == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(path, out, 0o644)
}
