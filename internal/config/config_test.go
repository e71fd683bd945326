package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", `
engine:
  nominal_chunk_size: 4096
  min_chunk_size: 64
  worker_count: 2
  verify_plaintext_hash_on_read: false
store:
  backend: redis
  redis:
    addr: 127.0.0.1:6379
logging:
  level: debug
  format: text
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.NominalChunkSize != 4096 || cfg.Engine.MinChunkSize != 64 {
		t.Fatalf("engine sizing not applied: %+v", cfg.Engine)
	}
	if cfg.Engine.WorkerCount != 2 || cfg.Engine.VerifyPlaintextHashOnRead {
		t.Fatalf("engine flags not applied: %+v", cfg.Engine)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("store not applied: %+v", cfg.Store)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Fatalf("logging not applied: %+v", cfg.Logging)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Engine != want.Engine || cfg.Store != want.Store || cfg.Logging != want.Logging {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Audit.Enabled != want.Audit.Enabled || cfg.Audit.MaxEvents != want.Audit.MaxEvents || cfg.Audit.Sink.Type != want.Audit.Sink.Type {
		t.Fatalf("expected default audit config, got %+v", cfg.Audit)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", "store:\n  backend: carrier-pigeon\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error for unknown backend")
	}
}

func TestEnvOverrideWins(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", "engine:\n  worker_count: 1\n")
	t.Setenv("SELFENCRYPT_WORKER_COUNT", "9")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.WorkerCount != 9 {
		t.Fatalf("env override not applied, got %d", cfg.Engine.WorkerCount)
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", "logging:\n  level: info\n")

	w, err := NewWatcher(p, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if got := w.Current().Logging.Level; got != "info" {
		t.Fatalf("initial level = %q, want info", got)
	}

	writeFile(t, dir, "cfg.yaml", "logging:\n  level: debug\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Current().Logging.Level == "debug" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher did not observe reload, level = %q", w.Current().Logging.Level)
}

func TestWatcherIgnoresChunkSizingChange(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "cfg.yaml", "engine:\n  nominal_chunk_size: 4096\n  min_chunk_size: 64\n")

	w, err := NewWatcher(p, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	writeFile(t, dir, "cfg.yaml", "engine:\n  nominal_chunk_size: 9999\n  min_chunk_size: 64\n  worker_count: 3\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Current().Engine.WorkerCount == 3 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := w.Current().Engine.NominalChunkSize; got != 4096 {
		t.Fatalf("nominal_chunk_size changed to %d, want frozen at 4096", got)
	}
}
