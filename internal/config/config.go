// Package config loads YAML configuration and watches it for changes, so
// operators can flip logging level or worker_count without a restart.
// Chunk-sizing knobs are part of the data map's wire contract, so a running
// Engine never picks up a change to them: a reload keeps the values it
// started with and logs a warning instead.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EngineConfig mirrors engine.Config's YAML-facing fields.
type EngineConfig struct {
	NominalChunkSize          int  `yaml:"nominal_chunk_size"`
	MinChunkSize              int  `yaml:"min_chunk_size"`
	WorkerCount               int  `yaml:"worker_count"`
	VerifyPlaintextHashOnRead bool `yaml:"verify_plaintext_hash_on_read"`
}

// S3Config mirrors s3store.Config's YAML-facing fields.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	KeyPrefix string `yaml:"key_prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// RedisConfig mirrors redisstore's connection parameters.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// StoreConfig selects and configures one ChunkStore backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"` // memory | s3 | redis
	S3      S3Config    `yaml:"s3"`
	Redis   RedisConfig `yaml:"redis"`
}

// LoggingConfig controls the injected logrus logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// SinkConfig selects and configures where audit events are written.
type SinkConfig struct {
	Type          string            `yaml:"type"` // stdout | file | http
	FilePath      string            `yaml:"file_path"`
	Endpoint      string            `yaml:"endpoint"`
	Headers       map[string]string `yaml:"headers"`
	BatchSize     int               `yaml:"batch_size"`
	FlushInterval time.Duration     `yaml:"flush_interval"`
	RetryCount    int               `yaml:"retry_count"`
	RetryBackoff  time.Duration     `yaml:"retry_backoff"`
}

// AuditConfig controls the engine's audit trail of encrypt/decrypt/delete
// operations against the ChunkStore.
type AuditConfig struct {
	Enabled            bool       `yaml:"enabled"`
	MaxEvents          int        `yaml:"max_events"`
	RedactMetadataKeys []string   `yaml:"redact_metadata_keys"`
	Sink               SinkConfig `yaml:"sink"`
}

// Config is the root of the YAML document described in spec §6.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Audit   AuditConfig   `yaml:"audit"`
}

// Default returns the configuration spec §6 names as defaults.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			NominalChunkSize:          262144,
			MinChunkSize:              1025,
			WorkerCount:               0,
			VerifyPlaintextHashOnRead: true,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Audit: AuditConfig{
			Enabled:   false,
			MaxEvents: 10000,
			Sink:      SinkConfig{Type: "stdout"},
		},
	}
}

// Load reads and parses the YAML file at path, then applies SELFENCRYPT_*
// environment variable overrides on top of the file defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SELFENCRYPT_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.WorkerCount = n
		}
	}
	if v := os.Getenv("SELFENCRYPT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SELFENCRYPT_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SELFENCRYPT_S3_BUCKET"); v != "" {
		cfg.Store.S3.Bucket = v
	}
	if v := os.Getenv("SELFENCRYPT_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
}

// Validate rejects configurations the rest of the module cannot act on.
func (c Config) Validate() error {
	if c.Engine.NominalChunkSize <= 0 {
		return fmt.Errorf("config: engine.nominal_chunk_size must be positive")
	}
	if c.Engine.MinChunkSize <= 0 {
		return fmt.Errorf("config: engine.min_chunk_size must be positive")
	}
	if c.Engine.WorkerCount < 0 {
		return fmt.Errorf("config: engine.worker_count must not be negative")
	}
	switch c.Store.Backend {
	case "memory", "s3", "redis":
	default:
		return fmt.Errorf("config: store.backend %q is not one of memory, s3, redis", c.Store.Backend)
	}
	return nil
}

// Watcher holds the live configuration and reloads it from disk on change
// via fsnotify, so operators can retune logging level or worker_count
// without a restart.
type Watcher struct {
	path    string
	logger  *logrus.Entry
	watcher *fsnotify.Watcher
	current atomic.Pointer[Config]
	done    chan struct{}
}

// NewWatcher loads path once and starts watching it for changes. Callers
// must call Close when finished.
func NewWatcher(path string, logger *logrus.Entry) (*Watcher, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{path: path, logger: logger, done: make(chan struct{})}
	w.current.Store(&cfg)

	if path == "" {
		return w, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.watcher = fw

	go w.watchLoop()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() Config {
	return *w.current.Load()
}

// Close stops the background watch goroutine.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Editors frequently replace a file via rename+create rather
			// than an in-place write; fsnotify sometimes drops the watch on
			// the old inode when that happens, so re-add defensively.
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
				_ = w.watcher.Add(w.path)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("config reload failed, keeping previous configuration")
		return
	}

	prev := w.Current()
	if next.Engine.NominalChunkSize != prev.Engine.NominalChunkSize ||
		next.Engine.MinChunkSize != prev.Engine.MinChunkSize {
		w.logger.Warn("ignoring change to nominal_chunk_size/min_chunk_size: fixed for the lifetime of an open engine")
		next.Engine.NominalChunkSize = prev.Engine.NominalChunkSize
		next.Engine.MinChunkSize = prev.Engine.MinChunkSize
	}

	w.current.Store(&next)
	w.logger.WithFields(logrus.Fields{
		"worker_count": next.Engine.WorkerCount,
		"log_level":    next.Logging.Level,
	}).Info("configuration reloaded")
}
