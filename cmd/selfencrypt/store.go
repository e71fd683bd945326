package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maidsafe-archive/selfencrypt-go/internal/audit"
	"github.com/maidsafe-archive/selfencrypt-go/internal/chunker"
	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore/memstore"
	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore/redisstore"
	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore/s3store"
	"github.com/maidsafe-archive/selfencrypt-go/internal/config"
	"github.com/maidsafe-archive/selfencrypt-go/internal/engine"
)

// buildStore constructs the chunkstore.Store named by cfg.Backend.
func buildStore(ctx context.Context, cfg config.StoreConfig) (chunkstore.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "s3":
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			KeyPrefix: cfg.S3.KeyPrefix,
			PathStyle: cfg.S3.PathStyle,
		})
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.New(client, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// engineConfigFrom translates the loaded YAML configuration into an
// engine.Config, wiring an audit.Logger when cfg.Audit.Enabled.
func engineConfigFrom(cfg config.Config) engine.Config {
	ec := engine.Config{
		Chunker: chunker.Config{
			NominalChunkSize: cfg.Engine.NominalChunkSize,
			MinChunkSize:     cfg.Engine.MinChunkSize,
		},
		WorkerCount:               cfg.Engine.WorkerCount,
		VerifyPlaintextHashOnRead: cfg.Engine.VerifyPlaintextHashOnRead,
		StoreBackendName:          cfg.Store.Backend,
	}
	if cfg.Audit.Enabled {
		if logger, err := audit.NewLoggerFromConfig(cfg.Audit); err == nil {
			ec.Audit = logger
		}
	}
	return ec
}
