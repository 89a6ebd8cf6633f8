package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/clinic-reports/internal/platform/cache"
	"github.com/odyssey-erp/clinic-reports/internal/platform/db"
	"github.com/odyssey-erp/clinic-reports/internal/records"
)

// RecordStore is the record source selected by configuration.
type RecordStore struct {
	Source records.Source
	Kind   string
	Check  ReadinessCheck
	close  func()
}

// Close releases the underlying pool, if any.
func (s *RecordStore) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// OpenRecordStore prefers the snapshot file and falls back to Postgres.
func OpenRecordStore(ctx context.Context, cfg *Config, logger *slog.Logger) (*RecordStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config required")
	}
	if cfg.SnapshotPath != "" {
		path := cfg.SnapshotPath
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("app: snapshot file: %w", err)
		}
		if logger != nil {
			logger.Info("using snapshot file", slog.String("path", path))
		}
		return &RecordStore{
			Source: records.NewFileSource(path),
			Kind:   "snapshot",
			Check: func(ctx context.Context) error {
				_, err := os.Stat(path)
				return err
			},
		}, nil
	}
	pool, err := db.New(ctx, db.Options{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns, MaxConnLifetime: 30 * time.Minute})
	if err != nil {
		return nil, err
	}
	return &RecordStore{
		Source: records.NewRepository(pool),
		Kind:   "postgres",
		Check:  pool.Ping,
		close:  pool.Close,
	}, nil
}

// OpenRedis connects the report cache client.
func OpenRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	return cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
}

// AsynqRedisOpt maps the Redis settings onto asynq's connection options.
func (c *Config) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
