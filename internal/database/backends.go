package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/config"
	"github.com/stemsi/exstem-kiosk/internal/store"
)

// Backends holds the store selected by STORE_BACKEND and the connections it
// was built on. Redis is nil unless the redis backend is in use.
type Backends struct {
	Store store.Store
	Redis *redis.Client
	Pool  *pgxpool.Pool
}

// Open connects the configured backend.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backends, error) {
	if err := store.ValidateBackend(cfg.StoreBackend); err != nil {
		return nil, err
	}

	b := &Backends{}
	switch cfg.StoreBackend {
	case store.BackendRedis:
		rdb, err := NewRedisClient(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.Redis = rdb
		b.Store = store.NewRedis(rdb, cfg.RedisKeyPrefix)

	case store.BackendPostgres:
		if cfg.AutoMigrate {
			if err := MigrateUp(cfg.DatabaseURL, log); err != nil {
				return nil, err
			}
		}
		pool, err := NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.Pool = pool
		b.Store = store.NewPostgres(pool)

	default:
		b.Store = store.NewMemory()
	}

	log.Info().Str("backend", cfg.StoreBackend).Msg("Store ready")
	return b, nil
}

// Close releases every connection.
func (b *Backends) Close() {
	_ = b.Store.Close()
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// Ping checks the connection behind the store. The memory store always
// answers.
func (b *Backends) Ping(ctx context.Context) error {
	if b.Redis != nil {
		if err := b.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if b.Pool != nil {
		if err := b.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}
