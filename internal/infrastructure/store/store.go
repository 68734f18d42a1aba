package store

import (
	"context"
	"fmt"

	"github.com/dealsheet/backend/config"
	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/logger"
)

// PriceStore is a domain.PriceStore holding a backend connection
type PriceStore interface {
	domain.PriceStore
	Close() error
}

// Open creates the store selected by cfg.Type and checks that its backend
// answers.
func Open(ctx context.Context, cfg config.StoreConfig) (PriceStore, error) {
	log := logger.ForStore()

	switch cfg.Type {
	case "", "memory":
		log.Info().Str("type", "memory").Dur("ttl", cfg.TTL).Msg("Price store opened")
		return NewMemoryStore(cfg.TTL), nil

	case "redis":
		store, err := NewRedisStore(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			log.Error().Err(err).Str("type", "redis").Msg("Price store did not answer ping")
			return nil, fmt.Errorf("%w: redis: %v", domain.ErrStoreUnavailable, err)
		}
		log.Info().Str("type", "redis").Dur("ttl", cfg.TTL).Msg("Price store opened")
		return store, nil

	case "memcache":
		store := NewMemcacheStore(cfg.TTL, cfg.MemcacheAddr)
		if err := store.Ping(ctx); err != nil {
			log.Error().Err(err).Str("type", "memcache").Str("addr", cfg.MemcacheAddr).Msg("Price store did not answer ping")
			return nil, fmt.Errorf("%w: memcache: %v", domain.ErrStoreUnavailable, err)
		}
		log.Info().Str("type", "memcache").Str("addr", cfg.MemcacheAddr).Dur("ttl", cfg.TTL).Msg("Price store opened")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
