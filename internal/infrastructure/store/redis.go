package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dealsheet/backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces price entries in shared backends
const KeyPrefix = "prices:"

// RedisStore implements domain.PriceStore on Redis. Entries are JSON values
// under KeyPrefix + title.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to the Redis instance at url, for example
// "redis://localhost:6379/0"
func NewRedisStore(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RedisStore{
		client: redis.NewClient(opts),
		ttl:    ttl,
	}, nil
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Upsert replaces the entry for productTitle
func (s *RedisStore) Upsert(ctx context.Context, productTitle string, entry domain.PriceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	return s.client.Set(ctx, KeyPrefix+productTitle, data, s.ttl).Err()
}

// Lookup returns the entry for productTitle or domain.ErrProductNotFound
func (s *RedisStore) Lookup(ctx context.Context, productTitle string) (*domain.PriceEntry, error) {
	data, err := s.client.Get(ctx, KeyPrefix+productTitle).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}

	var entry domain.PriceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &entry, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
