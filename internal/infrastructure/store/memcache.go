package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/dealsheet/backend/internal/domain"
)

// maxRelativeExpiration is the longest expiration memcached treats as
// relative; larger values are read as a unix timestamp.
const maxRelativeExpiration = 30 * 24 * time.Hour

// MemcacheStore implements domain.PriceStore on memcached
type MemcacheStore struct {
	client *memcache.Client
	ttl    time.Duration
}

// NewMemcacheStore creates a store for the memcached servers at addrs
func NewMemcacheStore(ttl time.Duration, addrs ...string) *MemcacheStore {
	return &MemcacheStore{
		client: memcache.New(addrs...),
		ttl:    ttl,
	}
}

// Ping checks that every server is reachable
func (s *MemcacheStore) Ping(ctx context.Context) error {
	return s.client.Ping()
}

// Upsert replaces the entry for productTitle
func (s *MemcacheStore) Upsert(ctx context.Context, productTitle string, entry domain.PriceEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	return s.client.Set(&memcache.Item{
		Key:        memcacheKey(productTitle),
		Value:      data,
		Expiration: expirationSeconds(s.ttl),
	})
}

// Lookup returns the entry for productTitle or domain.ErrProductNotFound
func (s *MemcacheStore) Lookup(ctx context.Context, productTitle string) (*domain.PriceEntry, error) {
	item, err := s.client.Get(memcacheKey(productTitle))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}

	var entry domain.PriceEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &entry, nil
}

// Close is a no-op; the client's idle connections are dropped with it
func (s *MemcacheStore) Close() error {
	return nil
}

// memcacheKey builds the item key. Titles memcached would reject (too long,
// spaces or control characters) are replaced by their sha256.
func memcacheKey(productTitle string) string {
	key := KeyPrefix + productTitle
	if len(key) <= 250 && strings.IndexFunc(key, func(r rune) bool { return r <= ' ' || r == 0x7f }) < 0 {
		return key
	}
	sum := sha256.Sum256([]byte(productTitle))
	return KeyPrefix + "sha256:" + hex.EncodeToString(sum[:])
}

func expirationSeconds(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > maxRelativeExpiration {
		ttl = maxRelativeExpiration
	}
	return int32(ttl.Seconds())
}
