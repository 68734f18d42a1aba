package store

import (
	"context"
	"sync"
	"time"

	"github.com/dealsheet/backend/internal/domain"
)

// memoryItem is a stored entry with its expiration. A zero expiration never
// expires.
type memoryItem struct {
	Entry      domain.PriceEntry
	Expiration time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.Expiration.IsZero() && now.After(i.Expiration)
}

// MemoryStore is a thread-safe in-memory price store with optional TTL
type MemoryStore struct {
	data  map[string]memoryItem
	mutex sync.RWMutex
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates an in-memory store. Entries expire after ttl; a zero
// ttl keeps them until the process exits.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	store := &MemoryStore{
		data: make(map[string]memoryItem),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	if ttl > 0 {
		// Remove expired entries every 10 minutes
		go store.cleanupExpired(10 * time.Minute)
	}

	return store
}

// Upsert replaces the entry for productTitle
func (s *MemoryStore) Upsert(ctx context.Context, productTitle string, entry domain.PriceEntry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item := memoryItem{Entry: copyEntry(entry)}
	if s.ttl > 0 {
		item.Expiration = s.now().Add(s.ttl)
	}
	s.data[productTitle] = item

	return nil
}

// Lookup returns the entry for productTitle or domain.ErrProductNotFound
func (s *MemoryStore) Lookup(ctx context.Context, productTitle string) (*domain.PriceEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, exists := s.data[productTitle]
	if !exists || item.expired(s.now()) {
		return nil, domain.ErrProductNotFound
	}

	entry := copyEntry(item.Entry)
	return &entry, nil
}

// Close stops the cleanup goroutine
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for key, item := range s.data {
		if item.expired(now) {
			delete(s.data, key)
		}
	}
}

// copyEntry detaches the price pointer so callers cannot mutate stored state
func copyEntry(entry domain.PriceEntry) domain.PriceEntry {
	if entry.WowDealPrice != nil {
		price := *entry.WowDealPrice
		entry.WowDealPrice = &price
	}
	return entry
}
