// Package cache suppresses duplicate task deliveries. Each accepted
// (task, round, nonce) triple is remembered for a day; a second
// delivery inside that window is acknowledged without re-processing.
// Redis backs the store when configured, with an in-memory fallback
// for single-instance deployments.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ggokuldas06/tds-project1/internal/logging"
)

// DefaultTTL is how long a delivery is remembered.
const DefaultTTL = 24 * time.Hour

// Store records task deliveries. MarkSeen reports whether this is the
// first delivery of the triple; it fails open, so a store error still
// returns true and the task is processed (possibly twice) rather than
// dropped. Forget releases a claimed triple so a delivery that could
// not be enqueued is not remembered as handled.
type Store interface {
	MarkSeen(ctx context.Context, task string, round int, nonce string) (bool, error)
	Forget(ctx context.Context, task string, round int, nonce string) error
	Close() error
}

// NewStore selects the backing store. A non-empty redisURL is tried
// first; if the connection fails the in-memory store is used instead.
func NewStore(redisURL string, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if redisURL != "" {
		store, err := NewRedisStore(redisURL, ttl)
		if err == nil {
			return store
		}
		logging.L().Warn("Redis unavailable, using in-memory replay suppression", zap.Error(err))
	}
	return NewMemoryStore(ttl)
}

func dedupeKey(task string, round int, nonce string) string {
	return fmt.Sprintf("dedupe:%s:%d:%s", task, round, nonce)
}

// MemoryStore keeps seen deliveries in a map with expiry times. A
// background sweep drops stale entries.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	quit    chan struct{}
}

// NewMemoryStore creates an in-memory store and starts its sweep loop.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		quit:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// MarkSeen records the delivery and reports whether it was new.
func (s *MemoryStore) MarkSeen(ctx context.Context, task string, round int, nonce string) (bool, error) {
	key := dedupeKey(task, round, nonce)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.entries[key] = now.Add(s.ttl)
	return true, nil
}

// Forget drops the delivery record so the triple counts as new again.
func (s *MemoryStore) Forget(ctx context.Context, task string, round int, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, dedupeKey(task, round, nonce))
	return nil
}

// Close stops the sweep loop.
func (s *MemoryStore) Close() error {
	close(s.quit)
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.quit:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.entries {
		if now.After(expiry) {
			delete(s.entries, key)
		}
	}
}
