package store

import (
	"context"
	"sync"
	"time"

	"edgepay/internal/ratelimit/models"
)

// InMemoryWindowStore implements sliding-window counting in process memory.
// Scope is one running edge instance: a client routed to N instances within
// one window can receive up to N times the nominal quota. That is an accepted
// consequence of keeping the edge path free of shared state, not a defect.
type InMemoryWindowStore struct {
	mu      sync.RWMutex
	buckets map[string]*slidingWindow
}

// slidingWindow tracks request timestamps for one bucket key. Entries older
// than the window are pruned before every count.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// NewInMemoryWindowStore creates a new in-memory window store.
func NewInMemoryWindowStore() *InMemoryWindowStore {
	return &InMemoryWindowStore{
		buckets: make(map[string]*slidingWindow),
	}
}

// Allow checks if a request is allowed and, only if so, records it. A bucket
// already at the limit denies without recording the attempt, so hammering a
// full bucket does not extend the lockout.
func (s *InMemoryWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sw := s.getOrCreateBucket(key, window)
	sw.cleanup(now)

	if len(sw.timestamps) >= limit {
		resetAt := now.Add(window)
		if len(sw.timestamps) > 0 {
			resetAt = sw.timestamps[0].Add(window)
		}
		return &models.Result{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)

	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Reset clears the counter for a key.
func (s *InMemoryWindowStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// CurrentCount returns the in-window request count for a key. It counts
// expired entries out instead of pruning them, so it only needs a read lock.
func (s *InMemoryWindowStore) CurrentCount(ctx context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sw := s.buckets[key]
	if sw == nil {
		return 0, nil
	}

	cutoff := time.Now().Add(-sw.window)
	count := 0
	for _, ts := range sw.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count, nil
}

// cleanup removes expired timestamps from a sliding window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// getOrCreateBucket returns an existing bucket or creates a new one.
// Must be called while holding s.mu lock.
func (s *InMemoryWindowStore) getOrCreateBucket(key string, window time.Duration) *slidingWindow {
	if sw := s.buckets[key]; sw != nil {
		return sw
	}
	sw := &slidingWindow{timestamps: []time.Time{}, window: window}
	s.buckets[key] = sw
	return sw
}
