package risk

import (
	"context"
	"sync"

	stringsutil "edgepay/pkg/platform/strings"
)

// InMemoryUserRiskStore holds per-user historical risk in process memory,
// optionally seeded from configuration. Scoped to one edge instance like the
// rate-limit window store.
type InMemoryUserRiskStore struct {
	mu    sync.RWMutex
	users map[string]float64
}

// NewInMemoryUserRiskStore creates a store seeded with the given values.
func NewInMemoryUserRiskStore(seed map[string]float64) *InMemoryUserRiskStore {
	users := make(map[string]float64, len(seed))
	for id, v := range seed {
		users[id] = v
	}
	return &InMemoryUserRiskStore{users: users}
}

func (s *InMemoryUserRiskStore) RiskFor(ctx context.Context, userID string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.users[userID]
	return v, ok, nil
}

// Record sets a user's historical risk value.
func (s *InMemoryUserRiskStore) Record(userID string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = value
}

// StaticReputationList is an in-memory ReputationChecker backed by a fixed
// set of flagged IPs. Used when Redis is not configured, and in tests.
type StaticReputationList struct {
	flagged map[string]struct{}
}

func NewStaticReputationList(ips []string) *StaticReputationList {
	normalized := stringsutil.DedupeAndTrim(ips)
	flagged := make(map[string]struct{}, len(normalized))
	for _, ip := range normalized {
		flagged[ip] = struct{}{}
	}
	return &StaticReputationList{flagged: flagged}
}

func (l *StaticReputationList) IsFlagged(ctx context.Context, ip string) (bool, error) {
	_, ok := l.flagged[ip]
	return ok, nil
}
