package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgepay/internal/platform/config"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		FlaggedIPWeight:   0.3,
		AmountTierOne:     1000,
		AmountTierOneRisk: 0.2,
		AmountTierTwo:     5000,
		AmountTierTwoRisk: 0.4,
		DefaultUserRisk:   0.1,
		HighRiskCountries: []string{"XX"},
		HighRiskWeight:    0.3,
		RejectThreshold:   0.8,
		LookupTimeout:     100 * time.Millisecond,
	}
}

type stubReputation struct {
	flagged bool
	err     error
	delay   time.Duration
	calls   int
}

func (s *stubReputation) IsFlagged(ctx context.Context, ip string) (bool, error) {
	s.calls++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.flagged, s.err
}

type stubUserRisk struct {
	value float64
	found bool
	err   error
	delay time.Duration
}

func (s *stubUserRisk) RiskFor(ctx context.Context, userID string) (float64, bool, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.value, s.found, s.err
}

func newTestScorer(t *testing.T, rep ReputationChecker, users UserRiskStore) *Scorer {
	t.Helper()
	s, err := NewScorer(testRiskConfig(), rep, users)
	require.NoError(t, err)
	return s
}

func TestScore_EndToEndScenario(t *testing.T) {
	// amount=6000, country=US, default user risk, clean IP:
	// 0 + 0.2 (>1000) + 0.4 (>5000) + 0.1 (user default) + 0 (country) = 0.7
	s := newTestScorer(t, &stubReputation{}, &stubUserRisk{})

	a := s.Score(context.Background(), Input{
		IP:      "203.0.113.7",
		Amount:  6000,
		UserID:  "user-1",
		Country: "US",
	})
	assert.InDelta(t, 0.7, a.Score, 1e-9)
	assert.Contains(t, a.Flags, "amount_tier_one")
	assert.Contains(t, a.Flags, "amount_tier_two")
	assert.Contains(t, a.Flags, "user_history")
}

func TestScore_ClampsAtOne(t *testing.T) {
	// 0.3 + 0.2 + 0.4 + 0.1 + 0.3 = 1.3, clamped to exactly 1.0.
	s := newTestScorer(t, &stubReputation{flagged: true}, &stubUserRisk{})

	a := s.Score(context.Background(), Input{
		IP:      "203.0.113.7",
		Amount:  9000,
		UserID:  "user-1",
		Country: "XX",
	})
	assert.Equal(t, 1.0, a.Score)
}

func TestScore_AmountTiersStack(t *testing.T) {
	s := newTestScorer(t, &stubReputation{}, &stubUserRisk{})

	a := s.Score(context.Background(), Input{Amount: 1500, UserID: "u", Country: "US"})
	assert.InDelta(t, 0.3, a.Score, 1e-9) // 0.2 tier one + 0.1 user default

	a = s.Score(context.Background(), Input{Amount: 500, UserID: "u", Country: "US"})
	assert.InDelta(t, 0.1, a.Score, 1e-9) // user default only
}

func TestScore_UserHistoryOverridesDefault(t *testing.T) {
	s := newTestScorer(t, &stubReputation{}, &stubUserRisk{value: 0.45, found: true})

	a := s.Score(context.Background(), Input{Amount: 100, UserID: "risky", Country: "US"})
	assert.InDelta(t, 0.45, a.Score, 1e-9)
}

func TestScore_ReputationFailureIsZeroRisk(t *testing.T) {
	s := newTestScorer(t, &stubReputation{flagged: true, err: errors.New("backend down")}, &stubUserRisk{})

	a := s.Score(context.Background(), Input{Amount: 100, UserID: "u", Country: "US"})
	assert.InDelta(t, 0.1, a.Score, 1e-9)
	assert.NotContains(t, a.Flags, "flagged_ip")
}

func TestScore_SlowLookupsFailOpen(t *testing.T) {
	cfg := testRiskConfig()
	cfg.LookupTimeout = 20 * time.Millisecond

	s, err := NewScorer(cfg,
		&stubReputation{flagged: true, delay: 200 * time.Millisecond},
		&stubUserRisk{value: 0.9, found: true, delay: 200 * time.Millisecond},
	)
	require.NoError(t, err)

	start := time.Now()
	a := s.Score(context.Background(), Input{Amount: 100, UserID: "u", Country: "US"})
	elapsed := time.Since(start)

	assert.Zero(t, a.Score)
	assert.Less(t, elapsed, 150*time.Millisecond, "score must not wait out slow lookups")
}

func TestScore_BreakerStopsConsultingDeadReputation(t *testing.T) {
	cfg := testRiskConfig()
	cfg.BreakerCooldown = 50 * time.Millisecond

	rep := &stubReputation{err: errors.New("backend down")}
	s, err := NewScorer(cfg, rep, &stubUserRisk{})
	require.NoError(t, err)

	// Default breaker opens after five consecutive failures.
	for range 5 {
		s.Score(context.Background(), Input{Amount: 100, UserID: "u", Country: "US"})
	}
	require.Equal(t, 5, rep.calls)

	// Backend is healthy again, but within the cooldown: not consulted.
	rep.err = nil
	rep.flagged = true
	a := s.Score(context.Background(), Input{Amount: 100, UserID: "u", Country: "US"})
	assert.Equal(t, 5, rep.calls)
	assert.NotContains(t, a.Flags, "flagged_ip")
}

func TestScore_BreakerRecoversAfterCooldown(t *testing.T) {
	cfg := testRiskConfig()
	cfg.BreakerCooldown = 20 * time.Millisecond

	rep := &stubReputation{err: errors.New("backend down")}
	s, err := NewScorer(cfg, rep, &stubUserRisk{})
	require.NoError(t, err)

	for range 5 {
		s.Score(context.Background(), Input{Amount: 100, UserID: "u", Country: "US"})
	}
	require.Equal(t, 5, rep.calls)

	rep.err = nil
	rep.flagged = true
	time.Sleep(30 * time.Millisecond)

	// Cooldown elapsed: the probe consults the backend, the success closes
	// the breaker, and the flagged-IP contribution is back for good.
	a := s.Score(context.Background(), Input{IP: "203.0.113.66", Amount: 100, UserID: "u", Country: "US"})
	assert.Equal(t, 6, rep.calls)
	assert.Contains(t, a.Flags, "flagged_ip")
	assert.InDelta(t, 0.4, a.Score, 1e-9) // 0.3 flagged + 0.1 user default

	a = s.Score(context.Background(), Input{IP: "203.0.113.66", Amount: 100, UserID: "u", Country: "US"})
	assert.Equal(t, 7, rep.calls)
	assert.Contains(t, a.Flags, "flagged_ip")
}

func TestScore_HighRiskCountry(t *testing.T) {
	s := newTestScorer(t, &stubReputation{}, &stubUserRisk{})

	a := s.Score(context.Background(), Input{Amount: 100, UserID: "u", Country: "XX"})
	assert.InDelta(t, 0.4, a.Score, 1e-9) // 0.3 country + 0.1 user default
	assert.Contains(t, a.Flags, "high_risk_country")
}

func TestNewScorer_Validation(t *testing.T) {
	_, err := NewScorer(testRiskConfig(), nil, &stubUserRisk{})
	assert.Error(t, err)

	_, err = NewScorer(testRiskConfig(), &stubReputation{}, nil)
	assert.Error(t, err)

	cfg := testRiskConfig()
	cfg.LookupTimeout = 0
	_, err = NewScorer(cfg, &stubReputation{}, &stubUserRisk{})
	assert.Error(t, err)
}

func TestInMemoryUserRiskStore(t *testing.T) {
	store := NewInMemoryUserRiskStore(map[string]float64{"seeded": 0.6})

	v, found, err := store.RiskFor(context.Background(), "seeded")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0.6, v)

	_, found, err = store.RiskFor(context.Background(), "fresh")
	require.NoError(t, err)
	assert.False(t, found)

	store.Record("fresh", 0.25)
	v, found, err = store.RiskFor(context.Background(), "fresh")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0.25, v)
}

func TestStaticReputationList(t *testing.T) {
	list := NewStaticReputationList([]string{"203.0.113.66", " 203.0.113.67 "})

	flagged, err := list.IsFlagged(context.Background(), "203.0.113.66")
	require.NoError(t, err)
	assert.True(t, flagged)

	flagged, err = list.IsFlagged(context.Background(), "203.0.113.67")
	require.NoError(t, err)
	assert.True(t, flagged)

	flagged, err = list.IsFlagged(context.Background(), "198.51.100.1")
	require.NoError(t, err)
	assert.False(t, flagged)
}
