package risk

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"edgepay/internal/platform/config"
	"edgepay/pkg/platform/circuit"
	stringsutil "edgepay/pkg/platform/strings"
)

// ReputationChecker reports whether an IP sits on a deny-set. Implementations
// may be remote (Redis) and slow; the scorer bounds every call.
type ReputationChecker interface {
	IsFlagged(ctx context.Context, ip string) (bool, error)
}

// UserRiskStore looks up accumulated historical risk for a user. The second
// return value reports whether any history exists.
type UserRiskStore interface {
	RiskFor(ctx context.Context, userID string) (float64, bool, error)
}

// Input carries everything the scorer consumes. Amount is the base (pre
// locale adjustment) amount from the request.
type Input struct {
	IP      string
	Amount  float64
	UserID  string
	Country string
}

// Assessment is the scoring result. Score is always within [0, 1]. Flags
// name the contributions that fired, for logs and the error sink.
type Assessment struct {
	Score float64
	Flags []string
}

// Scorer computes a fraud-risk score as the clamped sum of independent
// contributions. Reputation and user-risk lookups are bounded by
// cfg.LookupTimeout and fail open: a dead lookup backend contributes zero
// risk instead of stalling or erroring the request. The reputation source is
// additionally behind a circuit breaker so a dead backend stops being
// consulted at all until the cooldown admits a probe again.
type Scorer struct {
	cfg        config.RiskConfig
	reputation ReputationChecker
	users      UserRiskStore
	breaker    *circuit.Breaker
	highRisk   map[string]struct{}
	logger     *slog.Logger
	metrics    *Metrics
}

type Option func(*Scorer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Scorer) {
		s.metrics = m
	}
}

func NewScorer(cfg config.RiskConfig, reputation ReputationChecker, users UserRiskStore, opts ...Option) (*Scorer, error) {
	if reputation == nil {
		return nil, errors.New("reputation checker is required")
	}
	if users == nil {
		return nil, errors.New("user risk store is required")
	}
	if cfg.LookupTimeout <= 0 {
		return nil, errors.New("lookup timeout must be positive")
	}

	countries := stringsutil.DedupeAndTrimUpper(cfg.HighRiskCountries)
	highRisk := make(map[string]struct{}, len(countries))
	for _, c := range countries {
		highRisk[c] = struct{}{}
	}

	var breakerOpts []circuit.Option
	if cfg.BreakerCooldown > 0 {
		breakerOpts = append(breakerOpts, circuit.WithCooldown(cfg.BreakerCooldown))
	}

	s := &Scorer{
		cfg:        cfg,
		reputation: reputation,
		users:      users,
		breaker:    circuit.New("ip_reputation", breakerOpts...),
		highRisk:   highRisk,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Score computes the risk assessment for one request. It never fails.
func (s *Scorer) Score(ctx context.Context, in Input) Assessment {
	var a Assessment

	if s.ipFlagged(ctx, in.IP) {
		a.Score += s.cfg.FlaggedIPWeight
		a.Flags = append(a.Flags, "flagged_ip")
	}

	// Amount tiers stack: a very large amount trips both.
	if in.Amount > float64(s.cfg.AmountTierOne) {
		a.Score += s.cfg.AmountTierOneRisk
		a.Flags = append(a.Flags, "amount_tier_one")
	}
	if in.Amount > float64(s.cfg.AmountTierTwo) {
		a.Score += s.cfg.AmountTierTwoRisk
		a.Flags = append(a.Flags, "amount_tier_two")
	}

	if user := s.userRisk(ctx, in.UserID); user > 0 {
		a.Score += user
		a.Flags = append(a.Flags, "user_history")
	}

	if _, ok := s.highRisk[in.Country]; ok {
		a.Score += s.cfg.HighRiskWeight
		a.Flags = append(a.Flags, "high_risk_country")
	}

	a.Score = clamp(a.Score)

	if s.metrics != nil {
		s.metrics.ObserveScore(a.Score)
	}
	return a
}

// RejectThreshold exposes the gate value; a score STRICTLY above it rejects.
func (s *Scorer) RejectThreshold() float64 {
	return s.cfg.RejectThreshold
}

func (s *Scorer) ipFlagged(ctx context.Context, ip string) bool {
	if s.breaker.IsOpen() {
		if s.metrics != nil {
			s.metrics.RecordLookupSkipped("reputation")
		}
		return false
	}

	flagged, err := boundedLookup(ctx, s.cfg.LookupTimeout, func(ctx context.Context) (bool, error) {
		return s.reputation.IsFlagged(ctx, ip)
	})
	if err != nil {
		s.breaker.RecordFailure()
		if s.metrics != nil {
			s.metrics.RecordLookupFailure("reputation")
		}
		s.logger.Warn("ip reputation lookup failed, treating as clean", "error", err)
		return false
	}
	s.breaker.RecordSuccess()
	return flagged
}

func (s *Scorer) userRisk(ctx context.Context, userID string) float64 {
	type riskResult struct {
		value float64
		found bool
	}
	res, err := boundedLookup(ctx, s.cfg.LookupTimeout, func(ctx context.Context) (riskResult, error) {
		v, found, err := s.users.RiskFor(ctx, userID)
		return riskResult{value: v, found: found}, err
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordLookupFailure("user_risk")
		}
		s.logger.Warn("user risk lookup failed, treating as no additional risk", "error", err)
		return 0
	}
	if !res.found {
		return s.cfg.DefaultUserRisk
	}
	return res.value
}

// boundedLookup runs fn with a deadline, returning context.DeadlineExceeded
// if it overruns. The goroutine holds a buffered channel so a straggler can
// still complete and be collected.
func boundedLookup[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
