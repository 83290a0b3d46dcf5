package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"edgepay/internal/ratelimit/metrics"
	"edgepay/internal/ratelimit/models"
)

// WindowStore is the bucket persistence the limiter counts against.
type WindowStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
	Reset(ctx context.Context, key string) error
	CurrentCount(ctx context.Context, key string) (int, error)
}

// Window parameterises one limiter purpose.
type Window struct {
	Window      time.Duration
	MaxRequests int
}

// Limiter bounds request rates per client identity, with a distinct window
// configuration per purpose. It is an explicitly constructed instance, built
// once per process and injected where needed; there is no package-level state.
type Limiter struct {
	store   WindowStore
	windows map[models.Purpose]Window
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store WindowStore, windows map[models.Purpose]Window, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}
	if len(windows) == 0 {
		return nil, errors.New("at least one window configuration is required")
	}
	for purpose, w := range windows {
		if !purpose.IsValid() {
			return nil, errors.New("unknown limiter purpose: " + purpose.String())
		}
		if w.Window <= 0 || w.MaxRequests <= 0 {
			return nil, errors.New("window and max requests must be positive for purpose " + purpose.String())
		}
	}

	l := &Limiter{
		store:   store,
		windows: windows,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TryAcquire checks and consumes quota for one request. It never fails:
// an unconfigured purpose denies (default-deny), a store failure allows
// (fail-open, the gate is best-effort protection, not a correctness fence).
func (l *Limiter) TryAcquire(ctx context.Context, identity string, purpose models.Purpose) *models.Result {
	if l.metrics != nil {
		l.metrics.RecordCheck(purpose.String())
	}

	w, ok := l.windows[purpose]
	if !ok {
		l.logger.Error("rate limit config missing", "purpose", purpose)
		return &models.Result{
			Allowed:    false,
			ResetAt:    time.Now().Add(time.Minute),
			RetryAfter: 60,
		}
	}

	result, err := l.store.Allow(ctx, models.Key(purpose, identity), w.MaxRequests, w.Window)
	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordStoreError()
		}
		l.logger.Error("window store failure, allowing request", "purpose", purpose, "error", err)
		return &models.Result{
			Allowed:   true,
			Limit:     w.MaxRequests,
			Remaining: w.MaxRequests,
			ResetAt:   time.Now().Add(w.Window),
		}
	}

	if !result.Allowed {
		result.RetryAfter = retryAfterSeconds(result.ResetAt)
		if l.metrics != nil {
			l.metrics.RecordDenied(purpose.String())
		}
		l.logger.Info("rate limit exceeded",
			"purpose", purpose,
			"identity", identity,
			"limit", w.MaxRequests,
			"window_seconds", int(w.Window.Seconds()),
		)
	}

	return result
}

// retryAfterSeconds converts a reset time into a Retry-After value, rounded
// up so clients never retry early.
func retryAfterSeconds(resetAt time.Time) int {
	d := time.Until(resetAt)
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
