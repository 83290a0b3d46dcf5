package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sink receives conversion events. Delivery is best effort: a sink error is
// logged and counted but never affects another sink or the request outcome.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event ConversionEvent) error
}

// ErrorSink receives payment failure events, independently of the analytics
// sinks.
type ErrorSink interface {
	Report(ctx context.Context, event ErrorEvent) error
}

// Summary reports how one broadcast went, for logging.
type Summary struct {
	Delivered []string
	Failed    map[string]error
}

// Ok reports whether every sink accepted the event.
func (s Summary) Ok() bool {
	return len(s.Failed) == 0
}

// Broadcaster fans one event out to every configured sink concurrently and
// waits for all of them to settle, bounded by the per-sink timeout. It never
// returns an error to the caller; payment success is defined by capture
// alone.
type Broadcaster struct {
	sinks       []Sink
	sinkTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

type BroadcasterOption func(*Broadcaster)

func WithLogger(logger *slog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		b.logger = logger
	}
}

func WithMetrics(m *Metrics) BroadcasterOption {
	return func(b *Broadcaster) {
		b.metrics = m
	}
}

func NewBroadcaster(sinks []Sink, sinkTimeout time.Duration, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Broadcast delivers the event to all sinks and returns the settlement
// summary. Sink goroutines always return nil into the group; failures land
// in the summary instead, so one failed sink never cancels the others.
func (b *Broadcaster) Broadcast(ctx context.Context, event ConversionEvent) Summary {
	summary := Summary{Failed: make(map[string]error)}
	if len(b.sinks) == 0 {
		return summary
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, sink := range b.sinks {
		g.Go(func() error {
			sinkCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
			defer cancel()

			start := time.Now()
			err := sink.Deliver(sinkCtx, event)
			if b.metrics != nil {
				b.metrics.ObserveDelivery(sink.Name(), time.Since(start), err == nil)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed[sink.Name()] = err
			} else {
				summary.Delivered = append(summary.Delivered, sink.Name())
			}
			return nil
		})
	}
	_ = g.Wait()

	if !summary.Ok() {
		for name, err := range summary.Failed {
			b.logger.Warn("analytics sink delivery failed",
				"sink", name,
				"event_id", event.EventID,
				"error", err,
			)
		}
	}
	return summary
}
