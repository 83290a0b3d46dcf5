package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"edgepay/internal/checkout/models"
	"edgepay/internal/dispatch"
	"edgepay/internal/payment"
	"edgepay/internal/pricing"
	rlmodels "edgepay/internal/ratelimit/models"
	rlservice "edgepay/internal/ratelimit/service"
	"edgepay/internal/risk"
	"edgepay/pkg/platform/middleware/metadata"
)

// Service runs the per-request payment intake pipeline: rate check, risk
// score, locale pricing, payment capture, analytics fan-out. Each stage's
// rejection short-circuits all later stages; rejected requests never reach
// the provider.
type Service struct {
	limiter         *rlservice.Limiter
	pricing         *pricing.Engine
	scorer          *risk.Scorer
	provider        payment.Provider
	broadcaster     *dispatch.Broadcaster
	errorSink       dispatch.ErrorSink
	dispatchTimeout time.Duration
	edgeLocation    string
	logger          *slog.Logger
	metrics         *Metrics
	tracer          trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEdgeLocation tags provider metadata with the deployment location when
// the platform does not inject one per request.
func WithEdgeLocation(location string) Option {
	return func(s *Service) {
		s.edgeLocation = location
	}
}

func New(
	limiter *rlservice.Limiter,
	pricingEngine *pricing.Engine,
	scorer *risk.Scorer,
	provider payment.Provider,
	broadcaster *dispatch.Broadcaster,
	errorSink dispatch.ErrorSink,
	dispatchTimeout time.Duration,
	opts ...Option,
) (*Service, error) {
	if limiter == nil {
		return nil, errors.New("limiter is required")
	}
	if pricingEngine == nil {
		return nil, errors.New("pricing engine is required")
	}
	if scorer == nil {
		return nil, errors.New("risk scorer is required")
	}
	if provider == nil {
		return nil, errors.New("payment provider is required")
	}
	if broadcaster == nil {
		return nil, errors.New("broadcaster is required")
	}
	if errorSink == nil {
		return nil, errors.New("error sink is required")
	}
	if dispatchTimeout <= 0 {
		return nil, errors.New("dispatch timeout must be positive")
	}

	s := &Service{
		limiter:         limiter,
		pricing:         pricingEngine,
		scorer:          scorer,
		provider:        provider,
		broadcaster:     broadcaster,
		errorSink:       errorSink,
		dispatchTimeout: dispatchTimeout,
		logger:          slog.Default(),
		tracer:          otel.Tracer("edgepay/internal/checkout"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Checkout executes the pipeline for one validated request. requestPath is
// carried into error events for the error sink.
func (s *Service) Checkout(ctx context.Context, req models.CheckoutRequest, meta metadata.ClientMeta, requestPath string) models.Outcome {
	ctx, span := s.tracer.Start(ctx, "checkout",
		trace.WithAttributes(
			attribute.String("client.country", meta.Country),
			attribute.String("product.id", req.ProductID),
		))
	defer span.End()

	rate := s.limiter.TryAcquire(ctx, meta.Identity, rlmodels.PurposePayment)
	if !rate.Allowed {
		return s.finish(span, models.RateLimited(rate))
	}

	assessment := s.scoreRisk(ctx, req, meta)
	if assessment.Score > s.scorer.RejectThreshold() {
		s.logger.Info("payment rejected by risk gate",
			"user_id", req.UserID,
			"score", assessment.Score,
			"flags", assessment.Flags,
		)
		return s.finish(span, models.RiskRejected(assessment.Score))
	}

	adjusted := s.pricing.AdjustedAmount(req.Amount, meta.Country)

	intent, err := s.capture(ctx, req, meta, adjusted, assessment.Score)
	if err != nil {
		s.logger.Error("payment capture failed", "user_id", req.UserID, "error", err)
		s.reportError(ctx, err, requestPath)
		return s.finish(span, models.Failed())
	}

	s.dispatchConversion(ctx, req, meta, adjusted, intent)

	return s.finish(span, models.Succeeded(intent.ClientSecret, adjusted, req.Currency))
}

// Quote prices an amount for the caller's locale without touching the
// payment provider. Backs the calculator preview.
func (s *Service) Quote(ctx context.Context, amount float64, currency string, meta metadata.ClientMeta) models.QuoteResponse {
	return models.QuoteResponse{
		Amount:   s.pricing.AdjustedAmount(amount, meta.Country),
		Currency: currency,
		Country:  meta.Country,
	}
}

func (s *Service) scoreRisk(ctx context.Context, req models.CheckoutRequest, meta metadata.ClientMeta) risk.Assessment {
	ctx, span := s.tracer.Start(ctx, "checkout.risk")
	defer span.End()

	assessment := s.scorer.Score(ctx, risk.Input{
		IP:      meta.Identity,
		Amount:  req.Amount,
		UserID:  req.UserID,
		Country: meta.Country,
	})
	span.SetAttributes(attribute.Float64("risk.score", assessment.Score))
	return assessment
}

func (s *Service) capture(ctx context.Context, req models.CheckoutRequest, meta metadata.ClientMeta, adjusted int64, score float64) (*payment.Intent, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.payment")
	defer span.End()

	edge := meta.EdgeLocation
	if edge == "" {
		edge = s.edgeLocation
	}

	start := time.Now()
	intent, err := s.provider.CreateIntent(ctx, payment.CaptureRequest{
		Amount:        adjusted,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		CustomerRef:   req.UserID,
		ProductID:     req.ProductID,
		Metadata: map[string]string{
			"country":       meta.Country,
			"region":        meta.Region,
			"risk_score":    strconv.FormatFloat(score, 'f', 4, 64),
			"edge_location": edge,
		},
	})
	if s.metrics != nil {
		s.metrics.ObservePaymentLatency(time.Since(start))
	}
	return intent, err
}

// dispatchConversion fans the conversion event out to every analytics sink.
// It runs on the critical path but bounded: the response is not finalized
// until all sinks settle or the dispatch timeout fires, and no sink result
// affects the request outcome.
func (s *Service) dispatchConversion(ctx context.Context, req models.CheckoutRequest, meta metadata.ClientMeta, adjusted int64, intent *payment.Intent) {
	ctx, span := s.tracer.Start(ctx, "checkout.dispatch")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	summary := s.broadcaster.Broadcast(ctx, dispatch.ConversionEvent{
		EventID:    uuid.NewString(),
		UserID:     req.UserID,
		Amount:     adjusted,
		Currency:   req.Currency,
		Country:    meta.Country,
		PaymentRef: intent.ID,
		OccurredAt: time.Now().UTC(),
	})
	span.SetAttributes(
		attribute.Int("dispatch.delivered", len(summary.Delivered)),
		attribute.Int("dispatch.failed", len(summary.Failed)),
	)
}

func (s *Service) reportError(ctx context.Context, err error, requestPath string) {
	ctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	reportErr := s.errorSink.Report(ctx, dispatch.ErrorEvent{
		Message:     err.Error(),
		RequestPath: requestPath,
		OccurredAt:  time.Now().UTC(),
	})
	if reportErr != nil {
		s.logger.Warn("error sink report failed", "error", reportErr)
	}
}

func (s *Service) finish(span trace.Span, outcome models.Outcome) models.Outcome {
	span.SetAttributes(attribute.String("checkout.outcome", outcome.Kind().String()))
	if s.metrics != nil {
		s.metrics.RecordOutcome(outcome.Kind().String())
	}
	return outcome
}
