package dispatch

import (
	"context"
	"log/slog"
)

// LogSink writes conversion events to the structured log. Always configured:
// the edge log pipeline doubles as a last-resort analytics trail when the
// real collectors are down.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Deliver(ctx context.Context, event ConversionEvent) error {
	s.logger.Info("conversion",
		"event_id", event.EventID,
		"user_id", event.UserID,
		"amount", event.Amount,
		"currency", event.Currency,
		"country", event.Country,
		"payment_ref", event.PaymentRef,
	)
	return nil
}

// LogErrorSink is the fallback ErrorSink when no error collector is
// configured.
type LogErrorSink struct {
	logger  *slog.Logger
	metrics *Metrics
}

func NewLogErrorSink(logger *slog.Logger, metrics *Metrics) *LogErrorSink {
	return &LogErrorSink{logger: logger, metrics: metrics}
}

func (s *LogErrorSink) Report(ctx context.Context, event ErrorEvent) error {
	if s.metrics != nil {
		s.metrics.RecordErrorReport()
	}
	s.logger.Error("payment failure",
		"message", event.Message,
		"request_path", event.RequestPath,
		"occurred_at", event.OccurredAt,
	)
	return nil
}
