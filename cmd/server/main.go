package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"

	"edgepay/internal/checkout"
	"edgepay/internal/dispatch"
	"edgepay/internal/payment"
	"edgepay/internal/platform/config"
	"edgepay/internal/platform/httpserver"
	"edgepay/internal/platform/logger"
	platformredis "edgepay/internal/platform/redis"
	"edgepay/internal/pricing"
	rlmetrics "edgepay/internal/ratelimit/metrics"
	rlmw "edgepay/internal/ratelimit/middleware"
	rlmodels "edgepay/internal/ratelimit/models"
	rlservice "edgepay/internal/ratelimit/service"
	"edgepay/internal/ratelimit/store"
	"edgepay/internal/risk"
	"edgepay/pkg/platform/middleware/metadata"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging.Level)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	limiter, err := rlservice.New(store.NewInMemoryWindowStore(), map[rlmodels.Purpose]rlservice.Window{
		rlmodels.PurposePayment: {
			Window:      cfg.RateLimit.Payment.Window,
			MaxRequests: cfg.RateLimit.Payment.MaxRequests,
		},
		rlmodels.PurposeQuote: {
			Window:      cfg.RateLimit.Quote.Window,
			MaxRequests: cfg.RateLimit.Quote.MaxRequests,
		},
	}, rlservice.WithLogger(log), rlservice.WithMetrics(rlmetrics.New()))
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	engine, err := pricing.New(cfg.Pricing)
	if err != nil {
		return fmt.Errorf("build pricing engine: %w", err)
	}

	// The IP reputation check prefers the shared Redis deny-set; without
	// Redis we fall back to the statically configured list.
	var reputation risk.ReputationChecker
	if redisClient != nil {
		reputation = risk.NewRedisReputationStore(redisClient.Client, cfg.Risk.DenySetKey)
		log.Info("ip reputation backed by redis", "set", cfg.Risk.DenySetKey)
	} else {
		reputation = risk.NewStaticReputationList(cfg.Risk.FlaggedIPs)
		log.Info("ip reputation backed by static list", "entries", len(cfg.Risk.FlaggedIPs))
	}

	scorer, err := risk.NewScorer(cfg.Risk, reputation,
		risk.NewInMemoryUserRiskStore(cfg.Risk.SeedUserRisk),
		risk.WithLogger(log), risk.WithMetrics(risk.NewMetrics()))
	if err != nil {
		return fmt.Errorf("build risk scorer: %w", err)
	}

	provider := payment.NewHTTPProvider(cfg.Provider)

	dispatchMetrics := dispatch.NewMetrics()
	sinks, errorSink, closeSinks, err := buildSinks(cfg.Dispatch, dispatchMetrics, log)
	if err != nil {
		return fmt.Errorf("build sinks: %w", err)
	}
	defer closeSinks()

	broadcaster := dispatch.NewBroadcaster(sinks, cfg.Dispatch.SinkTimeout,
		dispatch.WithLogger(log), dispatch.WithMetrics(dispatchMetrics))

	svc, err := checkout.New(limiter, engine, scorer, provider, broadcaster, errorSink,
		cfg.Dispatch.Timeout,
		checkout.WithLogger(log),
		checkout.WithMetrics(checkout.NewMetrics()),
		checkout.WithEdgeLocation(cfg.Server.EdgeLocation))
	if err != nil {
		return fmt.Errorf("build checkout service: %w", err)
	}

	router := newRouter(svc, limiter, redisClient, log)
	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr, "edge_location", cfg.Server.EdgeLocation)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newRouter(svc *checkout.Service, limiter *rlservice.Limiter, redisClient *platformredis.Client, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(metadata.ClientMetadata)

	checkout.NewHandler(svc, log).Register(r, rlmw.New(limiter, log))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintln(w, "redis unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// buildSinks assembles the analytics fan-out from configuration. The log
// sink is always present so conversions remain observable on a bare deploy.
func buildSinks(cfg config.DispatchConfig, metrics *dispatch.Metrics, log *slog.Logger) ([]dispatch.Sink, dispatch.ErrorSink, func(), error) {
	sinks := []dispatch.Sink{dispatch.NewLogSink(log)}
	closeFn := func() {}

	if len(cfg.KafkaSeeds) > 0 {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.KafkaSeeds...),
			kgo.DefaultProduceTopic(cfg.KafkaTopic),
			kgo.ProducerLinger(5*time.Millisecond),
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("kafka client: %w", err)
		}
		sinks = append(sinks, dispatch.NewKafkaSink(kafkaClient, cfg.KafkaTopic))
		closeFn = kafkaClient.Close
	}

	httpClient := &http.Client{Timeout: cfg.SinkTimeout}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, dispatch.NewWebhookSink(cfg.WebhookURL, httpClient))
	}

	var errorSink dispatch.ErrorSink
	if cfg.ErrorURL != "" {
		errorSink = dispatch.NewWebhookErrorSink(cfg.ErrorURL, httpClient, metrics)
	} else {
		errorSink = dispatch.NewLogErrorSink(log, metrics)
	}

	return sinks, errorSink, closeFn, nil
}
