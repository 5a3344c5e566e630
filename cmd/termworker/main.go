// Command termworker runs the term-generation service.
//
// It consumes document events from the documents topic, preprocesses each
// document into stemmed terms and publishes the result to the terms topic.
// Redis caching and PostgreSQL status tracking are enabled from config.
// Liveness and readiness probes are served at /health/live and
// /health/ready, Prometheus metrics at /metrics on the metrics port.
//
// Usage:
//
//	go run ./cmd/termworker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/linguistics"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess/cache"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/worker"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("term worker failed", "error", err)
		os.Exit(1)
	}
}

// run wires the worker and blocks until the consumer stops. Startup errors
// are returned so deferred cleanup runs before the process exits.
func run(cfg *config.Config) error {
	provider := linguistics.NewBleveProvider()
	if err := cfg.Validate(provider.Languages()); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting term worker",
		"documents_topic", cfg.Kafka.Topics.Documents,
		"terms_topic", cfg.Kafka.Topics.Terms,
		"group", cfg.Kafka.ConsumerGroup,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, m)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	p := preprocess.New(provider, preprocess.WithMetrics(m))

	var termCache *cache.TermCache
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, cfg.Redis, cache.KeyPrefix)
		if err != nil {
			slog.Warn("redis unavailable, running without term cache", "error", err)
		} else {
			defer client.Close()
			termCache = cache.New(client, cfg.Redis, cache.WithMetrics(m))
			checker.Register("redis", health.OptionalPingCheck(client))
			checker.Register("term-cache-circuit", health.CircuitCheck(termCache.CircuitState))
			slog.Info("term cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	opts := []worker.Option{
		worker.WithMaxTextBytes(cfg.Preprocess.MaxTextBytes),
		worker.WithMetrics(m),
	}
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		checker.Register("postgres", health.PingCheck(db))
		opts = append(opts, worker.WithStatusRecorder(postgres.NewStatusStore(db.DB)))
		slog.Info("connected to postgres")
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Terms)
	defer producer.Close()

	w := worker.New(cache.NewCached(termCache, p), producer, opts...)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.Documents, w.HandleMessage())

	mux := http.NewServeMux()
	checker.Mount(mux)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		slog.Info("health server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("health server shutdown error", "error", err)
	}
	slog.Info("term worker stopped")
	return nil
}
