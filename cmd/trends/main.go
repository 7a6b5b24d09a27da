package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/epi-trends-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/epi-trends-service/internal/adapter/kafka"
	"github.com/couchcryptid/epi-trends-service/internal/adapter/sciensano"
	"github.com/couchcryptid/epi-trends-service/internal/config"
	"github.com/couchcryptid/epi-trends-service/internal/observability"
	"github.com/couchcryptid/epi-trends-service/internal/pipeline"
	"github.com/couchcryptid/epi-trends-service/internal/trend"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	reference, err := config.LoadReference(cfg.ReferenceFile)
	if err != nil {
		logger.Error("failed to load reference data", "error", err, "path", cfg.ReferenceFile)
		os.Exit(1)
	}

	client := sciensano.NewClient(cfg.SourceBaseURL, cfg.SourceTimeout, logger, metrics)
	source := sciensano.NewCachedSource(client, cfg.SourceMaxAge, clockwork.NewRealClock(), logger, metrics.SourceCacheLookup)

	detector := trend.NewDetector(cfg.PeakWindow, cfg.PeakCacheSize, trend.WithLookupHook(metrics.PeakLookup))
	reporter := pipeline.NewReporter(detector, reference, cfg.Regions, logger)

	// Publishing is feature-flagged via KAFKA_ENABLED; reports are always served over HTTP.
	var loader pipeline.BatchLoader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loader = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(source, reporter, loader, logger, metrics, cfg.RefreshInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
