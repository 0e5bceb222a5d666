package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/storm-lightning-bursts/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-lightning-bursts/internal/adapter/export"
	"github.com/couchcryptid/storm-lightning-bursts/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/storm-lightning-bursts/internal/adapter/kafka"
	"github.com/couchcryptid/storm-lightning-bursts/internal/analysis"
	"github.com/couchcryptid/storm-lightning-bursts/internal/config"
	"github.com/couchcryptid/storm-lightning-bursts/internal/observability"
	"github.com/couchcryptid/storm-lightning-bursts/internal/pipeline"
)

type source interface {
	pipeline.BatchExtractor
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	runner, err := analysis.NewRunner(cfg.Plan, logger)
	if err != nil {
		logger.Error("invalid analysis plan", "error", err)
		os.Exit(1)
	}

	var src source
	switch cfg.InputSource {
	case config.InputKafka:
		src = kafkaadapter.NewReader(cfg, logger)
	default:
		src, err = csvfile.Open(cfg.InputPath, logger)
		if err != nil {
			logger.Error("failed to open input", "error", err)
			os.Exit(1)
		}
	}

	loaders := []pipeline.ReportLoader{export.NewWriter(cfg.OutputDir, logger)}
	var publisher *kafkaadapter.Writer
	if cfg.KafkaPublishEnabled {
		publisher = kafkaadapter.NewWriter(cfg, metrics, logger)
		loaders = append(loaders, publisher)
	}

	p := pipeline.New(src, pipeline.NewTransformer(), runner, loaders, logger, metrics, pipeline.Options{
		BatchSize:   cfg.BatchSize,
		SkipInvalid: cfg.SkipInvalidRecords,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	exitCode := 0
	if _, err := p.Run(ctx); err != nil {
		logger.Error("pipeline error", "error", err)
		exitCode = 1
	} else if cfg.ServeAfterRun {
		logger.Info("serving report until shutdown", "addr", cfg.HTTPAddr)
		<-ctx.Done()
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if err := src.Close(); err != nil {
		logger.Error("source close error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if exitCode != 0 {
		stop()
		cancel()
		os.Exit(exitCode)
	}
}
