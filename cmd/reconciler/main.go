package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridgewatch/internal/application"
	"bridgewatch/internal/config"
	"bridgewatch/internal/infrastructure/kafka"
	"bridgewatch/internal/infrastructure/logging"
	"bridgewatch/internal/infrastructure/storage"
	"bridgewatch/internal/infrastructure/telemetry"
	"bridgewatch/internal/interfaces/httpapi"
	"bridgewatch/internal/reconcile"
	"bridgewatch/internal/stake"

	"golang.org/x/sync/errgroup"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		Service:    "bridgewatch-reconciler",
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "bridgewatch-reconciler", version, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	repo, err := storage.Open(cfg)
	if err != nil {
		logger.Error("db error", "driver", cfg.DBDriver, "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	reports, err := application.NewReportService(repo, storage.OpenReportCache(cfg.RedisAddr, cfg.ReportCacheTTL))
	if err != nil {
		logger.Error("report service error", "err", err)
		os.Exit(1)
	}

	metrics := httpapi.NewMetrics()
	options := reconcile.Options{RequireNetworkMatch: cfg.StrictFlow}

	var alerts application.AlertPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
			AlertTopic:  cfg.AlertTopic,
		})
		if err != nil {
			logger.Error("kafka producer error", "err", err)
			os.Exit(1)
		}
		defer producer.Close()
		alerts = producer
	} else {
		logger.Warn("KAFKA_BROKERS empty: stream ingestion and fraud alerts disabled")
	}

	watcher, err := application.NewWatcher(repo, reports, alerts, metrics, logger.With("component", "watcher"), application.WatcherConfig{
		Bridges:  cfg.Bridges,
		Interval: cfg.ReconcileInterval,
		Options:  options,
	})
	if err != nil {
		logger.Error("watcher error", "err", err)
		os.Exit(1)
	}

	httpServer, err := httpapi.NewServer(repo, reports, metrics, logger.With("component", "http"), httpapi.ServerConfig{
		Options:    options,
		Calculator: stake.Calculator{Coefficient: cfg.CounterstakeCoef},
		RateLimit:  cfg.ReconcileRate,
	}, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		logger.Error("http server error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		return httpServer.ListenAndServe(ctx, cfg.HTTPAddr)
	})
	group.Go(func() error {
		logger.Info("watcher started", "bridges", len(cfg.Bridges), "interval", cfg.ReconcileInterval)
		return watcher.Run(ctx)
	})

	if len(cfg.KafkaBrokers) > 0 {
		reader, err := kafka.NewReader(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topics:  []string{cfg.ClaimsTopic(), cfg.TransfersTopic()},
		})
		if err != nil {
			logger.Error("kafka reader error", "err", err)
			os.Exit(1)
		}
		defer reader.Close()

		c := newConsumer(reader, repo, metrics, logger.With("component", "consumer"))
		group.Go(func() error {
			logger.Info("snapshot streaming started",
				"topics", []string{cfg.ClaimsTopic(), cfg.TransfersTopic()},
				"group", cfg.KafkaGroupID,
			)
			return c.run(ctx)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("reconciler stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("reconciler stopped")
}
