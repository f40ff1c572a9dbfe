// Ingest worker entry point for molstruct.  It consumes ingest requests
// from Kafka, parses the referenced objects from MinIO and stores the
// resulting molecules.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	appMol "github.com/turtacn/molstruct/internal/application/molecule"
	"github.com/turtacn/molstruct/internal/bootstrap"
	"github.com/turtacn/molstruct/internal/config"
	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	"github.com/turtacn/molstruct/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/prometheus"
	httpserver "github.com/turtacn/molstruct/internal/interfaces/http"
	"github.com/turtacn/molstruct/internal/interfaces/http/handlers"
	"github.com/turtacn/molstruct/internal/interfaces/worker"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka.enabled must be true to run the worker")
	}
	if !cfg.MinIO.Enabled {
		return fmt.Errorf("minio.enabled must be true to run the worker")
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("worker")
	logging.SetDefault(logger)

	logger.Info("starting worker",
		logging.String("version", Version),
		logging.String("commit", GitCommit),
		logging.Strings("topics", cfg.Kafka.Consumer.Topics),
		logging.String("group", cfg.Kafka.Consumer.GroupID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector, err := prometheus.NewMetricsCollector(cfg.Metrics, logger.Named("metrics"))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	infra, err := bootstrap.NewInfra(ctx, cfg, "molstruct-worker", logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	coord, err := cfg.Parser.NewCoordinator(parser.WithLogger(logger.Named("parser")), parser.WithObserver(metrics))
	if err != nil {
		return err
	}
	svc := appMol.NewService(infra.Repo, coord, logger.Named("molecule"), infra.ServiceOptions(metrics)...)

	consumer, err := kafka.NewConsumer(cfg.Kafka.Consumer, logger.Named("consumer"),
		kafka.WithRetryClassifier(worker.Retryable),
		kafka.WithDeadLetterPublisher(infra.Producer),
	)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	ingest := worker.NewIngestHandler(svc, logger.Named("ingest"))
	consumer.Subscribe(ingest.Topic(), worker.Instrument(ingest.Handle, metrics))

	routerCfg := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(Version, metrics, infra.Checkers...),
		Logger:        logger.Named("http"),
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	healthSrv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:         cfg.Worker.HealthAddr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, httpserver.NewRouter(routerCfg), logger.Named("http"))

	if err := consumer.Start(ctx); err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(healthSrv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := consumer.Close(); err != nil {
			logger.Warn("consumer close", logging.Err(err))
		}
		processed, failed, dead := consumer.Stats()
		logger.Info("consumer drained",
			logging.Int64("processed", processed),
			logging.Int64("failed", failed),
			logging.Int64("dead_lettered", dead))
		return healthSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", logging.Err(err))
		return err
	}
	logger.Info("worker stopped")
	return nil
}

//Personal.AI order the ending
