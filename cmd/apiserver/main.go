// API server entry point for molstruct.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	appMol "github.com/turtacn/molstruct/internal/application/molecule"
	"github.com/turtacn/molstruct/internal/bootstrap"
	"github.com/turtacn/molstruct/internal/config"
	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	"github.com/turtacn/molstruct/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/prometheus"
	grpcserver "github.com/turtacn/molstruct/internal/interfaces/grpc"
	httpserver "github.com/turtacn/molstruct/internal/interfaces/http"
	"github.com/turtacn/molstruct/internal/interfaces/http/handlers"
	"github.com/turtacn/molstruct/internal/interfaces/http/middleware"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

const readinessInterval = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (environment only when empty)")
	watch := flag.Bool("watch", true, "reload the log level when the configuration file changes")
	flag.Parse()

	if err := run(*configPath, *watch); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, watch bool) error {
	cfg, err := config.LoadOrEnv(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("apiserver")
	logging.SetDefault(logger)

	logger.Info("starting apiserver",
		logging.String("version", Version),
		logging.String("commit", GitCommit),
		logging.String("store", cfg.Store.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch && configPath != "" {
		startConfigWatch(ctx, configPath, logger)
	}

	collector, err := prometheus.NewMetricsCollector(cfg.Metrics, logger.Named("metrics"))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metrics := prometheus.NewAppMetrics(collector)

	infra, err := bootstrap.NewInfra(ctx, cfg, "molstruct-apiserver", logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	coord, err := cfg.Parser.NewCoordinator(parser.WithLogger(logger.Named("parser")), parser.WithObserver(metrics))
	if err != nil {
		return err
	}
	svc := appMol.NewService(infra.Repo, coord, logger.Named("molecule"), infra.ServiceOptions(metrics)...)

	checkers := infra.Checkers
	routerCfg := httpserver.RouterConfig{
		MoleculeHandler: handlers.NewMoleculeHandler(svc, logger.Named("http"), cfg.Server.MaxUploadBytes),
		FormatHandler:   handlers.NewFormatHandler(),
		Logging:         middleware.DefaultLoggingConfig(),
		Logger:          logger.Named("http"),
		Metrics:         metrics,
	}
	if cfg.Auth.Enabled {
		kc, err := keycloak.NewClient(cfg.Auth, logger.Named("auth"))
		if err != nil {
			return fmt.Errorf("keycloak: %w", err)
		}
		defer kc.Close()
		checkers = append(checkers, handlers.CheckerFunc{ComponentName: "keycloak", Fn: kc.Health})
		routerCfg.Auth = keycloak.NewAuthMiddleware(kc, logger.Named("auth"))
		routerCfg.RBAC = keycloak.NewEnforcer(nil, logger.Named("rbac"))
	}
	routerCfg.HealthHandler = handlers.NewHealthHandler(Version, metrics, checkers...)
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)
		routerCfg.CORS = &cors
	}
	if cfg.Server.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
		limiter := middleware.NewTokenBucketLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.CleanupInterval)
		defer limiter.Stop()
		routerCfg.RateLimiter = limiter
		routerCfg.RateLimit = rl
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	httpSrv := httpserver.NewServer(httpserver.ServerConfig{
		Addr:         cfg.Server.HTTPAddr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, httpserver.NewRouter(routerCfg), logger.Named("http"))

	grpcSrv, err := grpcserver.NewServer(cfg.Server.GRPCHealthAddr,
		grpcserver.WithLogger(logger.Named("grpc")),
		grpcserver.WithReflection(),
	)
	if err != nil {
		return fmt.Errorf("grpc health server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.ListenAndServe)
	g.Go(grpcSrv.Start)
	g.Go(func() error {
		grpcSrv.TrackReadiness(gctx, readinessInterval, infra.CheckAll)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := grpcSrv.Stop(shutdownCtx); err != nil {
			logger.Warn("grpc stop", logging.Err(err))
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("apiserver stopped with error", logging.Err(err))
		return err
	}
	logger.Info("apiserver stopped")
	return nil
}

// startConfigWatch applies log level changes from the configuration file
// without a restart.  Other settings need a restart to take effect.
func startConfigWatch(ctx context.Context, path string, logger logging.Logger) {
	setter, ok := logger.(logging.LevelSetter)
	if !ok {
		return
	}
	err := config.Watch(ctx, path, func(c *config.Config) {
		level, err := logging.ParseLevel(string(c.Log.Level))
		if err != nil {
			logger.Warn("ignoring invalid log level", logging.String("level", c.Log.Level.String()))
			return
		}
		setter.SetLevel(level)
		logger.Info("log level reloaded", logging.String("level", level.String()))
	}, func(err error) {
		logger.Warn("configuration reload rejected", logging.Err(err))
	})
	if err != nil {
		logger.Warn("configuration watch disabled", logging.Err(err))
	}
}

//Personal.AI order the ending
