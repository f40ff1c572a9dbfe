// Package bootstrap wires the infrastructure selected by configuration into
// the molecule service.  The API server and the ingest worker share it.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"

	appMol "github.com/turtacn/molstruct/internal/application/molecule"
	"github.com/turtacn/molstruct/internal/config"
	domainMol "github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/internal/infrastructure/database/memory"
	"github.com/turtacn/molstruct/internal/infrastructure/database/neo4j"
	"github.com/turtacn/molstruct/internal/infrastructure/database/postgres"
	"github.com/turtacn/molstruct/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/molstruct/internal/infrastructure/database/redis"
	"github.com/turtacn/molstruct/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/internal/infrastructure/search/opensearch"
	"github.com/turtacn/molstruct/internal/infrastructure/storage/minio"
	"github.com/turtacn/molstruct/internal/interfaces/http/handlers"
)

// Infra holds the clients one process needs.  Optional parts are nil when
// disabled.
type Infra struct {
	Repo      domainMol.Repository
	Cache     appMol.Cache
	Locker    appMol.Locker
	Archive   appMol.ObjectStore
	Publisher appMol.EventPublisher
	Search    appMol.SearchIndex
	Producer  *kafka.Producer
	Checkers  []handlers.HealthChecker

	cfg     *config.Config
	closers []func() error
	logger  logging.Logger
}

// NewInfra connects everything cfg enables.  On error the parts already
// opened are closed.
func NewInfra(ctx context.Context, cfg *config.Config, source string, logger logging.Logger) (*Infra, error) {
	in := &Infra{cfg: cfg, logger: logger}
	if err := in.init(ctx, source); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *Infra) init(ctx context.Context, source string) error {
	cfg := in.cfg

	var rc *redis.Client
	if cfg.Store.Driver == config.StoreRedis || cfg.Cache.Enabled {
		c, err := redis.NewClient(&cfg.Redis, in.logger.Named("redis"))
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		rc = c
		in.closers = append(in.closers, c.Close)
		in.Checkers = append(in.Checkers, handlers.CheckerFunc{ComponentName: "redis", Fn: c.HealthCheck})
		in.Locker = redis.NewLocker(c, in.logger.Named("lock"))
	}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		in.Repo = memory.NewMoleculeStore()
	case config.StoreRedis:
		in.Repo = redis.NewMoleculeStore(rc, in.logger.Named("store"))
	case config.StorePostgres:
		conn, err := postgres.NewConnection(cfg.Postgres, in.logger.Named("postgres"))
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		in.closers = append(in.closers, conn.Close)
		in.Checkers = append(in.Checkers, handlers.CheckerFunc{ComponentName: "postgres", Fn: conn.HealthCheck})
		if err := postgres.NewMigrator(conn, in.logger.Named("migrate")).Up(); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		in.Repo = repositories.NewPostgresMoleculeRepo(conn, in.logger.Named("store"))
	case config.StoreNeo4j:
		drv, err := neo4j.NewDriver(ctx, cfg.Neo4j, in.logger.Named("neo4j"))
		if err != nil {
			return fmt.Errorf("neo4j: %w", err)
		}
		in.closers = append(in.closers, drv.Close)
		in.Checkers = append(in.Checkers, handlers.CheckerFunc{ComponentName: "neo4j", Fn: drv.HealthCheck})
		graph := neo4j.NewMoleculeGraph(drv, in.logger.Named("store"))
		if err := graph.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("neo4j schema: %w", err)
		}
		in.Repo = graph
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Cache.Enabled {
		in.Cache = redis.NewRedisCache(rc, in.logger.Named("cache"),
			redis.WithPrefix(cfg.Cache.Prefix),
			redis.WithDefaultTTL(cfg.Cache.TTL),
			redis.WithTTLJitter(cfg.Cache.Jitter),
		)
	}

	if cfg.MinIO.Enabled {
		mc, err := minio.NewMinIOClient(&cfg.MinIO.MinIOConfig, in.logger.Named("minio"))
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		in.closers = append(in.closers, mc.Close)
		in.Checkers = append(in.Checkers, handlers.CheckerFunc{ComponentName: "minio", Fn: func(ctx context.Context) error {
			st, err := mc.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !st.Healthy {
				return fmt.Errorf("minio unhealthy: %s", st.Error)
			}
			return nil
		}})
		in.Archive = minio.NewUploadArchive(mc, in.logger.Named("archive"))
	}

	if cfg.Search.Enabled {
		sc, err := opensearch.NewClient(ctx, cfg.Search, in.logger.Named("opensearch"))
		if err != nil {
			return fmt.Errorf("opensearch: %w", err)
		}
		in.closers = append(in.closers, sc.Close)
		in.Checkers = append(in.Checkers, handlers.CheckerFunc{ComponentName: "opensearch", Fn: sc.Ping})
		idx := opensearch.NewMoleculeIndex(sc, cfg.Search, in.logger.Named("search"))
		if err := idx.Ensure(ctx); err != nil {
			return fmt.Errorf("opensearch index %q: %w", idx.Name(), err)
		}
		in.Search = idx
	}

	if cfg.Kafka.Enabled {
		if cfg.Kafka.AutoCreateTopics {
			tm, err := kafka.NewTopicManager(cfg.Kafka.Producer.Brokers, cfg.Kafka.Producer.SecurityConfig, in.logger.Named("topics"))
			if err != nil {
				return fmt.Errorf("kafka topics: %w", err)
			}
			err = tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor))
			_ = tm.Close()
			if err != nil {
				return fmt.Errorf("kafka topics: %w", err)
			}
		}
		p, err := kafka.NewProducer(cfg.Kafka.Producer, in.logger.Named("producer"))
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		in.Producer = p
		in.closers = append(in.closers, p.Close)
		pub := kafka.NewEventPublisher(p, cfg.Kafka.EventsTopic, source, cfg.Breaker, in.logger.Named("events"))
		in.Publisher = pub
		in.Checkers = append(in.Checkers, handlers.CheckerFunc{ComponentName: "kafka", Fn: func(context.Context) error {
			if pub.State() == gobreaker.StateOpen {
				return fmt.Errorf("event publisher circuit open")
			}
			return nil
		}})
	}
	return nil
}

// ServiceOptions returns the molecule service options for the enabled parts.
func (in *Infra) ServiceOptions(metrics appMol.Metrics) []appMol.Option {
	opts := []appMol.Option{
		appMol.WithLimits(in.cfg.Server.MaxUploadBytes, in.cfg.Parser.MaxAtoms),
	}
	if in.Cache != nil {
		opts = append(opts, appMol.WithCache(in.Cache, in.cfg.Cache.TTL))
	}
	if in.Locker != nil {
		opts = append(opts, appMol.WithLocker(in.Locker))
	}
	if in.Archive != nil {
		opts = append(opts, appMol.WithObjectStore(in.Archive))
	}
	if in.Publisher != nil {
		opts = append(opts, appMol.WithPublisher(in.Publisher))
	}
	if in.Search != nil {
		opts = append(opts, appMol.WithSearchIndex(in.Search))
	}
	if metrics != nil {
		opts = append(opts, appMol.WithMetrics(metrics))
	}
	return opts
}

// CheckAll runs every health checker and returns the first failure.
func (in *Infra) CheckAll(ctx context.Context) error {
	for _, c := range in.Checkers {
		if err := c.Check(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
	}
	return nil
}

// Close releases clients in reverse order of creation.
func (in *Infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](); err != nil {
			in.logger.Warn("close failed", logging.Err(err))
		}
	}
	in.closers = nil
}

//Personal.AI order the ending
