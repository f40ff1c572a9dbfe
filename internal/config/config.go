// Package config defines the configuration of the molstruct binaries.  The
// types here are plain data plus validation; loading lives in loader.go.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	"github.com/turtacn/molstruct/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/molstruct/internal/infrastructure/database/neo4j"
	"github.com/turtacn/molstruct/internal/infrastructure/database/postgres"
	"github.com/turtacn/molstruct/internal/infrastructure/database/redis"
	"github.com/turtacn/molstruct/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molstruct/internal/infrastructure/search/opensearch"
	"github.com/turtacn/molstruct/internal/infrastructure/storage/minio"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	GRPCHealthAddr  string        `mapstructure:"grpc_health_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	// RateLimitRPS caps requests per client IP; 0 disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// ParserConfig selects the two parse engines.
type ParserConfig struct {
	PrimaryEngine     string   `mapstructure:"primary_engine"`
	FallbackEngine    string   `mapstructure:"fallback_engine"`
	Encodings         []string `mapstructure:"encodings"`
	FallbackEncodings []string `mapstructure:"fallback_encodings"`
	// FallbackTabWidth expands tabs before the fallback's fixed-column read.
	FallbackTabWidth int `mapstructure:"fallback_tab_width"`
	MaxAtoms         int `mapstructure:"max_atoms"`
}

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreNeo4j    = "neo4j"
)

// StoreConfig selects the molecule repository.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// CacheConfig controls the parse-result cache.  It needs redis.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Prefix  string        `mapstructure:"prefix"`
	Jitter  float64       `mapstructure:"jitter"`
}

// StorageConfig enables the upload archive.
type StorageConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	minio.MinIOConfig `mapstructure:",squash"`
}

// KafkaConfig enables event publishing and the ingest worker.
type KafkaConfig struct {
	Enabled           bool                 `mapstructure:"enabled"`
	EventsTopic       string               `mapstructure:"events_topic"`
	AutoCreateTopics  bool                 `mapstructure:"auto_create_topics"`
	Partitions        int                  `mapstructure:"partitions"`
	ReplicationFactor int                  `mapstructure:"replication_factor"`
	Producer          kafka.ProducerConfig `mapstructure:"producer"`
	Consumer          kafka.ConsumerConfig `mapstructure:"consumer"`
}

// WorkerConfig holds ingest worker settings.
type WorkerConfig struct {
	HealthAddr string `mapstructure:"health_addr"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration shared by apiserver, worker and CLI.
type Config struct {
	Server   ServerConfig               `mapstructure:"server"`
	Log      logging.LogConfig          `mapstructure:"log"`
	Parser   ParserConfig               `mapstructure:"parser"`
	Store    StoreConfig                `mapstructure:"store"`
	Cache    CacheConfig                `mapstructure:"cache"`
	Redis    redis.RedisConfig          `mapstructure:"redis"`
	Postgres postgres.PostgresConfig    `mapstructure:"postgres"`
	Neo4j    neo4j.Config               `mapstructure:"neo4j"`
	MinIO    StorageConfig              `mapstructure:"minio"`
	Kafka    KafkaConfig                `mapstructure:"kafka"`
	Metrics  prometheus.CollectorConfig `mapstructure:"metrics"`
	Breaker  kafka.BreakerConfig        `mapstructure:"breaker"`
	Worker   WorkerConfig               `mapstructure:"worker"`
	Auth     keycloak.Config            `mapstructure:"auth"`
	Search   opensearch.Config          `mapstructure:"search"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a defaulted Config and returns
// the first problem found.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: server.max_upload_bytes must be > 0, got %d", c.Server.MaxUploadBytes)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("config: server.rate_limit_rps must be >= 0")
	}

	if _, err := logging.ParseLevel(string(c.Log.Level)); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Parser.PrimaryEngine == "" || c.Parser.FallbackEngine == "" {
		return fmt.Errorf("config: parser.primary_engine and parser.fallback_engine are required")
	}
	if c.Parser.PrimaryEngine == c.Parser.FallbackEngine {
		return fmt.Errorf("config: parser engines must have distinct names, both are %q", c.Parser.PrimaryEngine)
	}
	if _, err := parser.NewDecoder(c.Parser.Encodings...); err != nil {
		return fmt.Errorf("config: parser.encodings: %w", err)
	}
	if _, err := parser.NewDecoder(c.Parser.FallbackEncodings...); err != nil {
		return fmt.Errorf("config: parser.fallback_encodings: %w", err)
	}
	if c.Parser.MaxAtoms <= 0 {
		return fmt.Errorf("config: parser.max_atoms must be > 0, got %d", c.Parser.MaxAtoms)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Addr == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
			return fmt.Errorf("config: redis address is required for store.driver=redis")
		}
	case StorePostgres:
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			return fmt.Errorf("config: postgres.host and postgres.database are required for store.driver=postgres")
		}
	case StoreNeo4j:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("config: neo4j.uri is required for store.driver=neo4j")
		}
	default:
		return fmt.Errorf("config: store.driver %q is invalid; expected memory|redis|postgres|neo4j", c.Store.Driver)
	}

	if c.Cache.Enabled {
		if c.Redis.Addr == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
			return fmt.Errorf("config: cache.enabled requires a redis address")
		}
		if c.Cache.Jitter < 0 || c.Cache.Jitter >= 1 {
			return fmt.Errorf("config: cache.jitter must be in [0, 1), got %v", c.Cache.Jitter)
		}
	}

	if c.MinIO.Enabled && c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required when minio.enabled")
	}

	if c.Kafka.Enabled {
		if err := kafka.ValidateProducerConfig(c.Kafka.Producer); err != nil {
			return fmt.Errorf("config: kafka.producer: %w", err)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required when metrics.enabled")
	}
	if c.Breaker.FailureThreshold < 0 || c.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("config: breaker.failure_threshold must be in [0, 1]")
	}
	if c.Auth.Enabled {
		if err := c.Auth.Validate(); err != nil {
			return fmt.Errorf("config: auth: %w", err)
		}
	}
	if c.Search.Enabled {
		if err := c.Search.Validate(); err != nil {
			return fmt.Errorf("config: search: %w", err)
		}
	}
	return nil
}

// NewCoordinator builds the primary/fallback pair described by the parser
// section.  The fallback engine gets the wider encoding list and tab expansion.
// Both engines stop reading once parser.max_atoms is exceeded.
func (p ParserConfig) NewCoordinator(opts ...parser.CoordinatorOption) (*parser.Coordinator, error) {
	primaryDec, err := parser.NewDecoder(p.Encodings...)
	if err != nil {
		return nil, fmt.Errorf("config: parser.encodings: %w", err)
	}
	fallbackDec, err := parser.NewDecoder(p.FallbackEncodings...)
	if err != nil {
		return nil, fmt.Errorf("config: parser.fallback_encodings: %w", err)
	}
	primary := parser.NewTextEngine(p.PrimaryEngine, primaryDec, parser.WithMaxAtoms(p.MaxAtoms))
	fallback := parser.NewTextEngine(p.FallbackEngine, fallbackDec,
		parser.WithTabExpansion(p.FallbackTabWidth), parser.WithMaxAtoms(p.MaxAtoms))
	return parser.NewCoordinator(primary, fallback, opts...), nil
}

//Personal.AI order the ending
