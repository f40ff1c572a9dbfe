package config

import (
	"time"

	"github.com/turtacn/molstruct/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultHTTPAddr        = ":8080"
	DefaultGRPCHealthAddr  = ":9090"
	DefaultWorkerHealth    = ":8081"
	DefaultMaxUploadBytes  = 10 << 20
	DefaultShutdownTimeout = 15 * time.Second

	DefaultPrimaryEngine  = "strict"
	DefaultFallbackEngine = "tolerant"
	DefaultTabWidth       = 8
	DefaultMaxAtoms       = 100000

	DefaultStoreDriver = StoreMemory
	DefaultCacheTTL    = time.Hour
	DefaultCachePrefix = "molstruct:"

	DefaultRedisAddr     = "localhost:6379"
	DefaultKafkaBroker   = "localhost:9092"
	DefaultConsumerGroup = "molstruct-worker"

	DefaultNeo4jURI = "neo4j://localhost:7687"

	DefaultSearchAddr  = "http://localhost:9200"
	DefaultSearchIndex = "molecules"

	DefaultMetricsNamespace = "molstruct"
	DefaultMetricsPath      = "/metrics"
)

// DefaultFallbackEncodings widens the fallback engine to Windows-1252 and
// UTF-16 files that the primary rejects.
var DefaultFallbackEncodings = []string{"utf-8", "utf-16", "windows-1252", "latin-1"}

// ApplyDefaults fills every zero-value field in cfg with its default.
// Explicitly configured values are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Server.GRPCHealthAddr == "" {
		cfg.Server.GRPCHealthAddr = DefaultGRPCHealthAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 2 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = int(cfg.Server.RateLimitRPS) * 2
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = logging.LevelInfo
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	// ── Parser ────────────────────────────────────────────────────────────────
	if cfg.Parser.PrimaryEngine == "" {
		cfg.Parser.PrimaryEngine = DefaultPrimaryEngine
	}
	if cfg.Parser.FallbackEngine == "" {
		cfg.Parser.FallbackEngine = DefaultFallbackEngine
	}
	if len(cfg.Parser.FallbackEncodings) == 0 {
		cfg.Parser.FallbackEncodings = append([]string(nil), DefaultFallbackEncodings...)
	}
	if cfg.Parser.FallbackTabWidth == 0 {
		cfg.Parser.FallbackTabWidth = DefaultTabWidth
	}
	if cfg.Parser.MaxAtoms == 0 {
		cfg.Parser.MaxAtoms = DefaultMaxAtoms
	}

	// ── Store / cache ─────────────────────────────────────────────────────────
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultStoreDriver
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = DefaultCachePrefix
	}
	if cfg.Redis.Addr == "" && (cfg.Store.Driver == StoreRedis || cfg.Cache.Enabled) {
		cfg.Redis.Addr = DefaultRedisAddr
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}

	// ── Neo4j ─────────────────────────────────────────────────────────────────
	if cfg.Neo4j.URI == "" && cfg.Store.Driver == StoreNeo4j {
		cfg.Neo4j.URI = DefaultNeo4jURI
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
	if cfg.Neo4j.ConnectTimeout == 0 {
		cfg.Neo4j.ConnectTimeout = 10 * time.Second
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if cfg.Kafka.EventsTopic == "" {
		cfg.Kafka.EventsTopic = kafka.TopicMoleculeEvents
	}
	if cfg.Kafka.Partitions == 0 {
		cfg.Kafka.Partitions = 3
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = 1
	}
	if len(cfg.Kafka.Producer.Brokers) == 0 {
		cfg.Kafka.Producer.Brokers = []string{DefaultKafkaBroker}
	}
	if len(cfg.Kafka.Consumer.Brokers) == 0 {
		cfg.Kafka.Consumer.Brokers = cfg.Kafka.Producer.Brokers
	}
	if cfg.Kafka.Consumer.GroupID == "" {
		cfg.Kafka.Consumer.GroupID = DefaultConsumerGroup
	}
	if len(cfg.Kafka.Consumer.Topics) == 0 {
		cfg.Kafka.Consumer.Topics = []string{kafka.TopicIngestRequested}
	}
	if cfg.Kafka.Consumer.Retry.DeadLetterTopic == "" {
		cfg.Kafka.Consumer.Retry.DeadLetterTopic = kafka.TopicIngestDeadLetter
	}
	if cfg.Kafka.Consumer.SecurityConfig == (kafka.SecurityConfig{}) {
		cfg.Kafka.Consumer.SecurityConfig = cfg.Kafka.Producer.SecurityConfig
	}

	// ── Search ────────────────────────────────────────────────────────────────
	if len(cfg.Search.Addresses) == 0 {
		cfg.Search.Addresses = []string{DefaultSearchAddr}
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = DefaultSearchIndex
	}
	if cfg.Search.Shards == 0 {
		cfg.Search.Shards = 1
	}
	if cfg.Search.MaxRetries == 0 {
		cfg.Search.MaxRetries = 3
	}
	if cfg.Search.RetryBackoff == 0 {
		cfg.Search.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.Search.RequestTimeout == 0 {
		cfg.Search.RequestTimeout = 10 * time.Second
	}

	// ── Metrics / breaker / worker ────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Breaker == (kafka.BreakerConfig{}) {
		cfg.Breaker = kafka.DefaultBreakerConfig()
	}
	if cfg.Worker.HealthAddr == "" {
		cfg.Worker.HealthAddr = DefaultWorkerHealth
	}
}

//Personal.AI order the ending
