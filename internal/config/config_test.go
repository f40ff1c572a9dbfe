package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/config"
	"github.com/turtacn/molstruct/pkg/errors"
)

// validConfig returns a defaulted Config that passes Validate.
func validConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Metrics.Enabled = true
	return cfg
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing http addr", func(c *config.Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"negative upload limit", func(c *config.Config) { c.Server.MaxUploadBytes = -1 }, "server.max_upload_bytes"},
		{"negative rate limit", func(c *config.Config) { c.Server.RateLimitRPS = -1 }, "server.rate_limit_rps"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"same engine names", func(c *config.Config) { c.Parser.FallbackEngine = c.Parser.PrimaryEngine }, "distinct"},
		{"unknown encoding", func(c *config.Config) { c.Parser.Encodings = []string{"ebcdic"} }, "parser.encodings"},
		{"unknown fallback encoding", func(c *config.Config) { c.Parser.FallbackEncodings = []string{"koi8"} }, "parser.fallback_encodings"},
		{"zero max atoms", func(c *config.Config) { c.Parser.MaxAtoms = 0 }, "parser.max_atoms"},
		{"unknown store", func(c *config.Config) { c.Store.Driver = "sqlite" }, "store.driver"},
		{"redis store without addr", func(c *config.Config) { c.Store.Driver = config.StoreRedis }, "redis address"},
		{"postgres store without host", func(c *config.Config) { c.Store.Driver = config.StorePostgres; c.Postgres.Host = "" }, "postgres.host"},
		{"neo4j store without uri", func(c *config.Config) { c.Store.Driver = config.StoreNeo4j; c.Neo4j.URI = "" }, "neo4j.uri"},
		{"cache without redis", func(c *config.Config) { c.Cache.Enabled = true }, "cache.enabled"},
		{"cache jitter", func(c *config.Config) { c.Cache.Enabled = true; c.Redis.Addr = "r:6379"; c.Cache.Jitter = 1.5 }, "cache.jitter"},
		{"minio without endpoint", func(c *config.Config) { c.MinIO.Enabled = true }, "minio.endpoint"},
		{"kafka without brokers", func(c *config.Config) { c.Kafka.Enabled = true; c.Kafka.Producer.Brokers = nil }, "kafka.producer"},
		{"metrics without namespace", func(c *config.Config) { c.Metrics.Namespace = "" }, "metrics.namespace"},
		{"breaker threshold", func(c *config.Config) { c.Breaker.FailureThreshold = 2 }, "breaker.failure_threshold"},
		{"search without index", func(c *config.Config) { c.Search.Enabled = true; c.Search.Index = "" }, "search: [COMMON_010] index is required"},
		{"auth without realm", func(c *config.Config) { c.Auth.Enabled = true; c.Auth.BaseURL = "https://sso"; c.Auth.ClientID = "api" }, "auth: realm is required"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Validate_StoreDrivers(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Store.Driver = config.StoreRedis
	cfg.Redis.Addr = "redis:6379"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Store.Driver = config.StorePostgres
	cfg.Postgres.Host = "db"
	cfg.Postgres.Database = "molstruct"
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Store.Driver = config.StoreNeo4j
	cfg.Neo4j.URI = "neo4j://graph:7687"
	assert.NoError(t, cfg.Validate())
}

func TestParserConfig_NewCoordinator(t *testing.T) {
	cfg := validConfig()
	coord, err := cfg.Parser.NewCoordinator()
	require.NoError(t, err)
	assert.Equal(t, []string{config.DefaultPrimaryEngine, config.DefaultFallbackEngine}, coord.Engines())

	s, err := coord.Parse([]byte("1\nlone\nC 0 0 0\n"), "xyz", "lone.xyz")
	require.NoError(t, err)
	assert.Equal(t, "C", s.Formula)

	cfg.Parser.FallbackEncodings = []string{"klingon"}
	_, err = cfg.Parser.NewCoordinator()
	assert.ErrorContains(t, err, "parser.fallback_encodings")
}

func TestParserConfig_NewCoordinatorEnforcesMaxAtoms(t *testing.T) {
	cfg := validConfig()
	cfg.Parser.MaxAtoms = 1
	coord, err := cfg.Parser.NewCoordinator()
	require.NoError(t, err)

	_, err = coord.Parse([]byte("2\npair\nC 0 0 0\nO 1.2 0 0\n"), "xyz", "pair.xyz")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMoleculeTooLarge))
}

//Personal.AI order the ending
