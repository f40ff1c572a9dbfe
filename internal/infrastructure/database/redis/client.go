// Package redis provides the Redis client wrapper, the parse-result cache,
// the Redis-backed molecule store and a distributed mutex used to serialise
// read-modify-write cycles on stored molecules.
package redis

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

var (
	ErrClientClosed     = errors.New(errors.ErrCodeInternal, "redis client is closed")
	ErrConnectionFailed = errors.New(errors.ErrCodeDatabaseError, "redis connection failed")
)

// Topologies accepted in RedisConfig.Mode.  An empty mode is inferred from
// the addresses that are set.
const (
	ModeStandalone = "standalone"
	ModeSentinel   = "sentinel"
	ModeCluster    = "cluster"
)

type RedisConfig struct {
	Mode            string        `mapstructure:"mode"`
	Addr            string        `mapstructure:"addr"`
	MasterName      string        `mapstructure:"master_name"`
	SentinelAddrs   []string      `mapstructure:"sentinel_addrs"`
	ClusterAddrs    []string      `mapstructure:"cluster_addrs"`
	Password        string        `mapstructure:"password"`
	Username        string        `mapstructure:"username"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	MaxIdleTime     time.Duration `mapstructure:"max_idle_time"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"`
	TLSCAFile       string        `mapstructure:"tls_ca_file"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// ResolvedMode returns the configured topology, inferring it when unset.
func (c *RedisConfig) ResolvedMode() string {
	switch {
	case c.Mode != "":
		return c.Mode
	case len(c.ClusterAddrs) > 0:
		return ModeCluster
	case c.MasterName != "" && len(c.SentinelAddrs) > 0:
		return ModeSentinel
	default:
		return ModeStandalone
	}
}

// Client is a go-redis universal client that fails every command with
// ErrClientClosed once Close has been called.
type Client struct {
	redis.UniversalClient
	mode   string
	logger logging.Logger
	closed atomic.Bool
}

// NewClient connects according to cfg and pings within the dial timeout.
func NewClient(cfg *RedisConfig, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	opts, err := universalOptions(cfg)
	if err != nil {
		return nil, err
	}

	mode := cfg.ResolvedMode()
	var rdb redis.UniversalClient
	switch mode {
	case ModeCluster:
		rdb = redis.NewClusterClient(opts.Cluster())
	case ModeSentinel:
		rdb = redis.NewFailoverClient(opts.Failover())
	case ModeStandalone:
		rdb = redis.NewClient(opts.Simple())
	default:
		return nil, errors.New(errors.ErrCodeValidation, "redis mode must be standalone, sentinel or cluster").WithDetail(mode)
	}

	c := wrap(rdb, mode, log)
	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := c.HealthCheck(ctx); err != nil {
		_ = rdb.Close()
		return nil, ErrConnectionFailed.WithCause(err)
	}

	log.Info("redis client connected", logging.String("mode", mode), logging.Strings("addrs", opts.Addrs))
	return c, nil
}

// NewClientFromUniversal wraps an existing client without pinging it.
func NewClientFromUniversal(rdb redis.UniversalClient, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return wrap(rdb, "", log)
}

func wrap(rdb redis.UniversalClient, mode string, log logging.Logger) *Client {
	c := &Client{UniversalClient: rdb, mode: mode, logger: log}
	rdb.AddHook(closeGuard{closed: &c.closed})
	return c
}

func universalOptions(cfg *RedisConfig) (*redis.UniversalOptions, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts := &redis.UniversalOptions{
		MasterName:      cfg.MasterName,
		Username:        cfg.Username,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		ConnMaxIdleTime: cfg.MaxIdleTime,
		PoolTimeout:     cfg.PoolTimeout,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		TLSConfig:       tlsConfig,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	}
	switch cfg.ResolvedMode() {
	case ModeCluster:
		opts.Addrs = cfg.ClusterAddrs
	case ModeSentinel:
		opts.Addrs = cfg.SentinelAddrs
	default:
		opts.Addrs = []string{cfg.Addr}
	}

	if opts.PoolSize == 0 {
		opts.PoolSize = 10 * runtime.GOMAXPROCS(0)
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = 2
	}
	if opts.ConnMaxIdleTime == 0 {
		opts.ConnMaxIdleTime = 5 * time.Minute
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = opts.ReadTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return opts, nil
}

func buildTLSConfig(cfg *RedisConfig) (*tls.Config, error) {
	if !cfg.TLSEnabled {
		return nil, nil
	}
	tc := &tls.Config{InsecureSkipVerify: cfg.TLSInsecure, MinVersion: tls.VersionTLS12}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("redis tls keypair: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("redis tls ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("redis tls ca: no certificates in %s", cfg.TLSCAFile)
		}
		tc.RootCAs = pool
	}
	return tc, nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.UniversalClient.Ping(ctx).Err()
}

// Mode reports the topology the client was built for; empty when wrapped.
func (c *Client) Mode() string { return c.mode }

// Close closes the pool once; later commands fail with ErrClientClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.UniversalClient.Close(); err != nil {
		c.logger.Error("failed to close redis client", logging.Err(err))
		return err
	}
	c.logger.Info("redis client closed")
	return nil
}

// closeGuard short-circuits commands issued after Close.
type closeGuard struct{ closed *atomic.Bool }

func (g closeGuard) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if g.closed.Load() {
			return nil, ErrClientClosed
		}
		return next(ctx, network, addr)
	}
}

func (g closeGuard) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if g.closed.Load() {
			cmd.SetErr(ErrClientClosed)
			return ErrClientClosed
		}
		return next(ctx, cmd)
	}
}

func (g closeGuard) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if g.closed.Load() {
			for _, cmd := range cmds {
				cmd.SetErr(ErrClientClosed)
			}
			return ErrClientClosed
		}
		return next(ctx, cmds)
	}
}

//Personal.AI order the ending
