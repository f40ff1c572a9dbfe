package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

var (
	ErrCacheMiss           = errors.New(errors.ErrCodeNotFound, "cache miss")
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "serialization failed")
)

// ParseCache stores parse results as JSON under a key prefix.  Every entry
// expires; TTLs are spread by a jitter fraction so entries written together
// do not expire together.
type ParseCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	jitter     float64
	rand       func() float64
}

type CacheOption func(*ParseCache)

func WithPrefix(prefix string) CacheOption {
	return func(c *ParseCache) { c.prefix = prefix }
}

// WithDefaultTTL applies when Set is called with ttl <= 0.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *ParseCache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithTTLJitter sets the relative TTL spread in [0, 1); 0 disables jitter.
func WithTTLJitter(fraction float64) CacheOption {
	return func(c *ParseCache) { c.jitter = fraction }
}

func NewRedisCache(client *Client, log logging.Logger, opts ...CacheOption) *ParseCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ParseCache{
		client:     client,
		logger:     log,
		prefix:     "molstruct:",
		defaultTTL: time.Hour,
		jitter:     0.1,
		rand:       rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ParseCache) key(k string) string { return c.prefix + k }

func (c *ParseCache) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if c.jitter <= 0 {
		return ttl
	}
	spread := float64(ttl) * c.jitter * (c.rand()*2 - 1)
	if d := ttl + time.Duration(spread); d > 0 {
		return d
	}
	return ttl
}

// Get decodes the entry under key into dest, returning ErrCacheMiss when
// there is none.
func (c *ParseCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case err == redis.Nil:
		return ErrCacheMiss
	case err != nil:
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache read failed")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A stale layout is treated as a miss and overwritten by the next Set.
		c.logger.Debug("undecodable cache entry", logging.String("key", key), logging.Err(err))
		return ErrCacheMiss
	}
	return nil
}

// Set stores value under key for ttl, or the default TTL when ttl <= 0.
func (c *ParseCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl(ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "cache write failed")
	}
	return nil
}

//Personal.AI order the ending
