package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/turtacn/molstruct/pkg/errors"
)

type cachedStructure struct {
	Formula   string `json:"formula"`
	AtomCount int    `json:"atom_count"`
}

func newMockCache(t *testing.T) (*ParseCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return NewRedisCache(NewClientFromUniversal(db, nil), nil, WithPrefix("test:"), WithTTLJitter(0)), mock
}

func TestParseCache_Get(t *testing.T) {
	cache, mock := newMockCache(t)
	ctx := context.Background()
	water, _ := json.Marshal(cachedStructure{Formula: "H2O", AtomCount: 3})

	mock.ExpectGet("test:hit").SetVal(string(water))
	var got cachedStructure
	require.NoError(t, cache.Get(ctx, "hit", &got))
	assert.Equal(t, cachedStructure{Formula: "H2O", AtomCount: 3}, got)

	mock.ExpectGet("test:miss").RedisNil()
	err := cache.Get(ctx, "miss", &got)
	assert.Equal(t, ErrCacheMiss, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	mock.ExpectGet("test:stale").SetVal(`{"formula":7}`)
	assert.Equal(t, ErrCacheMiss, cache.Get(ctx, "stale", &got))

	mock.ExpectGet("test:down").SetErr(errors.New("READONLY"))
	err = cache.Get(ctx, "down", &got)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestParseCache_Set(t *testing.T) {
	cache, mock := newMockCache(t)
	ctx := context.Background()
	val := cachedStructure{Formula: "CH4", AtomCount: 5}
	data, _ := json.Marshal(val)

	mock.ExpectSet("test:k", data, 10*time.Minute).SetVal("OK")
	require.NoError(t, cache.Set(ctx, "k", val, 10*time.Minute))

	mock.ExpectSet("test:d", data, time.Hour).SetVal("OK")
	require.NoError(t, cache.Set(ctx, "d", val, 0))

	mock.ExpectSet("test:e", data, time.Hour).SetErr(errors.New("OOM"))
	assert.True(t, pkgerrors.IsCode(cache.Set(ctx, "e", val, 0), pkgerrors.ErrCodeCacheError))

	err := cache.Set(ctx, "bad", make(chan int), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func TestParseCache_TTLJitter(t *testing.T) {
	cache := NewRedisCache(nil, nil, WithTTLJitter(0.1), WithDefaultTTL(time.Hour))

	cache.rand = func() float64 { return 0 }
	assert.Equal(t, 54*time.Minute, cache.ttl(0))
	cache.rand = func() float64 { return 1 }
	assert.Equal(t, 66*time.Minute, cache.ttl(time.Hour))
	cache.rand = func() float64 { return 0.5 }
	assert.Equal(t, time.Minute, cache.ttl(time.Minute))
}

func TestParseCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCache(client, nil, WithPrefix("t:"))
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "parse:abc", cachedStructure{Formula: "O2", AtomCount: 2}, time.Hour))

	var got cachedStructure
	require.NoError(t, cache.Get(ctx, "parse:abc", &got))
	assert.Equal(t, "O2", got.Formula)

	ttl := mr.TTL("t:parse:abc")
	assert.GreaterOrEqual(t, ttl, 54*time.Minute)
	assert.LessOrEqual(t, ttl, 66*time.Minute)

	mr.FastForward(2 * time.Hour)
	assert.Equal(t, ErrCacheMiss, cache.Get(ctx, "parse:abc", &got))
}

//Personal.AI order the ending
