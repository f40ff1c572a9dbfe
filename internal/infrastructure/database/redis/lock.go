package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

const lockKeyPrefix = "molstruct:lock:"

var (
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "failed to acquire lock")
	ErrLockNotHeld     = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// Both scripts act only while KEYS[1] still holds the caller's token.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Locker hands out per-name leases stored as Redis keys with a TTL.  A lease
// is renewed in the background until released, so a crashed holder blocks
// others for at most one TTL.
type Locker struct {
	client     *Client
	logger     logging.Logger
	ttl        time.Duration
	retryDelay time.Duration
	maxWait    time.Duration
	renew      bool
}

type LockerOption func(*Locker)

func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) { l.ttl = ttl }
}

func WithRetryDelay(d time.Duration) LockerOption {
	return func(l *Locker) { l.retryDelay = d }
}

// WithMaxWait bounds how long Acquire polls a held lock; 0 tries once.
func WithMaxWait(d time.Duration) LockerOption {
	return func(l *Locker) { l.maxWait = d }
}

func WithRenewal(enabled bool) LockerOption {
	return func(l *Locker) { l.renew = enabled }
}

func NewLocker(client *Client, log logging.Logger, opts ...LockerOption) *Locker {
	if log == nil {
		log = logging.NewNopLogger()
	}
	l := &Locker{
		client:     client,
		logger:     log,
		ttl:        10 * time.Second,
		retryDelay: 50 * time.Millisecond,
		maxWait:    2 * time.Second,
		renew:      true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until the lease on name is held, maxWait elapses or ctx is
// done.  The returned function releases the lease.
func (l *Locker) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	ls := &lease{locker: l, key: lockKeyPrefix + name, token: uuid.NewString()}

	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.client.SetNX(ctx, ls.key, ls.token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCacheError, "lock acquire failed")
		}
		if ok {
			break
		}
		if !time.Now().Add(l.retryDelay).Before(deadline) {
			return nil, ErrLockNotAcquired.WithDetail(name)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}

	if l.renew {
		ls.startRenewal()
	}
	return ls.release, nil
}

type lease struct {
	locker *Locker
	key    string
	token  string

	once sync.Once
	stop context.CancelFunc
	done chan struct{}
}

func (ls *lease) extend(ctx context.Context) (bool, error) {
	n, err := renewScript.Run(ctx, ls.locker.client, []string{ls.key}, ls.token, ls.locker.ttl.Milliseconds()).Int64()
	return n == 1, err
}

func (ls *lease) startRenewal() {
	ctx, cancel := context.WithCancel(context.Background())
	ls.stop = cancel
	ls.done = make(chan struct{})
	go func() {
		defer close(ls.done)
		t := time.NewTicker(ls.locker.ttl / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				ok, err := ls.extend(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil || !ok {
					ls.locker.logger.Warn("lock lease lost", logging.String("key", ls.key), logging.Err(err))
					return
				}
			}
		}
	}()
}

func (ls *lease) release(ctx context.Context) error {
	var err error
	ls.once.Do(func() {
		if ls.stop != nil {
			ls.stop()
			<-ls.done
		}
		var n int64
		n, err = releaseScript.Run(ctx, ls.locker.client, []string{ls.key}, ls.token).Int64()
		if err == nil && n == 0 {
			err = ErrLockNotHeld.WithDetail(ls.key)
		}
	})
	return err
}

//Personal.AI order the ending
