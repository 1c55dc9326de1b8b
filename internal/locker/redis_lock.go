package locker

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
)

// DefaultFallbackExpiry replaces a non-positive ttl. Redsync mutexes always expire.
const DefaultFallbackExpiry = time.Hour

var deleteScript = redsyncredis.NewScript(1, `return redis.call('DEL', KEYS[1])`)

// RedsyncStore implements contracts.OwnedStore with single-attempt redsync
// mutexes. The retry loop stays in the lock package; redsync only provides
// the atomic primitives.
type RedsyncStore struct {
	pool redsyncredis.Pool
	rs   *redsync.Redsync

	fallbackExpiry time.Duration
}

var _ contracts.OwnedStore = (*RedsyncStore)(nil)

type Option func(*RedsyncStore)

func WithFallbackExpiry(expiry time.Duration) Option {
	return func(r *RedsyncStore) {
		if expiry > 0 {
			r.fallbackExpiry = expiry
		}
	}
}

func NewRedsyncStore(client redis.UniversalClient, options ...Option) *RedsyncStore {
	pool := goredis.NewPool(client)
	r := &RedsyncStore{
		pool:           pool,
		rs:             redsync.New(pool),
		fallbackExpiry: DefaultFallbackExpiry,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *RedsyncStore) mutex(key, value string, ttl time.Duration) *redsync.Mutex {
	if ttl <= 0 {
		ttl = r.fallbackExpiry
	}
	return r.rs.NewMutex(key,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
		redsync.WithValue(value),
		redsync.WithGenValueFunc(func() (string, error) {
			return value, nil
		}),
	)
}

// notApplied reports redsync errors meaning the conditional operation did
// not apply, as opposed to a failure talking to redis.
func notApplied(err error) bool {
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) {
		return true
	}
	return errors.Is(err, redsync.ErrFailed) ||
		errors.Is(err, redsync.ErrLockAlreadyExpired) ||
		errors.Is(err, redsync.ErrExtendFailed)
}

func (r *RedsyncStore) ConditionalSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	err := r.mutex(key, value, ttl).TryLockContext(ctx)
	if err == nil {
		return true, nil
	}
	if notApplied(err) {
		return false, nil
	}
	return false, contracts.NewStoreError("set", key, err)
}

func (r *RedsyncStore) Delete(ctx context.Context, key string) (bool, error) {
	conn, err := r.pool.Get(ctx)
	if err != nil {
		return false, contracts.NewStoreError("delete", key, err)
	}
	defer conn.Close()

	v, err := conn.Eval(deleteScript, key)
	if err != nil {
		return false, contracts.NewStoreError("delete", key, err)
	}
	n, _ := v.(int64)
	return n > 0, nil
}

func (r *RedsyncStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	ok, err := r.mutex(key, value, 0).UnlockContext(ctx)
	if err != nil {
		if notApplied(err) {
			return false, nil
		}
		return false, contracts.NewStoreError("compare-and-delete", key, err)
	}
	return ok, nil
}

func (r *RedsyncStore) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.mutex(key, value, ttl).ExtendContext(ctx)
	if err != nil {
		if notApplied(err) {
			return false, nil
		}
		return false, contracts.NewStoreError("compare-and-expire", key, err)
	}
	return ok, nil
}
