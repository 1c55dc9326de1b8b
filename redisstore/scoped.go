package redisstore

import (
	"context"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
)

// ScopedStore opens a connection for every operation and closes it
// afterwards, so an idle process holds no sockets to the server.
type ScopedStore struct {
	options      redis.Options
	storeOptions []Option

	versionOnce  sync.Once
	redisVersion *semver.Version
}

var _ contracts.OwnedStore = (*ScopedStore)(nil)

func NewScoped(options *redis.Options, storeOptions ...Option) *ScopedStore {
	return &ScopedStore{
		options:      *options,
		storeOptions: storeOptions,
	}
}

func (s *ScopedStore) do(ctx context.Context, fn func(*Store) (bool, error)) (bool, error) {
	options := s.options
	client := redis.NewClient(&options)
	defer func() {
		if err := client.Close(); err != nil {
			log.WithError(err).WithField("addr", options.Addr).Warn("closing scoped redis connection")
		}
	}()

	// Detect once, then pin the version for every later connection.
	s.versionOnce.Do(func() {
		s.redisVersion = New(client, s.storeOptions...).RedisVersion()
	})

	store := &Store{
		client:       client,
		redisVersion: s.redisVersion,
		legacySet:    isLegacy(s.redisVersion),
	}
	return fn(store)
}

func (s *ScopedStore) ConditionalSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.do(ctx, func(store *Store) (bool, error) {
		return store.ConditionalSet(ctx, key, value, ttl)
	})
}

func (s *ScopedStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.do(ctx, func(store *Store) (bool, error) {
		return store.Delete(ctx, key)
	})
}

func (s *ScopedStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return s.do(ctx, func(store *Store) (bool, error) {
		return store.CompareAndDelete(ctx, key, value)
	})
}

func (s *ScopedStore) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.do(ctx, func(store *Store) (bool, error) {
		return store.CompareAndExpire(ctx, key, value, ttl)
	})
}
