package redisstore

import (
	"context"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
)

// versionDetectTimeout bounds the INFO call New makes when no version is given.
const versionDetectTimeout = 2 * time.Second

// SET key value NX EX seconds is available since 2.6.12.
var setNXVersion = semver.MustParse("2.6.12")

// Client is the subset of go-redis commands the store needs. *redis.Client,
// *redis.ClusterClient and *redis.Ring satisfy it.
type Client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type infoClient interface {
	InfoMap(ctx context.Context, sections ...string) *redis.InfoCmd
}

// Store implements contracts.OwnedStore on top of a long-lived go-redis client.
type Store struct {
	client Client

	redisVersion *semver.Version
	legacySet    bool
}

var _ contracts.OwnedStore = (*Store)(nil)

func New(client Client, options ...Option) *Store {
	s := &Store{
		client: client,
	}

	for _, option := range options {
		option(s)
	}

	if s.redisVersion == nil {
		ctx, cancel := context.WithTimeout(context.Background(), versionDetectTimeout)
		s.redisVersion = detectVersion(ctx, client)
		cancel()
	}
	s.legacySet = isLegacy(s.redisVersion)

	return s
}

func detectVersion(ctx context.Context, client Client) *semver.Version {
	infoer, ok := client.(infoClient)
	if !ok {
		return nil
	}

	redisInfo, err := infoer.InfoMap(ctx).Result()
	if err != nil {
		log.WithError(err).Debug("could not detect redis version, assuming SET NX EX is supported")
		return nil
	}
	if server, ok := redisInfo["Server"]; ok {
		if redisVersion, ok := server["redis_version"]; ok {
			version, err := semver.NewVersion(redisVersion)
			if err != nil {
				log.WithError(err).WithField("redis_version", redisVersion).Debug("unparsable redis version, assuming SET NX EX is supported")
			}
			return version
		}
	}
	log.Debug("redis did not report its version, assuming SET NX EX is supported")
	return nil
}

// Unknown versions are assumed to be modern.
func isLegacy(version *semver.Version) bool {
	return version != nil && version.LessThan(setNXVersion)
}

// RedisVersion returns the detected or configured server version, nil when unknown.
func (s *Store) RedisVersion() *semver.Version {
	return s.redisVersion
}

// LoadScripts preloads the Lua scripts so the first owner-checked call does
// not pay for an EVAL fallback.
func (s *Store) LoadScripts(ctx context.Context) error {
	if err := registerScripts(ctx, s.client); err != nil {
		return contracts.NewStoreError("script load", "", err)
	}
	return nil
}

func (s *Store) ConditionalSet(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var (
		ok  bool
		err error
	)
	if ttl < 0 {
		ttl = 0
	}

	if s.legacySet {
		ok, err = doAtomicSet(ctx, s.client, key, value, ttl)
	} else {
		ok, err = s.client.SetNX(ctx, key, value, ttl).Result()
	}
	if err != nil {
		return false, contracts.NewStoreError("set", key, err)
	}
	return ok, nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, contracts.NewStoreError("delete", key, err)
	}
	return n > 0, nil
}

func (s *Store) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	ok, err := doAtomicDelete(ctx, s.client, key, value)
	if err != nil {
		return false, contracts.NewStoreError("compare-and-delete", key, err)
	}
	return ok, nil
}

func (s *Store) CompareAndExpire(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := doAtomicExpire(ctx, s.client, key, value, ttl)
	if err != nil {
		return false, contracts.NewStoreError("compare-and-expire", key, err)
	}
	return ok, nil
}
