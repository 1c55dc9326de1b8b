package redisstore

import (
	"github.com/Masterminds/semver/v3"
)

type Option func(*Store)

// WithRedisVersion skips server version detection.
func WithRedisVersion(version string) Option {
	return func(s *Store) {
		s.redisVersion = semver.MustParse(version)
	}
}
