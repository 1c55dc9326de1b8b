package registry

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soroosh-tanzadeh/nxlock/lock"
)

const (
	DefaultSampleCapacity = 1000
	DefaultFlushInterval  = time.Second
	DefaultSamplingKey    = "lock-wait"
)

type Option func(*Registry)

// WithLockOptions sets options applied to every lock the registry creates,
// before the per-call options.
func WithLockOptions(options ...lock.Option) Option {
	return func(r *Registry) {
		r.lockOptions = append(r.lockOptions, options...)
	}
}

// WithWaitSampling records how long every successful acquisition waited in a
// redis ring of the latest capacity samples, written in batches every
// flushInterval.
func WithWaitSampling(client redis.Cmdable, capacity int, flushInterval time.Duration) Option {
	return func(r *Registry) {
		r.samplingClient = client
		r.sampleCapacity = capacity
		r.flushInterval = flushInterval
	}
}

// WithSamplingKey names the ring so that several registries can share one
// redis without mixing their samples.
func WithSamplingKey(key string) Option {
	return func(r *Registry) {
		r.samplingKey = key
	}
}
