// Package registry hands out locks that share one store and one set of
// defaults, and keeps track of them so a process can release everything it
// holds on shutdown.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/internal/ring"
	"github.com/soroosh-tanzadeh/nxlock/internal/safemap"
	"github.com/soroosh-tanzadeh/nxlock/lock"
)

const flushTimeout = 5 * time.Second

var (
	ErrSamplingDisabled = errors.New("registry: wait sampling is not enabled")
	ErrClosed           = errors.New("registry: closed")
)

type Registry struct {
	store       contracts.Store
	lockOptions []lock.Option
	handles     *safemap.SafeMap[*lock.Lock, string]
	closed      atomic.Bool

	samplingClient redis.Cmdable
	sampleCapacity int
	flushInterval  time.Duration
	samplingKey    string
	waits          *ring.RedisRing
	writer         *waitBulkWriter
}

// WaitStatistics summarises the sampled acquisition waits.
type WaitStatistics struct {
	Samples int
	Average time.Duration
	Max     time.Duration
	Min     time.Duration
	StdDev  time.Duration
}

func New(store contracts.Store, options ...Option) *Registry {
	r := &Registry{
		store:          store,
		handles:        safemap.NewSafeMap[*lock.Lock, string](),
		sampleCapacity: DefaultSampleCapacity,
		flushInterval:  DefaultFlushInterval,
		samplingKey:    DefaultSamplingKey,
	}
	for _, option := range options {
		option(r)
	}

	if r.samplingClient != nil {
		r.waits = ring.NewRedisRing(r.samplingClient, r.sampleCapacity, r.samplingKey)
		r.writer = newWaitBulkWriter(r.flushInterval, r.flushWaits)
	}

	return r
}

// NewLock returns a tracked lock for key. Per-call options override the
// registry defaults. The registry keeps the handle until Forget is called or
// ReleaseAll finds it finished; callers creating a lock per request should
// use WithLock, which forgets its handle.
func (r *Registry) NewLock(key string, options ...lock.Option) *lock.Lock {
	all := make([]lock.Option, 0, len(r.lockOptions)+len(options)+1)
	all = append(all, r.lockOptions...)
	all = append(all, options...)
	if r.writer != nil {
		all = append(all, lock.WithAcquiredHook(r.recordWait))
	}

	l := lock.New(key, r.store, all...)
	r.handles.Set(l, key)
	return l
}

// Forget stops tracking l. It does not release it.
func (r *Registry) Forget(l *lock.Lock) {
	r.handles.Delete(l)
}

// Len is the number of tracked locks.
func (r *Registry) Len() int {
	return r.handles.Len()
}

// WithLock acquires key, runs fn and releases the lock whatever fn returns.
// The release error, if any, is joined to fn's error.
func (r *Registry) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error, options ...lock.Option) (err error) {
	if r.closed.Load() {
		return ErrClosed
	}

	l := r.NewLock(key, options...)
	defer r.Forget(l)

	if err := l.Acquire(ctx); err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}

	defer func() {
		// The caller's ctx may already be done; the release still has to go out.
		releaseErr := l.Release(context.WithoutCancel(ctx))
		if releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
	}()

	return fn(ctx)
}

// ReleaseAll releases every tracked lock currently held and stops tracking
// the ones that are finished (released, aborted or timed out). Idle and
// acquiring handles stay tracked.
func (r *Registry) ReleaseAll(ctx context.Context) error {
	var errs []error
	for l, key := range r.handles.Snapshot() {
		switch l.State() {
		case lock.StateHeld:
			if err := l.Release(ctx); err != nil {
				log.WithError(err).WithField("key", key).Error("failed to release lock")
				errs = append(errs, err)
				continue
			}
			r.Forget(l)
		case lock.StateReleased, lock.StateAborted, lock.StateTimedOut:
			r.Forget(l)
		}
	}
	return errors.Join(errs...)
}

// Close releases held locks and flushes pending wait samples. Locks created
// after Close still work but WithLock refuses to run.
func (r *Registry) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := r.ReleaseAll(ctx)
	if r.writer != nil {
		r.writer.close()
	}
	return err
}

// WaitStatistics reads the sampled waits back from redis.
func (r *Registry) WaitStatistics(ctx context.Context) (WaitStatistics, error) {
	if r.waits == nil {
		return WaitStatistics{}, ErrSamplingDisabled
	}

	samples, err := r.waits.GetAll(ctx)
	if err != nil {
		return WaitStatistics{}, err
	}

	avg := ring.AverageFloat64(samples)
	return WaitStatistics{
		Samples: len(samples),
		Average: fromMillis(avg),
		Max:     fromMillis(ring.MaxFloat64(samples)),
		Min:     fromMillis(ring.MinFloat64(samples)),
		StdDev:  fromMillis(ring.StandardDeviationFloat64(samples, avg)),
	}, nil
}

// ResetWaitStatistics drops every sample.
func (r *Registry) ResetWaitStatistics(ctx context.Context) error {
	if r.waits == nil {
		return ErrSamplingDisabled
	}
	return r.waits.Clear(ctx)
}

func (r *Registry) recordWait(key string, waited time.Duration) {
	r.writer.write(waitSample{key: key, wait: waited})
}

func (r *Registry) flushWaits(data []waitSample) error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	items := make([]float64, len(data))
	for i, sample := range data {
		items[i] = toMillis(sample.wait)
	}
	return r.waits.Add(ctx, items...)
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
