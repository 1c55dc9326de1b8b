package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/soroosh-tanzadeh/nxlock/lock")

// Lock is a handle on one named critical section. A handle runs at most one
// acquisition at a time; it may be acquired again once released, aborted or
// timed out. The store is shared and not owned by the handle.
type Lock struct {
	key     string
	fullKey string
	store   contracts.Store
	cfg     config

	// State plus abortBit.
	state         atomic.Uint32
	retryObserver atomic.Pointer[contracts.RetryFunc]
	token         atomic.Pointer[string]

	// Owned by the goroutine running the acquisition.
	beginTime time.Time
}

var _ contracts.Lock = (*Lock)(nil)

// New returns an idle lock for key. The key sent to the store is the
// configured prefix followed by key.
func New(key string, store contracts.Store, options ...Option) *Lock {
	cfg := newConfig(options...)
	return &Lock{
		key:     key,
		fullKey: cfg.keyPrefix + key,
		store:   store,
		cfg:     cfg,
	}
}

func (l *Lock) Key() string {
	return l.key
}

func (l *Lock) FullKey() string {
	return l.fullKey
}

func (l *Lock) State() State {
	return State(l.state.Load() &^ abortBit)
}

// Token returns the value written by the latest acquisition, empty before the first one.
func (l *Lock) Token() string {
	if token := l.token.Load(); token != nil {
		return *token
	}
	return ""
}

// OnRetry replaces the callback run after every failed attempt. A nil
// callback removes it.
func (l *Lock) OnRetry(callback contracts.RetryFunc) {
	if callback == nil {
		l.retryObserver.Store(nil)
		return
	}
	l.retryObserver.Store(&callback)
}

// Abort asks the running acquisition to stop before its next attempt. It has
// no effect when no acquisition is running.
func (l *Lock) Abort() {
	for {
		current := l.state.Load()
		if current != uint32(StateAcquiring) {
			return
		}
		if l.state.CompareAndSwap(current, current|abortBit) {
			return
		}
	}
}

func (l *Lock) abortRequested() bool {
	return l.state.Load()&abortBit != 0
}

// Acquire polls the store until the lock is held, Abort is called, ctx is
// done, or the WithAbortAfter budget is spent. Failures match
// contracts.ErrAcquireFailed; ErrAborted and ErrTimedOut tell them apart.
func (l *Lock) Acquire(ctx context.Context) error {
	if err := l.start(); err != nil {
		return err
	}
	return l.acquire(ctx)
}

// AcquireAsync starts an acquisition and delivers its result on the returned
// channel. The acquisition is already running when AcquireAsync returns, so an
// immediate Abort is honoured.
func (l *Lock) AcquireAsync(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	if err := l.start(); err != nil {
		result <- err
		return result
	}
	go func() {
		result <- l.acquire(ctx)
	}()
	return result
}

func (l *Lock) start() error {
	for {
		current := l.state.Load()
		switch State(current &^ abortBit) {
		case StateAcquiring:
			return contracts.ErrAcquireInProgress
		case StateHeld:
			return contracts.ErrAlreadyHeld
		}
		// Terminal states never carry abortBit, so the new acquisition
		// starts with no abort pending.
		if l.state.CompareAndSwap(current, uint32(StateAcquiring)) {
			break
		}
	}

	l.beginTime = l.cfg.clock.Now()
	token := uuid.NewString()
	l.token.Store(&token)
	return nil
}

func (l *Lock) acquire(ctx context.Context) error {
	var span trace.Span
	if l.cfg.tracing {
		ctx, span = tracer.Start(ctx, "Lock.Acquire", trace.WithAttributes(attribute.String("nxlock.key", l.fullKey)))
		defer span.End()
	}

	s := &scheduler{
		store:          l.store,
		cfg:            &l.cfg,
		key:            l.fullKey,
		value:          l.Token(),
		begin:          l.beginTime,
		abortRequested: l.abortRequested,
		retryObserver: func() contracts.RetryFunc {
			if observer := l.retryObserver.Load(); observer != nil {
				return *observer
			}
			return nil
		},
	}
	result := s.run(ctx)
	waited := l.cfg.clock.Since(l.beginTime)

	l.state.Store(uint32(result.state))

	if l.cfg.tracing {
		span.SetAttributes(
			attribute.String("nxlock.outcome", result.state.String()),
			attribute.Int("nxlock.attempts", result.attempts),
			attribute.Int64("nxlock.wait_ms", waited.Milliseconds()),
		)
		if result.err != nil {
			span.SetStatus(codes.Error, result.err.Error())
		}
	}

	switch result.state {
	case StateHeld:
		metrics.OutcomeCounter.WithLabelValues(metrics.OutcomeHeld).Inc()
		metrics.HeldGauge.Inc()
		metrics.WaitHistogram.Observe(waited.Seconds())
		for _, hook := range l.cfg.acquiredHooks {
			hook(l.key, waited)
		}
	case StateAborted:
		metrics.OutcomeCounter.WithLabelValues(metrics.OutcomeAborted).Inc()
	case StateTimedOut:
		metrics.OutcomeCounter.WithLabelValues(metrics.OutcomeTimedOut).Inc()
	}

	return result.err
}

// Release deletes the store entry without checking who wrote it. The delete
// is issued whatever the handle state; only a held lock moves to released.
// If the entry expired and another holder took it, that holder loses it.
func (l *Lock) Release(ctx context.Context) error {
	if _, err := l.store.Delete(ctx, l.fullKey); err != nil {
		metrics.ReleaseCounter.WithLabelValues(metrics.ResultError).Inc()
		return asStoreError("delete", l.fullKey, err)
	}
	metrics.ReleaseCounter.WithLabelValues(metrics.ResultOK).Inc()
	l.markReleased()
	return nil
}

// ReleaseOwned deletes the store entry only if it still carries this
// handle's token. It returns ErrLockLost when the entry expired or was taken
// over; the handle is released either way.
func (l *Lock) ReleaseOwned(ctx context.Context) error {
	owned, ok := l.store.(contracts.OwnedStore)
	if !ok {
		return contracts.ErrOwnershipUnsupported
	}
	if l.State() != StateHeld {
		return contracts.ErrNotHeld
	}

	deleted, err := owned.CompareAndDelete(ctx, l.fullKey, l.Token())
	if err != nil {
		metrics.ReleaseCounter.WithLabelValues(metrics.ResultError).Inc()
		return asStoreError("compare-and-delete", l.fullKey, err)
	}
	metrics.ReleaseCounter.WithLabelValues(metrics.ResultOK).Inc()
	l.markReleased()
	if !deleted {
		return contracts.ErrLockLost
	}
	return nil
}

// Refresh pushes the expiry of a held lock forward by the configured TTL,
// provided the entry still carries this handle's token. On ErrLockLost the
// handle moves to released.
func (l *Lock) Refresh(ctx context.Context) error {
	owned, ok := l.store.(contracts.OwnedStore)
	if !ok {
		return contracts.ErrOwnershipUnsupported
	}
	if l.State() != StateHeld {
		return contracts.ErrNotHeld
	}
	if l.cfg.ttl <= 0 {
		return nil
	}

	extended, err := owned.CompareAndExpire(ctx, l.fullKey, l.Token(), l.cfg.ttl)
	if err != nil {
		return asStoreError("compare-and-expire", l.fullKey, err)
	}
	if !extended {
		// Someone else owns the entry now; this handle holds nothing.
		l.markReleased()
		return contracts.ErrLockLost
	}
	return nil
}

// Abandon gives up a held lock locally without touching the store, for when
// the store cannot be reached to release it. The entry stays until its TTL
// runs out.
func (l *Lock) Abandon() {
	l.markReleased()
}

func (l *Lock) markReleased() {
	if l.state.CompareAndSwap(uint32(StateHeld), uint32(StateReleased)) {
		metrics.HeldGauge.Dec()
	}
}

func asStoreError(op, key string, err error) error {
	var storeErr *contracts.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return contracts.NewStoreError(op, key, err)
}
