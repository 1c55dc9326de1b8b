package lock

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/metrics"
)

// scheduler drives one acquisition. It only suspends while waiting on the
// store and while waiting out the retry delay.
type scheduler struct {
	store contracts.Store
	cfg   *config

	key   string
	value string
	begin time.Time

	abortRequested func() bool
	retryObserver  func() contracts.RetryFunc
}

type outcome struct {
	state    State
	attempts int
	err      error
}

// run checks abort and timeout strictly before each attempt. An abort that
// arrives while an attempt is in flight does not discard that attempt: if it
// wins, the lock is held and the caller owns the release.
func (s *scheduler) run(ctx context.Context) outcome {
	// Cancelling ctx must not cut off an attempt the store may already have
	// applied; that would leave an entry nobody releases.
	attemptCtx := context.WithoutCancel(ctx)
	attempts := 0
	for {
		if s.abortRequested() {
			return outcome{state: StateAborted, attempts: attempts, err: contracts.ErrAborted}
		}
		if err := ctx.Err(); err != nil {
			return outcome{state: StateAborted, attempts: attempts, err: errors.Join(contracts.ErrAborted, err)}
		}
		// Elapsed time equal to the budget is still allowed one more attempt.
		if s.cfg.abortAfter > 0 && s.cfg.clock.Since(s.begin) > s.cfg.abortAfter {
			return outcome{state: StateTimedOut, attempts: attempts, err: contracts.ErrTimedOut}
		}

		attempts++
		metrics.AttemptCounter.Inc()
		acquired, err := s.store.ConditionalSet(attemptCtx, s.key, s.value, s.cfg.ttl)
		if err != nil {
			// Store failures never end the loop; they count as a lost attempt.
			metrics.StoreErrorCounter.Inc()
			log.WithError(err).WithField("key", s.key).WithField("attempt", attempts).Debug("lock attempt failed")
			acquired = false
		}
		if acquired {
			return outcome{state: StateHeld, attempts: attempts}
		}

		s.wait(ctx)
		s.notifyRetry()
	}
}

func (s *scheduler) wait(ctx context.Context) {
	timer := s.cfg.clock.NewTimer(s.cfg.retryDelay)
	select {
	case <-timer.Chan():
	case <-ctx.Done():
		timer.Stop()
	}
}

func (s *scheduler) notifyRetry() {
	observer := s.retryObserver()
	if observer == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("key", s.key).WithField("cause", r).Warn("retry observer panic")
		}
	}()
	observer()
}
