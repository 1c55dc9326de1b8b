// Package election keeps one leader among many processes by holding a lock
// and renewing it before it expires.
package election

import (
	"context"
	"crypto/sha1"
	"encoding/base32"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/lock"
)

const resignTimeout = 5 * time.Second

var ErrNotLeader = errors.New("election: not the leader")

type Elector struct {
	host      string
	store     contracts.OwnedStore
	key       string
	promoteCh chan time.Time
	demoteCh  chan time.Time
	errorCh   chan error
	ttl       time.Duration
	wait      time.Duration
	jitter    time.Duration

	leading       atomic.Bool
	cancel        context.CancelFunc
	done          chan struct{}
	startStopLock *sync.Mutex
}

type Opts struct {
	Store    contracts.OwnedStore
	TTL      time.Duration
	Wait     time.Duration
	JitterMS int
	Key      string
}

func makeKey(input string) string {
	sha := sha1.New()
	sha.Write([]byte(input))
	return "nxlock:leader:" + base32.StdEncoding.EncodeToString(sha.Sum(nil))
}

// NewElector panics on a zero TTL or Wait. Events are delivered on the
// returned channels, which should be drained.
func NewElector(host string, opts Opts) (leader *Elector, onPromote <-chan time.Time, onDemote <-chan time.Time, onError <-chan error) {
	if opts.TTL <= 0 {
		panic("NewElector received a zero TTL")
	}

	if opts.Wait <= 0 {
		panic("NewElector received a zero Wait value")
	}

	prom := make(chan time.Time, 10)
	demo := make(chan time.Time, 10)
	err := make(chan error, 10)

	return &Elector{
		host:   host,
		store:  opts.Store,
		key:    makeKey(opts.Key),
		ttl:    opts.TTL,
		wait:   opts.Wait,
		jitter: time.Duration(opts.JitterMS) * time.Millisecond,

		startStopLock: &sync.Mutex{},

		promoteCh: prom,
		demoteCh:  demo,
		errorCh:   err,
	}, prom, demo, err
}

func randomJitter(val time.Duration) time.Duration {
	if val <= 0 || val.Milliseconds() == 0 {
		return 0
	}
	return time.Duration(rand.Intn(int(val.Milliseconds()))) * time.Millisecond
}

func (e *Elector) newLock() *lock.Lock {
	return lock.New(e.key, e.store,
		lock.WithKeyPrefix(""),
		lock.WithTTL(e.ttl),
		lock.WithRetryDelay(e.wait),
	)
}

func (e *Elector) run(ctx context.Context) {
	defer close(e.done)

	for {
		term := e.newLock()
		if err := term.Acquire(ctx); err != nil {
			return
		}

		e.leading.Store(true)
		log.WithField("host", e.host).Info("promoted to leader")
		send(ctx, e.promoteCh, time.Now())

		e.renew(ctx, term)

		if ctx.Err() != nil {
			e.resign(term)
			return
		}
	}
}

// renew refreshes the lease every half TTL and returns when it is lost or
// ctx is done.
func (e *Elector) renew(ctx context.Context, term *lock.Lock) {
	for {
		timer := time.NewTimer(e.ttl/2 + randomJitter(e.jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := term.Refresh(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		// A failed renew is treated as a lost lease; the next term starts
		// with a fresh election.
		if !errors.Is(err, contracts.ErrLockLost) {
			send(ctx, e.errorCh, fmt.Errorf("trying to renew lease: %w", err))
			e.giveUp(term)
		}
		e.demote(ctx)
		return
	}
}

// giveUp ends a term whose renew failed on the store. The lease is deleted
// if the store answers, otherwise it is left to expire.
func (e *Elector) giveUp(term *lock.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), resignTimeout)
	defer cancel()

	if err := term.ReleaseOwned(ctx); err != nil && !errors.Is(err, contracts.ErrLockLost) {
		log.WithError(err).WithField("host", e.host).Debug("could not delete lease, leaving it to expire")
		term.Abandon()
	}
}

func (e *Elector) demote(ctx context.Context) {
	if e.leading.Swap(false) {
		log.WithField("host", e.host).Info("no longer the leader")
		send(ctx, e.demoteCh, time.Now())
	}
}

func (e *Elector) resign(term *lock.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), resignTimeout)
	defer cancel()

	if err := term.ReleaseOwned(ctx); err != nil && !errors.Is(err, contracts.ErrLockLost) {
		log.WithError(err).WithField("host", e.host).Error("failed to resign")
		send(ctx, e.errorCh, fmt.Errorf("trying to resign: %w", err))
		term.Abandon()
	}
	e.demote(ctx)
}

func send[T any](ctx context.Context, ch chan T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

// Start joins the election. It is a no-op when already running.
func (e *Elector) Start() {
	e.startStopLock.Lock()
	defer e.startStopLock.Unlock()
	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(ctx)
}

// Stop leaves the election, giving up the lease when leading, and waits for
// the election loop to exit.
func (e *Elector) Stop() error {
	e.startStopLock.Lock()
	defer e.startStopLock.Unlock()
	if e.cancel == nil {
		return nil
	}

	e.cancel()
	<-e.done
	e.cancel = nil
	return nil
}

func (e *Elector) IsLeader(context.Context) error {
	if e.leading.Load() {
		return nil
	}

	return ErrNotLeader
}
