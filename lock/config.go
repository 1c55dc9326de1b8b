package lock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultKeyPrefix = "lock."
	DefaultTTL       = time.Hour
	// DefaultRetryDelay applies when WithRetryDelay is not given.
	DefaultRetryDelay = 200 * time.Millisecond
	// FallbackRetryDelay replaces a non-positive WithRetryDelay value.
	FallbackRetryDelay = 100 * time.Millisecond
)

// AcquiredHook is called after a successful acquisition with the unprefixed
// key and the time spent acquiring it.
type AcquiredHook func(key string, waited time.Duration)

type config struct {
	keyPrefix  string
	ttl        time.Duration
	retryDelay time.Duration
	// zero means unbounded
	abortAfter time.Duration

	clock         clockwork.Clock
	tracing       bool
	acquiredHooks []AcquiredHook
}

type Option func(*config)

func newConfig(options ...Option) config {
	cfg := config{
		keyPrefix:  DefaultKeyPrefix,
		ttl:        DefaultTTL,
		retryDelay: DefaultRetryDelay,
		clock:      clockwork.NewRealClock(),
	}
	for _, option := range options {
		option(&cfg)
	}
	return cfg
}

func WithKeyPrefix(prefix string) Option {
	return func(c *config) {
		c.keyPrefix = prefix
	}
}

// WithTTL sets the expiry of the store entry. A non-positive ttl disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl < 0 {
			ttl = 0
		}
		c.ttl = ttl
	}
}

// WithoutExpiry keeps the store entry until it is released.
func WithoutExpiry() Option {
	return WithTTL(0)
}

// WithRetryDelay sets the pause between failed attempts. A non-positive
// delay falls back to FallbackRetryDelay.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *config) {
		if delay <= 0 {
			delay = FallbackRetryDelay
		}
		c.retryDelay = delay
	}
}

// WithAbortAfter bounds the wall-clock time a single Acquire call may take.
// A non-positive value leaves it unbounded.
func WithAbortAfter(d time.Duration) Option {
	return func(c *config) {
		if d < 0 {
			d = 0
		}
		c.abortAfter = d
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithTracing enables OpenTelemetry spans around Acquire.
func WithTracing() Option {
	return func(c *config) {
		c.tracing = true
	}
}

func WithAcquiredHook(hook AcquiredHook) Option {
	return func(c *config) {
		if hook != nil {
			c.acquiredHooks = append(c.acquiredHooks, hook)
		}
	}
}
