// Package metrics exposes Prometheus collectors updated by every lock in the
// process. Collectors are always updated; register them on a registry to
// export them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AttemptCounter tracks conditional-set attempts issued by the retry loop.
	AttemptCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nxlock_attempts_total",
		Help: "Total number of lock acquisition attempts",
	})
	// StoreErrorCounter tracks attempts that failed with a store error.
	StoreErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nxlock_store_errors_total",
		Help: "Total number of store errors swallowed during acquisition",
	})
	// OutcomeCounter tracks finished acquisitions by outcome (held, aborted, timed_out).
	OutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nxlock_acquisitions_total",
		Help: "Total number of finished acquisitions by outcome",
	}, []string{"outcome"})
	// ReleaseCounter tracks release calls by result (ok, error).
	ReleaseCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nxlock_releases_total",
		Help: "Total number of release calls by result",
	}, []string{"result"})
	// WaitHistogram observes how long successful acquisitions waited.
	WaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nxlock_acquire_wait_seconds",
		Help:    "Time spent acquiring a lock",
		Buckets: prometheus.DefBuckets,
	})
	// HeldGauge reports the number of locks currently held by this process.
	HeldGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nxlock_held",
		Help: "Current number of locks held",
	})
)

const (
	OutcomeHeld     = "held"
	OutcomeAborted  = "aborted"
	OutcomeTimedOut = "timed_out"

	ResultOK    = "ok"
	ResultError = "error"
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterLockMetrics registers the lock collectors on the provided registry.
func RegisterLockMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AttemptCounter, StoreErrorCounter, OutcomeCounter, ReleaseCounter, WaitHistogram, HeldGauge)
}
