package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/metrics"
	"github.com/soroosh-tanzadeh/nxlock/registry"
	"github.com/spf13/cobra"
)

var (
	benchWorkers     int
	benchIterations  int
	benchHold        time.Duration
	benchMetricsAddr string

	benchCmd = &cobra.Command{
		Use:   "bench [key]",
		Short: "Run workers contending for one lock",
		Long:  "Run --iterations critical sections on --workers concurrent workers, all guarded by the same lock, and report overlaps and wait statistics.",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}
)

func init() {
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 8, "concurrent workers")
	benchCmd.Flags().IntVar(&benchIterations, "iterations", 100, "critical sections to run")
	benchCmd.Flags().DurationVar(&benchHold, "hold", time.Millisecond, "time spent inside the critical section")
	benchCmd.Flags().StringVar(&benchMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9100")
}

type benchConfig struct {
	key        string
	workers    int
	iterations int
	hold       time.Duration
}

type benchReport struct {
	Completed int64
	Failed    int64
	Overlaps  int64
	Elapsed   time.Duration
	Waits     registry.WaitStatistics
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if benchMetricsAddr != "" {
		serveMetrics(benchMetricsAddr)
	}

	samplingClient := redis.NewClient(cfg.redisOptions())
	defer samplingClient.Close()

	reg := registry.New(store,
		registry.WithLockOptions(cfg.lockOptions()...),
		registry.WithWaitSampling(samplingClient, benchIterations, 100*time.Millisecond),
		registry.WithSamplingKey("bench:"+args[0]),
	)

	report, err := bench(ctx, reg, benchConfig{
		key:        args[0],
		workers:    benchWorkers,
		iterations: benchIterations,
		hold:       benchHold,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "completed: %d\nfailed:    %d\noverlaps:  %d\nelapsed:   %s\n", report.Completed, report.Failed, report.Overlaps, report.Elapsed)
	fmt.Fprintf(out, "wait avg %s max %s min %s stddev %s over %d samples\n",
		report.Waits.Average, report.Waits.Max, report.Waits.Min, report.Waits.StdDev, report.Waits.Samples)

	if report.Overlaps > 0 {
		return fmt.Errorf("%d critical sections overlapped", report.Overlaps)
	}
	return nil
}

// bench runs cfg.iterations critical sections on an ants pool and closes reg.
func bench(ctx context.Context, reg *registry.Registry, cfg benchConfig) (benchReport, error) {
	var (
		report benchReport
		inside atomic.Int32
		wg     sync.WaitGroup
	)

	if err := reg.ResetWaitStatistics(ctx); err != nil && !errors.Is(err, registry.ErrSamplingDisabled) {
		log.WithError(err).Warn("could not reset wait statistics")
	}

	critical := func(ctx context.Context) error {
		if inside.Add(1) > 1 {
			atomic.AddInt64(&report.Overlaps, 1)
		}
		time.Sleep(cfg.hold)
		inside.Add(-1)
		return nil
	}

	pool, err := ants.NewPoolWithFunc(cfg.workers, func(arg interface{}) {
		defer wg.Done()
		if err := reg.WithLock(ctx, cfg.key, critical); err != nil {
			atomic.AddInt64(&report.Failed, 1)
			if !errors.Is(err, contracts.ErrAcquireFailed) {
				log.WithError(err).Warn("critical section failed")
			}
			return
		}
		atomic.AddInt64(&report.Completed, 1)
	}, ants.WithPanicHandler(func(p interface{}) {
		log.WithField("panic", p).Error("bench worker panicked")
	}))
	if err != nil {
		return report, err
	}
	defer pool.Release()

	start := time.Now()
	for i := 0; i < cfg.iterations; i++ {
		wg.Add(1)
		if err := pool.Invoke(i); err != nil {
			wg.Done()
			return report, err
		}
	}
	wg.Wait()
	report.Elapsed = time.Since(start)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := reg.Close(closeCtx); err != nil {
		return report, err
	}

	report.Waits, err = reg.WaitStatistics(closeCtx)
	if errors.Is(err, registry.ErrSamplingDisabled) {
		err = nil
	}
	return report, err
}

func serveMetrics(addr string) {
	reg := metrics.NewRegistry()
	metrics.RegisterLockMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
}
