package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/lock"
	"github.com/spf13/cobra"
)

var (
	holdFor time.Duration

	acquireCmd = &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock and hold it",
		Long:  "Acquire a lock, print its token and hold it until --hold elapses or the process is interrupted. An interrupt while waiting aborts the acquisition.",
		Args:  cobra.ExactArgs(1),
		RunE:  runAcquire,
	}
)

func init() {
	acquireCmd.Flags().DurationVar(&holdFor, "hold", 0, "how long to hold the lock, 0 holds until interrupted")
}

func runAcquire(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return acquireAndHold(ctx, cmd, lock.New(args[0], store, cfg.lockOptions()...), holdFor)
}

func acquireAndHold(ctx context.Context, cmd *cobra.Command, l *lock.Lock, hold time.Duration) error {
	attempts := 0
	l.OnRetry(func() {
		attempts++
		log.WithField("key", l.Key()).WithField("attempts", attempts).Debug("lock is taken, retrying")
	})

	if err := l.Acquire(ctx); err != nil {
		if errors.Is(err, contracts.ErrTimedOut) {
			return fmt.Errorf("gave up on %s after %s: %w", l.Key(), cfg.AbortAfter, err)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), l.Token())

	if hold > 0 {
		timer := time.NewTimer(hold)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}

	releaseCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := l.Release(releaseCtx); err != nil {
		return err
	}
	log.WithField("key", l.Key()).Info("released")
	return nil
}
