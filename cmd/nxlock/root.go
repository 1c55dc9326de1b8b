package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

const shutdownTimeout = 5 * time.Second

var (
	cfg           settings
	store         contracts.OwnedStore
	closeStore    func() error
	shutdownTrace func(context.Context) error

	rootCmd = &cobra.Command{
		Use:               "nxlock",
		Short:             "redis backed mutual exclusion",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nxlock",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nxlock v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	setupFlags(rootCmd)

	rootCmd.AddCommand(acquireCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}
	if err := bindFlags(cmd); err != nil {
		return err
	}
	cfg = loadSettings()

	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}

	var err error
	if shutdownTrace, err = setupTracing(cfg.Trace); err != nil {
		return err
	}

	store, closeStore, err = newStore(cfg)
	return err
}

func teardown(cmd *cobra.Command, _ []string) {
	if closeStore != nil {
		if err := closeStore(); err != nil {
			log.WithError(err).Warn("failed to close redis client")
		}
	}
	if shutdownTrace != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTrace(ctx); err != nil {
			log.WithError(err).Warn("failed to flush spans")
		}
	}
}
