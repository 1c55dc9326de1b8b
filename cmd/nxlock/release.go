package main

import (
	"context"
	"fmt"

	"github.com/soroosh-tanzadeh/nxlock/contracts"
	"github.com/soroosh-tanzadeh/nxlock/lock"
	"github.com/spf13/cobra"
)

var (
	releaseToken string

	releaseCmd = &cobra.Command{
		Use:   "release [key]",
		Short: "Release a lock",
		Long:  "Release a lock unconditionally, or only while it still carries --token (the value printed by acquire).",
		Args:  cobra.ExactArgs(1),
		RunE:  runRelease,
	}
)

func init() {
	releaseCmd.Flags().StringVar(&releaseToken, "token", "", "only release if the lock holds this token")
}

func runRelease(cmd *cobra.Command, args []string) error {
	released, err := release(cmd.Context(), store, args[0], releaseToken)
	if err != nil {
		return err
	}
	if released {
		fmt.Fprintln(cmd.OutOrStdout(), "released")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "not held")
	}
	return nil
}

func release(ctx context.Context, s contracts.OwnedStore, key, token string) (bool, error) {
	fullKey := lock.New(key, s, cfg.lockOptions()...).FullKey()
	if token == "" {
		return s.Delete(ctx, fullKey)
	}
	return s.CompareAndDelete(ctx, fullKey, token)
}
