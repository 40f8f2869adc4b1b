// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/orchestrator"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the analyzer result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rc, done, err := openCache()
		if err != nil {
			return err
		}
		defer done()

		if err := rc.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
		return nil
	},
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rc, done, err := openCache()
		if err != nil {
			return err
		}
		defer done()

		n, err := rc.Sweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s expired %s\n",
			humanize.Comma(int64(n)), plural(n, "entry", "entries"))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheSweepCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*orchestrator.ResultCache, func(), error) {
	cfg, logger, err := setup()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Cache.Enabled {
		return nil, nil, gerrors.ConfigError("cache is disabled in the configuration", nil)
	}
	// The sweeper is not needed for a one-shot command.
	cfg.Cache.CleanupInterval = 0
	rc, err := orchestrator.OpenResultCache(cfg.Cache, time.Now, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() {
		rc.Close()
		logger.Sync()
	}, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
