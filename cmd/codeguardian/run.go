// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeguardian-bot/codeguardian/pkg/analyzer"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/orchestrator"
	"github.com/codeguardian-bot/codeguardian/pkg/output"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/sigctx"
)

var runOpts struct {
	repo     string
	pr       int
	formats  []string
	jsonPath string
}

// runCmd reviews a single pull request.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Review one pull request",
	Long: `Review one pull request and deliver the report to the configured sinks.

Without --repo and --pr the target is taken from the GitHub Actions
environment. The command exits 1 when the review fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if len(runOpts.formats) > 0 {
			cfg.Output.Formats = runOpts.formats
		}
		if runOpts.jsonPath != "" {
			cfg.Output.JSONPath = runOpts.jsonPath
		}

		target, err := resolveTarget(runOpts.repo, runOpts.pr, os.Getenv)
		if err != nil {
			return err
		}

		gh, err := newGitHub(cfg, logger)
		if err != nil {
			return err
		}
		sink, err := output.FromConfig(cfg.Output, output.Env{
			Stdout:    cmd.OutOrStdout(),
			NoColor:   rootOpts.noColor,
			Commenter: gh,
			Comment:   []output.CommentOption{output.WithCommentLogger(logger)},
		})
		if err != nil {
			return err
		}

		orc, err := orchestrator.New(cfg, analyzer.Deps{Upstream: gh, Logger: logger},
			orchestrator.WithSink(sink),
			orchestrator.WithMetrics(observability.NewMetrics()))
		if err != nil {
			return err
		}
		defer orc.Close()

		ctx, cancel := sigctx.WithSignal(cmd.Context())
		defer cancel()

		report, err := orc.Run(ctx, target)
		if err != nil {
			return err
		}
		if !report.Passed {
			return errReviewFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runOpts.repo, "repo", "r", "", "Repository as owner/name")
	runCmd.Flags().IntVarP(&runOpts.pr, "pr", "p", 0, "Pull request number")
	runCmd.Flags().StringSliceVarP(&runOpts.formats, "format", "f", nil, "Output formats, overrides output.formats (console, markdown, json, comment)")
	runCmd.Flags().StringVar(&runOpts.jsonPath, "json-path", "", "Write the json report to this file")
}

// resolveTarget prefers explicit flags and falls back to the CI environment.
func resolveTarget(repo string, number int, getenv platform.Getenv) (platform.Target, error) {
	if repo == "" && number == 0 {
		t, err := platform.TargetFromEnv(getenv)
		if err != nil {
			return platform.Target{}, fmt.Errorf("no --repo/--pr given and %w", err)
		}
		return t, nil
	}
	t := platform.Target{Repository: repo, Number: number}
	if err := t.Validate(); err != nil {
		return platform.Target{}, err
	}
	return t, nil
}
