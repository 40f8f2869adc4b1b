// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/codeguardian-bot/codeguardian/pkg/config"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/version"
)

var rootOpts struct {
	config    string
	logLevel  string
	logFormat string
	noColor   bool
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codeguardian",
	Short: "Automated pull request review",
	Long: `CodeGuardian reviews a GitHub pull request with a set of analyzers
(documentation, coverage, code quality and PR description quality), prints
a report and decides whether the change passes.`,
	Version:       version.FullString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootOpts.config, "config", "c", "", "Path to configuration file (default .codeguardian.yml in the working directory)")
	flags.StringVar(&rootOpts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&rootOpts.logFormat, "log-format", "", "Log format: json, console")
	flags.BoolVar(&rootOpts.noColor, "no-color", false, "Disable colored console output")
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, observability.Logger, error) {
	cfg, err := config.NewLoader().Load(rootOpts.config)
	if err != nil {
		return nil, nil, err
	}
	if rootOpts.logLevel != "" {
		cfg.Log.Level = rootOpts.logLevel
	}
	if rootOpts.logFormat != "" {
		cfg.Log.Format = rootOpts.logFormat
	}

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newGitHub builds the upstream adapter. The token is read from the
// variable named by github.token_env and may be empty for public repos.
func newGitHub(cfg *config.Config, logger observability.Logger) (*platform.GitHub, error) {
	var token string
	if cfg.GitHub.TokenEnv != "" {
		token = os.Getenv(cfg.GitHub.TokenEnv)
	}
	if token == "" {
		logger.Warn("no GitHub token configured, using anonymous API access",
			observability.String("token_env", cfg.GitHub.TokenEnv))
	}
	return platform.NewGitHub(platform.GitHubOptions{
		BaseURL: cfg.GitHub.APIURL,
		Token:   token,
		Logger:  logger,
	})
}
