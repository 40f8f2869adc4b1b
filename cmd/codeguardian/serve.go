// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeguardian-bot/codeguardian/pkg/analyzer"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/orchestrator"
	"github.com/codeguardian-bot/codeguardian/pkg/output"
	"github.com/codeguardian-bot/codeguardian/pkg/sigctx"
	"github.com/codeguardian-bot/codeguardian/pkg/webhook"
)

const shutdownTimeout = 30 * time.Second

var serveOpts struct {
	listen string
}

// serveCmd runs reviews in response to GitHub webhook deliveries.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Review pull requests on webhook delivery",
	Long: `Listen for GitHub pull_request webhooks and review each opened,
reopened, edited or updated pull request. Reports go to the configured
sinks; use the comment format to post them back to the pull request.

Routes: POST /webhook/github, GET /healthz, GET /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if serveOpts.listen != "" {
			cfg.Webhook.Listen = serveOpts.listen
		}

		gh, err := newGitHub(cfg, logger)
		if err != nil {
			return err
		}
		metrics := observability.NewMetrics()
		sink, err := output.FromConfig(cfg.Output, output.Env{
			Stdout:    cmd.OutOrStdout(),
			NoColor:   true,
			Commenter: gh,
			Comment:   []output.CommentOption{output.WithCommentLogger(logger)},
		})
		if err != nil {
			return err
		}

		orc, err := orchestrator.New(cfg, analyzer.Deps{Upstream: gh, Logger: logger},
			orchestrator.WithSink(sink),
			orchestrator.WithMetrics(metrics))
		if err != nil {
			return err
		}
		defer orc.Close()

		secret := os.Getenv(cfg.Webhook.SecretEnv)
		if secret == "" {
			logger.Warn("webhook secret not set, signatures are not verified",
				observability.String("secret_env", cfg.Webhook.SecretEnv))
		}
		hooks, err := webhook.NewServer(orc, webhook.Options{
			Secret:    secret,
			Workers:   cfg.Webhook.Workers,
			QueueSize: cfg.Webhook.QueueSize,
			Logger:    logger.With(observability.String("component", "webhook")),
			Metrics:   metrics,
		})
		if err != nil {
			return err
		}
		defer hooks.Close()

		srv := &http.Server{
			Addr:              cfg.Webhook.Listen,
			Handler:           hooks.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := sigctx.WithSignal(cmd.Context())
		defer cancel()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("webhook server listening", observability.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down webhook server")
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveOpts.listen, "listen", "l", "", "Listen address, overrides webhook.listen")
}
