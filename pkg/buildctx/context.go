// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package buildctx assembles the immutable PR context a review run analyzes
// from upstream metadata and the changed-file list.
package buildctx

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/fetch"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// Builder builds PR contexts. It is safe for concurrent use.
type Builder struct {
	upstream platform.Upstream
	fetcher  *fetch.Fetcher
	pruner   *Pruner
	logger   observability.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithPruner filters the changed files before they reach the analyzers.
func WithPruner(p *Pruner) Option {
	return func(b *Builder) { b.pruner = p }
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder reading from up through f.
func NewBuilder(up platform.Upstream, f *fetch.Fetcher, opts ...Option) (*Builder, error) {
	if up == nil {
		return nil, gerrors.ConfigError("context builder: upstream is required", nil)
	}
	if f == nil {
		return nil, gerrors.ConfigError("context builder: fetcher is required", nil)
	}
	b := &Builder{upstream: up, fetcher: f, logger: observability.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build fetches the pull request and its changed files concurrently and
// returns the snapshot. Either fetch failing fails the build.
func (b *Builder) Build(ctx context.Context, target platform.Target) (*review.PRContext, error) {
	if err := target.Validate(); err != nil {
		return nil, gerrors.FatalError("invalid target", err)
	}

	var (
		pr    *platform.PullRequest
		files []platform.File
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pr, err = fetch.Do(gctx, b.fetcher, func(ctx context.Context) (*platform.PullRequest, error) {
			return b.upstream.PullRequest(ctx, target.Repository, target.Number)
		}, fetch.DefaultClassifier)
		if err != nil {
			return fmt.Errorf("fetch pull request %s: %w", target, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		files, err = fetch.Do(gctx, b.fetcher, func(ctx context.Context) ([]platform.File, error) {
			return b.upstream.ChangedFiles(ctx, target.Repository, target.Number)
		}, fetch.DefaultClassifier)
		if err != nil {
			return fmt.Errorf("list changed files %s: %w", target, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, gerrors.FatalError(fmt.Sprintf("upstream returned no pull request for %s", target), nil)
	}

	changed := make([]review.ChangedFile, 0, len(files))
	for _, f := range files {
		changed = append(changed, review.ChangedFile{
			Path:         f.Path,
			PreviousPath: f.PreviousPath,
			Status:       fileStatus(f.Status),
			Additions:    f.Additions,
			Deletions:    f.Deletions,
			Patch:        f.Patch,
		})
	}
	if b.pruner != nil {
		var dropped []string
		changed, dropped = b.pruner.Prune(changed)
		if len(dropped) > 0 {
			b.logger.Debug("pruned changed files",
				observability.String("target", target.String()),
				observability.Int("dropped", len(dropped)),
				observability.Any("paths", dropped))
		}
	}

	number := pr.Number
	if number == 0 {
		number = target.Number
	}
	return review.NewPRContext(review.PRParams{
		Repository:  target.Repository,
		Number:      number,
		Title:       pr.Title,
		Description: pr.Body,
		Author:      pr.Author,
		BaseSHA:     pr.BaseSHA,
		HeadSHA:     pr.HeadSHA,
		BaseRef:     pr.BaseRef,
		HeadRef:     pr.HeadRef,
		CreatedAt:   pr.CreatedAt,
		Labels:      pr.Labels,
		Files:       changed,
	}), nil
}

// fileStatus maps upstream status names onto review statuses. GitHub also
// reports "copied" and "changed", both of which are content changes.
func fileStatus(s string) review.FileStatus {
	switch s {
	case "added":
		return review.FileAdded
	case "removed", "deleted":
		return review.FileRemoved
	case "renamed":
		return review.FileRenamed
	}
	return review.FileModified
}
