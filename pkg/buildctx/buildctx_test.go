// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package buildctx

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguardian-bot/codeguardian/pkg/backoff"
	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/fetch"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

type stubUpstream struct {
	pr        *platform.PullRequest
	files     []platform.File
	prErr     error
	filesErr  error
	failFirst int32 // transient failures before ChangedFiles succeeds
	fileCalls atomic.Int32
}

func (s *stubUpstream) PullRequest(context.Context, string, int) (*platform.PullRequest, error) {
	return s.pr, s.prErr
}

func (s *stubUpstream) ChangedFiles(context.Context, string, int) ([]platform.File, error) {
	n := s.fileCalls.Add(1)
	if n <= s.failFirst {
		return nil, gerrors.TransientError("502 bad gateway", nil)
	}
	return s.files, s.filesErr
}

func (s *stubUpstream) FileContent(context.Context, string, string, string) ([]byte, error) {
	return nil, platform.ErrNotFound
}

func (s *stubUpstream) CoverageReport(context.Context, string, string, string) ([]byte, error) {
	return nil, platform.ErrNotFound
}

func testFetcher(t *testing.T, maxRetries int) *fetch.Fetcher {
	t.Helper()
	f, err := fetch.New(maxRetries, backoff.DefaultPolicy(),
		fetch.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	require.NoError(t, err)
	return f
}

var target = platform.Target{Repository: "acme/widgets", Number: 7}

func TestBuild(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	up := &stubUpstream{
		pr: &platform.PullRequest{
			Number: 7, Title: "Add parser", Body: "Fixes #3", Author: "octo",
			BaseSHA: "b1", HeadSHA: "h1", BaseRef: "main", HeadRef: "parser",
			Labels: []string{"feature"}, CreatedAt: created,
		},
		files: []platform.File{
			{Path: "parser.go", Status: "added", Additions: 40, Patch: "@@ -0,0 +1,2 @@\n+a\n+b"},
			{Path: "old.go", Status: "removed", Deletions: 10},
			{Path: "api/v2.go", PreviousPath: "api/v1.go", Status: "renamed"},
			{Path: "util.go", Status: "changed"},
			{Path: "vendor/lib/x.go", Status: "modified"},
			{Path: "go.sum", Status: "modified"},
		},
		failFirst: 1,
	}
	pruner, err := NewPruner(WithExclude("go.sum"))
	require.NoError(t, err)
	b, err := NewBuilder(up, testFetcher(t, 3), WithPruner(pruner))
	require.NoError(t, err)

	pr, err := b.Build(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, "acme/widgets", pr.Repository())
	assert.Equal(t, 7, pr.Number())
	assert.Equal(t, "Add parser", pr.Title())
	assert.Equal(t, "Fixes #3", pr.Description())
	assert.Equal(t, "h1", pr.HeadSHA())
	assert.Equal(t, created, pr.CreatedAt())
	assert.Equal(t, []string{"feature"}, pr.Labels())
	assert.Equal(t, int32(2), up.fileCalls.Load(), "transient failure is retried")

	var paths []string
	statuses := map[string]review.FileStatus{}
	for _, f := range pr.Files() {
		paths = append(paths, f.Path)
		statuses[f.Path] = f.Status
	}
	assert.Equal(t, []string{"parser.go", "old.go", "api/v2.go", "util.go"}, paths)
	assert.Equal(t, review.FileAdded, statuses["parser.go"])
	assert.Equal(t, review.FileRemoved, statuses["old.go"])
	assert.Equal(t, review.FileRenamed, statuses["api/v2.go"])
	assert.Equal(t, review.FileModified, statuses["util.go"])

	renamed, ok := pr.File("api/v2.go")
	require.True(t, ok)
	assert.Equal(t, "api/v1.go", renamed.PreviousPath)
}

func TestBuildFailures(t *testing.T) {
	t.Run("invalid target", func(t *testing.T) {
		b, err := NewBuilder(&stubUpstream{}, testFetcher(t, 1))
		require.NoError(t, err)
		_, err = b.Build(context.Background(), platform.Target{Repository: "widgets", Number: 1})
		assert.True(t, gerrors.IsType(err, gerrors.ErrFatal))
	})

	t.Run("pull request not found", func(t *testing.T) {
		up := &stubUpstream{prErr: gerrors.FatalError("status 404", platform.ErrNotFound)}
		b, err := NewBuilder(up, testFetcher(t, 3))
		require.NoError(t, err)
		_, err = b.Build(context.Background(), target)
		assert.ErrorIs(t, err, platform.ErrNotFound)
	})

	t.Run("file listing exhausted", func(t *testing.T) {
		up := &stubUpstream{pr: &platform.PullRequest{Number: 7}, failFirst: 10}
		b, err := NewBuilder(up, testFetcher(t, 2))
		require.NoError(t, err)
		_, err = b.Build(context.Background(), target)
		assert.True(t, gerrors.IsType(err, gerrors.ErrRetriesExhausted))
		assert.Equal(t, int32(2), up.fileCalls.Load())
	})

	t.Run("missing deps", func(t *testing.T) {
		_, err := NewBuilder(nil, testFetcher(t, 1))
		assert.True(t, gerrors.IsType(err, gerrors.ErrConfig))
		_, err = NewBuilder(&stubUpstream{}, nil)
		assert.True(t, gerrors.IsType(err, gerrors.ErrConfig))
	})
}

func TestPrunerShouldInclude(t *testing.T) {
	p, err := NewPruner(WithExclude("*.lock", "docs/generated/*"))
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"pkg/api/handler.py", true},
		{"yarn.lock", false},
		{"web/package.lock", false},
		{"docs/generated/api.md", false},
		{"docs/guide.md", true},
		{"vendor/github.com/x/y.go", false},
		{"node_modules/left-pad/index.js", false},
		{"../etc/passwd", false},
		{"/abs/path.go", false},
		{"a/./b.go", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, p.ShouldInclude(tt.path))
		})
	}

	keep, err := NewPruner(WithVendor())
	require.NoError(t, err)
	assert.True(t, keep.ShouldInclude("vendor/github.com/x/y.go"))

	_, err = NewPruner(WithExclude("[a-"))
	assert.Error(t, err)
}
