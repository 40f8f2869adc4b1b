// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package platform talks to the code-hosting service that holds the pull
// requests under review.
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is wrapped by errors for resources the upstream reports as absent.
var ErrNotFound = errors.New("not found")

// Target identifies one pull request.
type Target struct {
	Repository string // owner/name
	Number     int
}

func (t Target) String() string {
	return fmt.Sprintf("%s#%d", t.Repository, t.Number)
}

// Validate checks that the target is well formed.
func (t Target) Validate() error {
	owner, name, ok := strings.Cut(t.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("repository must be owner/name, got %q", t.Repository)
	}
	if t.Number <= 0 {
		return fmt.Errorf("pull request number must be positive, got %d", t.Number)
	}
	return nil
}

// PullRequest contains pull request metadata.
type PullRequest struct {
	Number    int
	Title     string
	Body      string
	Author    string
	State     string
	BaseSHA   string
	HeadSHA   string
	BaseRef   string
	HeadRef   string
	Labels    []string
	HTMLURL   string
	CreatedAt time.Time
}

// File is a changed file as listed by the upstream.
type File struct {
	Path         string
	PreviousPath string
	Status       string
	Additions    int
	Deletions    int
	Patch        string
}

// Upstream is the data source the analysis reads from. Each method performs
// a single attempt; retrying is the caller's job. Errors are classifiable
// with pkg/errors (fatal, transient or rate limited).
type Upstream interface {
	// PullRequest fetches PR metadata.
	PullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)

	// ChangedFiles lists every file changed by the PR.
	ChangedFiles(ctx context.Context, repo string, number int) ([]File, error)

	// FileContent returns a file's raw bytes at ref.
	FileContent(ctx context.Context, repo, path, ref string) ([]byte, error)

	// CoverageReport returns a coverage report stored in the repository at ref.
	CoverageReport(ctx context.Context, repo, path, ref string) ([]byte, error)
}

// Commenter posts the review back to the pull request.
type Commenter interface {
	// UpsertComment replaces the comment containing marker, or creates one.
	UpsertComment(ctx context.Context, repo string, number int, marker, body string) error
}
