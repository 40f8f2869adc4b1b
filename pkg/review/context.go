// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package review holds the data shared by analyzers, the orchestrator and
// sinks: the pull request snapshot under analysis, per-analyzer results and
// the aggregated report.
package review

import (
	"slices"
	"strconv"
	"time"

	"github.com/codeguardian-bot/codeguardian/pkg/cache"
)

// FileStatus is the change type of a file in a pull request.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileRemoved  FileStatus = "removed"
	FileRenamed  FileStatus = "renamed"
)

// ChangedFile is one file touched by the pull request.
type ChangedFile struct {
	Path         string
	PreviousPath string
	Status       FileStatus
	Additions    int
	Deletions    int
	Patch        string
}

// Removed reports whether the file no longer exists at the head commit.
func (f ChangedFile) Removed() bool {
	return f.Status == FileRemoved
}

// PRParams carries the fields used to build a PRContext.
type PRParams struct {
	Repository  string // owner/name
	Number      int
	Title       string
	Description string
	Author      string
	BaseSHA     string
	HeadSHA     string
	BaseRef     string
	HeadRef     string
	CreatedAt   time.Time
	Labels      []string
	Files       []ChangedFile
}

// PRContext is an immutable snapshot of the pull request being analyzed.
// It is built once per run and read concurrently by every analyzer.
type PRContext struct {
	p           PRParams
	fingerprint string
}

// NewPRContext copies params into a new snapshot.
func NewPRContext(params PRParams) *PRContext {
	params.Labels = slices.Clone(params.Labels)
	params.Files = slices.Clone(params.Files)

	paths := make([]string, 0, len(params.Files))
	for _, f := range params.Files {
		paths = append(paths, f.Path)
	}
	slices.Sort(paths)

	inputs := append([]string{params.Repository, strconv.Itoa(params.Number), params.HeadSHA}, paths...)
	return &PRContext{p: params, fingerprint: cache.Fingerprint(inputs...)}
}

func (c *PRContext) Repository() string   { return c.p.Repository }
func (c *PRContext) Number() int          { return c.p.Number }
func (c *PRContext) Title() string        { return c.p.Title }
func (c *PRContext) Description() string  { return c.p.Description }
func (c *PRContext) Author() string       { return c.p.Author }
func (c *PRContext) BaseSHA() string      { return c.p.BaseSHA }
func (c *PRContext) HeadSHA() string      { return c.p.HeadSHA }
func (c *PRContext) BaseRef() string      { return c.p.BaseRef }
func (c *PRContext) HeadRef() string      { return c.p.HeadRef }
func (c *PRContext) CreatedAt() time.Time { return c.p.CreatedAt }

// Labels returns a copy of the PR labels.
func (c *PRContext) Labels() []string { return slices.Clone(c.p.Labels) }

// Files returns a copy of the changed files.
func (c *PRContext) Files() []ChangedFile { return slices.Clone(c.p.Files) }

// File looks up a changed file by path.
func (c *PRContext) File(path string) (ChangedFile, bool) {
	for _, f := range c.p.Files {
		if f.Path == path {
			return f, true
		}
	}
	return ChangedFile{}, false
}

// Fingerprint identifies the repository state: repository, PR number, head
// commit and the sorted changed paths.
func (c *PRContext) Fingerprint() string {
	return c.fingerprint
}
