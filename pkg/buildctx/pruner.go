// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package buildctx

import (
	"fmt"
	"path"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// Pruner drops changed files that should not be reviewed: vendored code,
// paths matching an exclude pattern and paths that are not clean relative
// paths.
type Pruner struct {
	exclude    []string
	keepVendor bool
}

// PrunerOption configures a Pruner.
type PrunerOption func(*Pruner)

// WithExclude adds glob patterns. A pattern matches either the full path or
// the base name, so "*.lock" excludes lock files anywhere.
func WithExclude(patterns ...string) PrunerOption {
	return func(p *Pruner) { p.exclude = append(p.exclude, patterns...) }
}

// WithVendor keeps vendored files.
func WithVendor() PrunerOption {
	return func(p *Pruner) { p.keepVendor = true }
}

// NewPruner creates a new pruner. Invalid patterns are rejected.
func NewPruner(opts ...PrunerOption) (*Pruner, error) {
	p := &Pruner{}
	for _, opt := range opts {
		opt(p)
	}
	for _, pattern := range p.exclude {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return p, nil
}

// Prune returns the files to review and the paths it dropped.
func (p *Pruner) Prune(files []review.ChangedFile) (kept []review.ChangedFile, dropped []string) {
	kept = make([]review.ChangedFile, 0, len(files))
	for _, f := range files {
		if p.ShouldInclude(f.Path) {
			kept = append(kept, f)
		} else {
			dropped = append(dropped, f.Path)
		}
	}
	return kept, dropped
}

// ShouldInclude determines if a file should be included.
func (p *Pruner) ShouldInclude(name string) bool {
	if sanitizePath(name) != nil {
		return false
	}
	if !p.keepVendor && enry.IsVendor(name) {
		return false
	}
	base := path.Base(name)
	for _, pattern := range p.exclude {
		if ok, _ := path.Match(pattern, name); ok {
			return false
		}
		if ok, _ := path.Match(pattern, base); ok {
			return false
		}
	}
	return true
}

// sanitizePath accepts only clean, relative, slash-separated paths.
func sanitizePath(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("invalid path: empty")
	case strings.HasPrefix(name, "/"), strings.Contains(name, `\`):
		return fmt.Errorf("invalid path %q: must be relative", name)
	case path.Clean(name) != name, name == "..", strings.HasPrefix(name, "../"):
		return fmt.Errorf("invalid path %q: contains traversal", name)
	}
	return nil
}
