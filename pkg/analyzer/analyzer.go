// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package analyzer implements the quality dimensions a review run scores:
// documentation, test coverage, code quality and PR description quality.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/codeguardian-bot/codeguardian/pkg/backoff"
	"github.com/codeguardian-bot/codeguardian/pkg/cache"
	"github.com/codeguardian-bot/codeguardian/pkg/config"
	"github.com/codeguardian-bot/codeguardian/pkg/fetch"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

var (
	// ErrAnalyzerNotFound is returned when no factory is registered for an id.
	ErrAnalyzerNotFound = errors.New("analyzer not found")
	// ErrInvalidAnalyzer is returned when trying to register an invalid factory.
	ErrInvalidAnalyzer = errors.New("invalid analyzer: id and factory are required")
)

// Analyzer computes one quality dimension from a PR context.
type Analyzer interface {
	ID() review.AnalyzerID
	// Analyze returns a Result with status ok. An error means the analyzer
	// could not reach a verdict.
	Analyze(ctx context.Context, pr *review.PRContext) (*review.Result, error)
}

// Fingerprinter is implemented by analyzers whose result depends on
// something other than the whole PR context. The returned value keys the
// result cache.
type Fingerprinter interface {
	Fingerprint(pr *review.PRContext) string
}

// Fingerprint returns the cache fingerprint of a for pr.
func Fingerprint(a Analyzer, pr *review.PRContext) string {
	if f, ok := a.(Fingerprinter); ok {
		return f.Fingerprint(pr)
	}
	return pr.Fingerprint()
}

// Deps are the shared collaborators handed to every analyzer.
type Deps struct {
	Upstream platform.Upstream
	Fetcher  *fetch.Fetcher
	// Files caches raw file content per (repository, path, ref). Optional.
	Files  *cache.TTLCache[string, []byte]
	Logger observability.Logger
	Clock  func() time.Time
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Upstream == nil {
		return d, errors.New("analyzer deps: upstream is required")
	}
	if d.Fetcher == nil {
		f, err := fetch.New(1, backoff.DefaultPolicy())
		if err != nil {
			return d, err
		}
		d.Fetcher = f
	}
	if d.Logger == nil {
		d.Logger = observability.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d, nil
}

var fileKeys = cache.NewKeyGenerator()

// fileContent fetches a file through the retrying fetcher, consulting the
// file cache first.
func (d Deps) fileContent(ctx context.Context, repo, path, ref string) ([]byte, error) {
	key := fileKeys.FileKey(repo, path, ref)
	if d.Files != nil {
		if b, ok := d.Files.Get(key); ok {
			return b, nil
		}
	}

	b, err := fetch.Do(ctx, d.Fetcher, func(ctx context.Context) ([]byte, error) {
		return d.Upstream.FileContent(ctx, repo, path, ref)
	}, fetch.DefaultClassifier)
	if err != nil {
		return nil, err
	}

	if d.Files != nil {
		d.Files.Set(key, b, 0)
	}
	return b, nil
}

// Factory builds an analyzer from the resolved configuration.
type Factory func(cfg *config.Config, deps Deps) (Analyzer, error)

// Registry maps analyzer ids to factories. Registration is the extension
// point for additional analyzers compiled into the binary.
type Registry struct {
	mu        sync.RWMutex
	factories map[review.AnalyzerID]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[review.AnalyzerID]Factory)}
}

// DefaultRegistry returns a registry holding the built-in analyzers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for id, f := range map[review.AnalyzerID]Factory{
		review.Documentation: newDocumentation,
		review.Coverage:      newCoverage,
		review.CodeQuality:   newCodeQuality,
		review.PRQuality:     newPRQuality,
	} {
		if err := r.Register(id, f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a factory. Registering an id twice is an error.
func (r *Registry) Register(id review.AnalyzerID, f Factory) error {
	if id == "" || f == nil {
		return ErrInvalidAnalyzer
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("analyzer %q already registered", id)
	}
	r.factories[id] = f
	return nil
}

// Exists checks if an analyzer is registered.
func (r *Registry) Exists(id review.AnalyzerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []review.AnalyzerID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]review.AnalyzerID, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Build constructs the analyzer registered under id.
func (r *Registry) Build(id review.AnalyzerID, cfg *config.Config, deps Deps) (Analyzer, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAnalyzerNotFound, id)
	}

	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return f(cfg, deps)
}

// configFingerprint folds an analyzer's settings into the context
// fingerprint so a threshold change invalidates cached results.
func configFingerprint(pr *review.PRContext, settings any) string {
	return cache.Fingerprint(pr.Fingerprint(), fmt.Sprintf("%+v", settings))
}
