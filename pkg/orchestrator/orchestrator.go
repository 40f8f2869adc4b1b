// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package orchestrator runs the enabled analyzers against one pull request,
// serves repeated work from the result cache and aggregates the results
// into a report for the configured sink.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeguardian-bot/codeguardian/pkg/analyzer"
	"github.com/codeguardian-bot/codeguardian/pkg/backoff"
	"github.com/codeguardian-bot/codeguardian/pkg/buildctx"
	"github.com/codeguardian-bot/codeguardian/pkg/cache"
	"github.com/codeguardian-bot/codeguardian/pkg/config"
	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/fetch"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/perf"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// ContextBuilder produces the PR snapshot a run analyzes.
type ContextBuilder interface {
	Build(ctx context.Context, target platform.Target) (*review.PRContext, error)
}

// slot is one configured analyzer. A nil analyzer means disabled.
type slot struct {
	id       review.AnalyzerID
	analyzer analyzer.Analyzer
}

// Orchestrator executes review runs. One instance serves the whole process
// and is safe for concurrent Run calls.
type Orchestrator struct {
	cfg      *config.Config
	slots    []slot
	required []review.AnalyzerID

	builder ContextBuilder
	results *ResultCache
	pool    *perf.WorkerPool
	sink    Sink
	keys    *cache.KeyGenerator

	logger  observability.Logger
	metrics *observability.Metrics
	clock   func() time.Time
	onState StateHook
	newID   func() string

	ownsCache bool
}

type options struct {
	registry *analyzer.Registry
	builder  ContextBuilder
	results  *ResultCache
	noCache  bool
	sink     Sink
	metrics  *observability.Metrics
	onState  StateHook
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*options)

// WithRegistry replaces the built-in analyzer registry.
func WithRegistry(r *analyzer.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithContextBuilder replaces the upstream-backed context builder.
func WithContextBuilder(b ContextBuilder) Option {
	return func(o *options) { o.builder = b }
}

// WithResultCache shares an existing result cache. The caller keeps
// ownership and must close it.
func WithResultCache(c *ResultCache) Option {
	return func(o *options) { o.results = c }
}

// WithoutResultCache disables result caching regardless of cache.enabled.
func WithoutResultCache() Option {
	return func(o *options) { o.noCache = true }
}

// WithSink sets where finished reports go.
func WithSink(s Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithMetrics records run, analyzer and cache metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStateHook observes run state transitions.
func WithStateHook(h StateHook) Option {
	return func(o *options) { o.onState = h }
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// New validates cfg and resolves the configured analyzers. An invalid
// configuration is returned as a ConfigError before anything runs.
func New(cfg *config.Config, deps analyzer.Deps, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = analyzer.DefaultRegistry()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Fetcher == nil {
		f, err := newFetcher(cfg.Retry, deps.Logger, o.metrics)
		if err != nil {
			return nil, err
		}
		deps.Fetcher = f
	}
	if deps.Files == nil && cfg.Cache.Enabled {
		deps.Files = cache.New[string, []byte](cache.Options{
			MaxSize:    cfg.Cache.MaxSize,
			DefaultTTL: cfg.Cache.TTL,
			Clock:      deps.Clock,
		})
	}

	orc := &Orchestrator{
		cfg:     cfg,
		builder: o.builder,
		sink:    o.sink,
		keys:    cache.NewKeyGenerator(),
		logger:  deps.Logger,
		metrics: o.metrics,
		clock:   deps.Clock,
		onState: o.onState,
		newID:   o.newID,
	}
	for _, id := range cfg.Run.Required {
		orc.required = append(orc.required, review.AnalyzerID(id))
	}

	if orc.builder == nil {
		if deps.Upstream == nil {
			return nil, gerrors.ConfigError("orchestrator: upstream is required", nil)
		}
		pruner, err := buildctx.NewPruner(buildctx.WithExclude(cfg.Run.Exclude...))
		if err != nil {
			return nil, gerrors.ConfigError("orchestrator: run.exclude", err)
		}
		orc.builder, err = buildctx.NewBuilder(deps.Upstream, deps.Fetcher,
			buildctx.WithPruner(pruner), buildctx.WithLogger(deps.Logger))
		if err != nil {
			return nil, err
		}
	}

	for _, name := range cfg.AnalyzerOrder() {
		id := review.AnalyzerID(name)
		if !o.registry.Exists(id) {
			return nil, gerrors.ConfigError(fmt.Sprintf("run.analyzers: unknown analyzer %q", name),
				fmt.Errorf("%w: %s", analyzer.ErrAnalyzerNotFound, id))
		}
		if !cfg.Enabled(name) {
			orc.slots = append(orc.slots, slot{id: id})
			continue
		}
		a, err := o.registry.Build(id, cfg, deps)
		if err != nil {
			return nil, gerrors.ConfigError(fmt.Sprintf("orchestrator: analyzer %s", id), err)
		}
		orc.slots = append(orc.slots, slot{id: id, analyzer: a})
	}

	switch {
	case o.noCache || !cfg.Cache.Enabled:
	case o.results != nil:
		orc.results = o.results
	default:
		rc, err := OpenResultCache(cfg.Cache, deps.Clock, deps.Logger, o.metrics)
		if err != nil {
			return nil, fmt.Errorf("open result cache: %w", err)
		}
		orc.results = rc
		orc.ownsCache = true
	}

	pool, err := perf.NewWorkerPool(cfg.Run.Workers,
		perf.WithQueueSize(max(len(orc.slots), 1)),
		perf.WithPanicHandler(func(r any) {
			deps.Logger.Error("analyzer task panicked", observability.Any("panic", r))
		}))
	if err != nil {
		orc.closeCache()
		return nil, gerrors.ConfigError("orchestrator: run.workers", err)
	}
	pool.Start()
	orc.pool = pool
	return orc, nil
}

func newFetcher(cfg config.RetryConfig, logger observability.Logger, metrics *observability.Metrics) (*fetch.Fetcher, error) {
	policy, err := backoff.New(cfg.BaseDelay, cfg.MaxDelay, cfg.Jitter)
	if err != nil {
		return nil, gerrors.ConfigError("retry policy", err)
	}
	f, err := fetch.New(cfg.MaxRetries, policy, fetch.WithLogger(logger), fetch.WithMetrics(metrics))
	if err != nil {
		return nil, gerrors.ConfigError("retry policy", err)
	}
	return f, nil
}

// Cache returns the result cache, or nil when caching is off.
func (o *Orchestrator) Cache() *ResultCache {
	return o.results
}

// Close stops the worker pool and releases a cache the orchestrator opened.
func (o *Orchestrator) Close() error {
	o.pool.Stop()
	return o.closeCache()
}

func (o *Orchestrator) closeCache() error {
	if o.ownsCache && o.results != nil {
		return o.results.Close()
	}
	return nil
}

// Run performs one review of target. A report is always returned. The
// error is non-nil only when the sink failed to deliver it.
func (o *Orchestrator) Run(ctx context.Context, target platform.Target) (*review.Report, error) {
	start := o.clock()
	runID := o.newID()
	log := o.logger.With(observability.String("run_id", runID), observability.String("target", target.String()))
	o.setState(runID, StateInitialized)

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Run.Timeout)
	defer cancel()

	report := &review.Report{
		RunID:      runID,
		Repository: target.Repository,
		PRNumber:   target.Number,
		Required:   o.required,
	}

	pr, err := o.builder.Build(runCtx, target)
	if err != nil {
		log.Error("failed to build PR context", observability.Err(err))
		report.Results = o.contextFailure(err)
	} else {
		report.HeadSHA = pr.HeadSHA()
		o.setState(runID, StateContextBuilt)
		o.setState(runID, StateRunning)
		report.Results = o.runAnalyzers(runCtx, pr, log)
	}

	report.Passed = review.Aggregate(report.Results, report.Required)
	report.GeneratedAt = o.clock()
	report.Duration = report.GeneratedAt.Sub(start)
	o.metrics.RecordVerdict(report.Passed)
	o.setState(runID, StateAggregated)

	counts := report.Counts()
	log.Info("review run finished",
		observability.Bool("passed", report.Passed),
		observability.Int("ok", counts[review.StatusOK]),
		observability.Int("skipped", counts[review.StatusSkipped]),
		observability.Int("error", counts[review.StatusError]),
		observability.Duration("duration", report.Duration))

	if o.sink != nil {
		if err := o.sink.Deliver(ctx, report); err != nil {
			log.Error("failed to deliver report", observability.Err(err))
			return report, fmt.Errorf("deliver report: %w", err)
		}
	}
	o.setState(runID, StateDelivered)
	return report, nil
}

// contextFailure produces the results of a run whose context could not be
// built: disabled analyzers stay skipped and the rest become errors.
func (o *Orchestrator) contextFailure(err error) []*review.Result {
	results := make([]*review.Result, len(o.slots))
	for i, s := range o.slots {
		if s.analyzer == nil {
			results[i] = review.Skipped(s.id)
			continue
		}
		results[i] = review.Errored(s.id, fmt.Errorf("build PR context: %w", err))
		o.metrics.RecordAnalyzer(string(s.id), string(review.StatusError), 0)
	}
	return results
}

type outcome struct {
	idx int
	res *review.Result
}

// runAnalyzers fills one result per slot in configured order. Cache hits
// are served inline and misses go to the worker pool. When ctx ends first,
// unfinished slots get an error placeholder and their tasks are abandoned.
func (o *Orchestrator) runAnalyzers(ctx context.Context, pr *review.PRContext, log observability.Logger) []*review.Result {
	results := make([]*review.Result, len(o.slots))
	done := make(chan outcome, len(o.slots))
	pending := 0

	for i, s := range o.slots {
		if s.analyzer == nil {
			results[i] = review.Skipped(s.id)
			o.metrics.RecordAnalyzer(string(s.id), string(review.StatusSkipped), 0)
			continue
		}

		key := o.keys.ResultKey(string(s.id), analyzer.Fingerprint(s.analyzer, pr))
		if res, ok := o.cached(ctx, key); ok {
			log.Debug("analyzer result served from cache", observability.String("analyzer", string(s.id)))
			results[i] = res
			continue
		}

		err := o.pool.Submit(ctx, func() {
			done <- outcome{idx: i, res: o.invoke(ctx, s, pr, key, log)}
		})
		if err != nil {
			results[i] = review.Errored(s.id, abandoned(ctx, err))
			continue
		}
		pending++
	}

	for pending > 0 {
		select {
		case out := <-done:
			results[out.idx] = out.res
			pending--
		case <-ctx.Done():
			for i, res := range results {
				if res == nil {
					results[i] = review.Errored(o.slots[i].id, abandoned(ctx, ctx.Err()))
					o.metrics.RecordAnalyzer(string(o.slots[i].id), string(review.StatusError), 0)
				}
			}
			log.Warn("review run budget exhausted", observability.Int("unfinished", pending))
			return results
		}
	}
	return results
}

func abandoned(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return gerrors.TimeoutError("analysis timed out", err)
	}
	return gerrors.TimeoutError("analysis canceled", err)
}

func (o *Orchestrator) cached(ctx context.Context, key string) (*review.Result, bool) {
	if o.results == nil {
		return nil, false
	}
	res, ok := o.results.Get(ctx, key)
	o.metrics.RecordCacheHit(ok && res != nil)
	if !ok || res == nil {
		return nil, false
	}
	out := res.Clone()
	out.Cached = true
	return out, true
}

// invoke runs one analyzer. Errors and panics become error results.
func (o *Orchestrator) invoke(ctx context.Context, s slot, pr *review.PRContext, key string, log observability.Logger) (res *review.Result) {
	start := o.clock()
	defer func() {
		if r := recover(); r != nil {
			res = review.Errored(s.id, gerrors.AnalyzerFault(string(s.id), fmt.Errorf("panic: %v", r)))
		}
		res.Duration = o.clock().Sub(start)
		o.metrics.RecordAnalyzer(string(s.id), string(res.Status), res.Duration)
		if res.Status == review.StatusError {
			log.Warn("analyzer failed", observability.String("analyzer", string(s.id)), observability.String("error", res.Error))
		}
	}()

	out, err := s.analyzer.Analyze(ctx, pr)
	if err != nil {
		return review.Errored(s.id, gerrors.AnalyzerFault(string(s.id), err))
	}
	if out == nil {
		return review.Errored(s.id, gerrors.AnalyzerFault(string(s.id), errors.New("no result returned")))
	}

	out.AnalyzerID = s.id
	if out.Status == "" {
		out.Status = review.StatusOK
	}
	if out.Status == review.StatusOK && o.results != nil {
		stored := out.Clone()
		stored.Duration = o.clock().Sub(start)
		o.results.Set(context.WithoutCancel(ctx), key, stored, 0)
	}
	return out
}

func (o *Orchestrator) setState(runID string, s State) {
	if o.onState != nil {
		o.onState(runID, s)
	}
}
