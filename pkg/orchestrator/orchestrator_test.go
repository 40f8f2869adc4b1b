// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/codeguardian-bot/codeguardian/pkg/analyzer"
	"github.com/codeguardian-bot/codeguardian/pkg/config"
	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/internal/testutil"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

var target = platform.Target{Repository: "acme/widgets", Number: 42}

// nopUpstream satisfies analyzer deps for stub analyzers that never fetch.
type nopUpstream struct{}

func (nopUpstream) PullRequest(context.Context, string, int) (*platform.PullRequest, error) {
	return nil, platform.ErrNotFound
}
func (nopUpstream) ChangedFiles(context.Context, string, int) ([]platform.File, error) {
	return nil, platform.ErrNotFound
}
func (nopUpstream) FileContent(context.Context, string, string, string) ([]byte, error) {
	return nil, platform.ErrNotFound
}
func (nopUpstream) CoverageReport(context.Context, string, string, string) ([]byte, error) {
	return nil, platform.ErrNotFound
}

// staticBuilder returns a fixed context and counts builds.
type staticBuilder struct {
	pr     *review.PRContext
	err    error
	builds atomic.Int32
}

func (b *staticBuilder) Build(context.Context, platform.Target) (*review.PRContext, error) {
	b.builds.Add(1)
	return b.pr, b.err
}

func newBuilder(description string) *staticBuilder {
	return &staticBuilder{pr: review.NewPRContext(review.PRParams{
		Repository:  target.Repository,
		Number:      target.Number,
		Title:       "Add calculator",
		Description: description,
		HeadSHA:     "h1",
		Files:       []review.ChangedFile{{Path: "calc.go", Status: review.FileAdded, Additions: 10}},
	})}
}

// stub is a scripted analyzer with an invocation counter.
type stub struct {
	id    review.AnalyzerID
	calls atomic.Int32
	run   func(ctx context.Context) (*review.Result, error)
}

func (s *stub) ID() review.AnalyzerID { return s.id }

func (s *stub) Analyze(ctx context.Context, _ *review.PRContext) (*review.Result, error) {
	s.calls.Add(1)
	if s.run != nil {
		return s.run(ctx)
	}
	res := review.NewResult(s.id)
	res.Passed = true
	res.Score = 100
	return res, nil
}

func passing(id review.AnalyzerID) *stub { return &stub{id: id} }

func failing(id review.AnalyzerID) *stub {
	return &stub{id: id, run: func(context.Context) (*review.Result, error) {
		res := review.NewResult(id)
		res.AddFinding(review.Finding{Kind: "bad", Severity: review.SeverityError, Message: "bad"})
		return res, nil
	}}
}

func registryOf(t *testing.T, stubs ...*stub) *analyzer.Registry {
	t.Helper()
	r := analyzer.NewRegistry()
	for _, s := range stubs {
		s := s
		require.NoError(t, r.Register(s.id, func(*config.Config, analyzer.Deps) (analyzer.Analyzer, error) {
			return s, nil
		}))
	}
	return r
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Cache.Persistent = false
	cfg.Cache.CleanupInterval = 0
	cfg.Run.Timeout = 5 * time.Second
	return cfg
}

func newOrchestrator(t *testing.T, cfg *config.Config, deps analyzer.Deps, opts ...Option) *Orchestrator {
	t.Helper()
	if deps.Upstream == nil {
		deps.Upstream = nopUpstream{}
	}
	o, err := New(cfg, deps, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, o.Close()) })
	return o
}

func allStubs() []*stub {
	return []*stub{
		passing(review.Documentation),
		passing(review.Coverage),
		passing(review.CodeQuality),
		passing(review.PRQuality),
	}
}

func ids(report *review.Report) []review.AnalyzerID {
	var out []review.AnalyzerID
	for _, r := range report.Results {
		out = append(out, r.AnalyzerID)
	}
	return out
}

func TestRunAllPass(t *testing.T) {
	stubs := allStubs()
	b := newBuilder("desc")
	o := newOrchestrator(t, testConfig(), analyzer.Deps{},
		WithRegistry(registryOf(t, stubs...)), WithContextBuilder(b), WithRunID(func() string { return "run-1" }))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, "acme/widgets", report.Repository)
	assert.Equal(t, 42, report.PRNumber)
	assert.Equal(t, "h1", report.HeadSHA)
	assert.False(t, report.GeneratedAt.IsZero())
	assert.Equal(t, int32(1), b.builds.Load())
	if diff := cmp.Diff(review.AllAnalyzers, ids(report)); diff != "" {
		t.Errorf("result order mismatch (-want +got):\n%s", diff)
	}
	for _, r := range report.Results {
		assert.Equal(t, review.StatusOK, r.Status)
		assert.False(t, r.Cached)
	}
}

func TestAnalyzerIsolation(t *testing.T) {
	panicky := &stub{id: review.Coverage, run: func(context.Context) (*review.Result, error) {
		panic("index out of range")
	}}
	broken := &stub{id: review.CodeQuality, run: func(context.Context) (*review.Result, error) {
		return nil, gerrors.RetriesExhausted(3, gerrors.TransientError("502 bad gateway", nil))
	}}
	stubs := []*stub{passing(review.Documentation), panicky, broken, passing(review.PRQuality)}

	o := newOrchestrator(t, testConfig(), analyzer.Deps{},
		WithRegistry(registryOf(t, stubs...)), WithContextBuilder(newBuilder("desc")))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, review.StatusOK, report.Result(review.Documentation).Status)
	assert.Equal(t, review.StatusOK, report.Result(review.PRQuality).Status)

	cov := report.Result(review.Coverage)
	assert.Equal(t, review.StatusError, cov.Status)
	assert.Contains(t, cov.Error, "index out of range")
	assert.Contains(t, cov.Error, "ANALYZER_FAULT")

	cq := report.Result(review.CodeQuality)
	assert.Equal(t, review.StatusError, cq.Status)
	assert.Contains(t, cq.Error, "502 bad gateway")

	assert.False(t, report.Passed)
}

func TestVerdictWithRequiredSubset(t *testing.T) {
	cfg := testConfig()
	cfg.Run.Required = []string{"pr_quality", "coverage"}

	stubs := []*stub{failing(review.Documentation), passing(review.Coverage), failing(review.CodeQuality), passing(review.PRQuality)}
	o := newOrchestrator(t, cfg, analyzer.Deps{},
		WithRegistry(registryOf(t, stubs...)), WithContextBuilder(newBuilder("desc")))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	assert.True(t, report.Passed, "only required analyzers decide the verdict")
	assert.Equal(t, []review.AnalyzerID{review.PRQuality, review.Coverage}, report.Required)

	cfg2 := testConfig()
	cfg2.Run.Required = []string{"documentation"}
	o2 := newOrchestrator(t, cfg2, analyzer.Deps{},
		WithRegistry(registryOf(t, failing(review.Documentation), passing(review.Coverage),
			passing(review.CodeQuality), passing(review.PRQuality))),
		WithContextBuilder(newBuilder("desc")))

	report, err = o2.Run(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, report.Passed)
}

func TestPRQualityShortDescriptionEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.Documentation.Enabled = false
	cfg.Coverage.Enabled = false
	cfg.CodeQuality.Enabled = false
	cfg.PRQuality.MinDescriptionLength = 50
	cfg.PRQuality.RequireIssueLink = false
	cfg.PRQuality.RequireTestSummary = false

	o := newOrchestrator(t, cfg, analyzer.Deps{}, WithContextBuilder(newBuilder("Adds the calculator.")))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)

	res := report.Result(review.PRQuality)
	require.NotNil(t, res)
	assert.Equal(t, review.StatusOK, res.Status)
	assert.False(t, res.Passed)
	require.Len(t, res.Findings, 1)
	assert.Contains(t, res.Findings[0].Message, "20 characters")
	assert.Contains(t, res.Findings[0].Message, "minimum of 50")
	assert.False(t, report.Passed)
}

func TestDisabledAnalyzerIsSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Coverage.Enabled = false

	cov := failing(review.Coverage)
	stubs := []*stub{passing(review.Documentation), cov, passing(review.CodeQuality), passing(review.PRQuality)}
	o := newOrchestrator(t, cfg, analyzer.Deps{},
		WithRegistry(registryOf(t, stubs...)), WithContextBuilder(newBuilder("desc")))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)

	res := report.Result(review.Coverage)
	require.NotNil(t, res)
	assert.Equal(t, review.StatusSkipped, res.Status)
	assert.Zero(t, cov.calls.Load(), "disabled analyzer must not run")
	assert.True(t, report.Passed, "skipped results are excluded from the verdict")
	assert.Equal(t, 1, report.Counts()[review.StatusSkipped])
}

func TestSecondRunServedFromCache(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.TTL = time.Hour

	stubs := allStubs()
	b := newBuilder("desc")
	o := newOrchestrator(t, cfg, analyzer.Deps{},
		WithRegistry(registryOf(t, stubs...)), WithContextBuilder(b))

	first, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	for _, s := range stubs {
		require.Equal(t, int32(1), s.calls.Load())
	}

	second, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	for _, s := range stubs {
		assert.Equal(t, int32(1), s.calls.Load(), "%s invoked again", s.id)
	}
	for _, r := range second.Results {
		assert.True(t, r.Cached)
	}
	assert.Equal(t, int32(2), b.builds.Load(), "each run rebuilds its context")
	assert.Equal(t, first.Passed, second.Passed)
	assert.NotEqual(t, first.RunID, second.RunID)

	// Served copies must not alias the cached value.
	second.Results[0].Suggestions = append(second.Results[0].Suggestions, "mutated")
	third, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	assert.NotContains(t, third.Results[0].Suggestions, "mutated")
}

func TestCacheExpiryAndErrorsNotCached(t *testing.T) {
	clk := testutil.NewClock()
	cfg := testConfig()
	cfg.Cache.TTL = time.Hour
	cfg.Documentation.Enabled = false
	cfg.Coverage.Enabled = false

	ok := passing(review.CodeQuality)
	flaky := &stub{id: review.PRQuality, run: func(context.Context) (*review.Result, error) {
		return nil, errors.New("boom")
	}}
	o := newOrchestrator(t, cfg, analyzer.Deps{Clock: clk.Now},
		WithRegistry(registryOf(t, passing(review.Documentation), passing(review.Coverage), ok, flaky)),
		WithContextBuilder(newBuilder("desc")))

	_, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	_, err = o.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ok.calls.Load())
	assert.Equal(t, int32(2), flaky.calls.Load(), "error results are never cached")

	clk.Advance(time.Hour + time.Second)
	_, err = o.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ok.calls.Load(), "expired entry is a miss")
}

func TestPersistentCacheAcrossInstances(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.Persistent = true
	cfg.Cache.Dir = t.TempDir()

	first := allStubs()
	o1, err := New(cfg, analyzer.Deps{Upstream: nopUpstream{}},
		WithRegistry(registryOf(t, first...)), WithContextBuilder(newBuilder("desc")))
	require.NoError(t, err)
	_, err = o1.Run(context.Background(), target)
	require.NoError(t, err)
	require.NoError(t, o1.Close())

	second := allStubs()
	o2 := newOrchestrator(t, cfg, analyzer.Deps{},
		WithRegistry(registryOf(t, second...)), WithContextBuilder(newBuilder("desc")))
	report, err := o2.Run(context.Background(), target)
	require.NoError(t, err)

	for _, s := range second {
		assert.Zero(t, s.calls.Load(), "%s should come from disk", s.id)
	}
	for _, r := range report.Results {
		assert.True(t, r.Cached)
		assert.Equal(t, review.StatusOK, r.Status)
	}
}

func TestRunTimeoutProducesPlaceholders(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.Run.Timeout = 50 * time.Millisecond

	release := make(chan struct{})
	slow := &stub{id: review.Coverage, run: func(context.Context) (*review.Result, error) {
		<-release
		return review.NewResult(review.Coverage), nil
	}}
	stubs := []*stub{passing(review.Documentation), slow, passing(review.CodeQuality), passing(review.PRQuality)}

	o, err := New(cfg, analyzer.Deps{Upstream: nopUpstream{}},
		WithRegistry(registryOf(t, stubs...)), WithContextBuilder(newBuilder("desc")))
	require.NoError(t, err)

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	close(release)
	require.NoError(t, o.Close())

	res := report.Result(review.Coverage)
	assert.Equal(t, review.StatusError, res.Status)
	assert.Contains(t, res.Error, "analysis timed out")
	assert.Equal(t, review.StatusOK, report.Result(review.Documentation).Status)
	assert.Len(t, report.Results, 4)
	assert.False(t, report.Passed)
}

func TestOrderIsConfiguredNotCompletion(t *testing.T) {
	cfg := testConfig()
	cfg.Run.Analyzers = []string{"pr_quality", "documentation", "code_quality", "coverage"}

	var mu sync.Mutex
	var finished []review.AnalyzerID
	record := func(id review.AnalyzerID, delay time.Duration) *stub {
		return &stub{id: id, run: func(context.Context) (*review.Result, error) {
			time.Sleep(delay)
			mu.Lock()
			finished = append(finished, id)
			mu.Unlock()
			res := review.NewResult(id)
			res.Passed = true
			return res, nil
		}}
	}
	stubs := []*stub{
		record(review.PRQuality, 40*time.Millisecond),
		record(review.Documentation, 0),
		record(review.CodeQuality, 20*time.Millisecond),
		record(review.Coverage, 0),
	}
	o := newOrchestrator(t, cfg, analyzer.Deps{},
		WithRegistry(registryOf(t, stubs...)), WithContextBuilder(newBuilder("desc")))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, []review.AnalyzerID{review.PRQuality, review.Documentation, review.CodeQuality, review.Coverage}, ids(report))
	assert.Len(t, finished, 4)
}

func TestContextBuildFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Coverage.Enabled = false

	stubs := allStubs()
	b := &staticBuilder{err: gerrors.FatalError("GET pulls/42: status 404", platform.ErrNotFound)}
	o := newOrchestrator(t, cfg, analyzer.Deps{}, WithRegistry(registryOf(t, stubs...)), WithContextBuilder(b))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	require.Len(t, report.Results, 4)
	for _, r := range report.Results {
		if r.AnalyzerID == review.Coverage {
			assert.Equal(t, review.StatusSkipped, r.Status)
			continue
		}
		assert.Equal(t, review.StatusError, r.Status)
		assert.Contains(t, r.Error, "status 404")
	}
	for _, s := range stubs {
		assert.Zero(t, s.calls.Load())
	}
	assert.False(t, report.Passed)
}

func TestStateSequenceAndSink(t *testing.T) {
	var states []State
	hook := func(_ string, s State) { states = append(states, s) }

	var delivered *review.Report
	sink := SinkFunc(func(_ context.Context, r *review.Report) error {
		delivered = r
		return nil
	})
	o := newOrchestrator(t, testConfig(), analyzer.Deps{},
		WithRegistry(registryOf(t, allStubs()...)), WithContextBuilder(newBuilder("desc")),
		WithSink(sink), WithStateHook(hook))

	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Same(t, report, delivered)
	assert.Equal(t, []State{StateInitialized, StateContextBuilt, StateRunning, StateAggregated, StateDelivered}, states)
	assert.Equal(t, "delivered", StateDelivered.String())
}

func TestSinkFailure(t *testing.T) {
	var states []State
	o := newOrchestrator(t, testConfig(), analyzer.Deps{},
		WithRegistry(registryOf(t, allStubs()...)), WithContextBuilder(newBuilder("desc")),
		WithSink(SinkFunc(func(context.Context, *review.Report) error { return errors.New("comment API down") })),
		WithStateHook(func(_ string, s State) { states = append(states, s) }))

	report, err := o.Run(context.Background(), target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "comment API down")
	require.NotNil(t, report, "a report is produced even when delivery fails")
	assert.True(t, report.Passed)
	assert.Equal(t, StateAggregated, states[len(states)-1])
}

func TestConfigErrorsEscape(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero workers", func(c *config.Config) { c.Run.Workers = 0 }},
		{"threshold out of range", func(c *config.Config) { c.Coverage.Threshold = 140 }},
		{"unknown required analyzer", func(c *config.Config) { c.Run.Required = []string{"security"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := New(cfg, analyzer.Deps{Upstream: nopUpstream{}})
			require.Error(t, err)
			assert.True(t, gerrors.IsType(err, gerrors.ErrConfig))
		})
	}

	t.Run("missing upstream", func(t *testing.T) {
		_, err := New(testConfig(), analyzer.Deps{})
		assert.True(t, gerrors.IsType(err, gerrors.ErrConfig))
	})

	t.Run("unregistered analyzer", func(t *testing.T) {
		_, err := New(testConfig(), analyzer.Deps{Upstream: nopUpstream{}},
			WithRegistry(registryOf(t, passing(review.Documentation))))
		assert.True(t, gerrors.IsType(err, gerrors.ErrConfig))
		assert.ErrorIs(t, err, analyzer.ErrAnalyzerNotFound)
	})
}

func TestRegisteredAnalyzerRunsEndToEnd(t *testing.T) {
	registry := analyzer.DefaultRegistry()
	var allowed any
	license := passing("license")
	require.NoError(t, registry.Register("license", func(cfg *config.Config, _ analyzer.Deps) (analyzer.Analyzer, error) {
		allowed = cfg.Plugin("license").Settings["allowed"]
		return license, nil
	}))

	cfg := testConfig()
	cfg.Run.Analyzers = []string{"pr_quality", "license"}
	cfg.Run.Required = []string{"license"}
	cfg.Analyzers = map[string]config.PluginConfig{
		"license": {Settings: map[string]any{"allowed": []string{"MIT"}}},
	}

	o := newOrchestrator(t, cfg, analyzer.Deps{},
		WithRegistry(registry), WithContextBuilder(newBuilder("desc")))
	report, err := o.Run(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, []review.AnalyzerID{review.PRQuality, "license"}, ids(report))
	assert.Equal(t, review.StatusOK, report.Result("license").Status)
	assert.Equal(t, int32(1), license.calls.Load())
	assert.Equal(t, []string{"MIT"}, allowed)
	assert.True(t, report.Passed)

	disabled := false
	cfg2 := testConfig()
	cfg2.Run.Analyzers = []string{"pr_quality", "license"}
	cfg2.Analyzers = map[string]config.PluginConfig{"license": {Enabled: &disabled}}
	o2 := newOrchestrator(t, cfg2, analyzer.Deps{},
		WithRegistry(registry), WithContextBuilder(newBuilder("desc")))
	report, err = o2.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, review.StatusSkipped, report.Result("license").Status)
	assert.Equal(t, int32(1), license.calls.Load())
}

func TestUnregisteredAnalyzerInRunList(t *testing.T) {
	cfg := testConfig()
	cfg.Run.Analyzers = []string{"pr_quality", "license"}

	_, err := New(cfg, analyzer.Deps{Upstream: nopUpstream{}})
	require.Error(t, err)
	assert.True(t, gerrors.IsType(err, gerrors.ErrConfig))
	assert.ErrorIs(t, err, analyzer.ErrAnalyzerNotFound)
	assert.Contains(t, err.Error(), `unknown analyzer "license"`)
}

func TestOpenResultCacheClearAndSweep(t *testing.T) {
	clk := testutil.NewClock()
	cfg := testConfig().Cache
	cfg.Persistent = true
	cfg.Dir = t.TempDir()
	cfg.TTL = time.Minute

	rc, err := OpenResultCache(cfg, clk.Now, nil, nil)
	require.NoError(t, err)
	defer rc.Close()

	ctx := context.Background()
	rc.Set(ctx, "a", review.NewResult(review.Coverage), 0)
	rc.Set(ctx, "b", review.NewResult(review.Coverage), 2*time.Minute)

	clk.Advance(90 * time.Second)
	n, err := rc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "expired in memory and on disk")

	_, ok := rc.Get(ctx, "b")
	assert.True(t, ok)
	require.NoError(t, rc.Clear(ctx))
	_, ok = rc.Get(ctx, "b")
	assert.False(t, ok)
}
