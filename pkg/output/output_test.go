// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguardian-bot/codeguardian/pkg/config"
	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

func sampleReport() *review.Report {
	doc := review.NewResult(review.Documentation)
	doc.Score = 50
	doc.Threshold = 80
	doc.AddFinding(review.Finding{Kind: "missing_function_doc", Severity: review.SeverityWarning,
		Message: "Function 'Add' has no doc comment", File: "calc.go", Line: 12})
	doc.AddFinding(review.Finding{Kind: "missing_artifact", Severity: review.SeverityError,
		Message: "Required documentation artifact README.md is missing"})
	doc.Suggest("Document exported functions")

	pr := review.NewResult(review.PRQuality)
	pr.Score = 100
	pr.Passed = true
	pr.Cached = true

	results := []*review.Result{
		doc,
		review.Skipped(review.Coverage),
		review.Errored(review.CodeQuality, errors.New("[RETRIES_EXHAUSTED] upstream gave up")),
		pr,
	}
	return &review.Report{
		RunID:       "run-1",
		Repository:  "acme/widgets",
		PRNumber:    42,
		HeadSHA:     "0123456789abcdef",
		Results:     results,
		Passed:      review.Aggregate(results, nil),
		GeneratedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport())

	assert.Contains(t, md, "## CodeGuardian review failed")
	assert.Contains(t, md, "| documentation | ok | 50.0 | 80.0 | fail |")
	assert.Contains(t, md, "| coverage | skipped | - | - | - |")
	assert.Contains(t, md, "| code_quality | error | - | - | error |")
	assert.Contains(t, md, "| pr_quality | ok (cached) | 100.0 | - | pass |")
	assert.Contains(t, md, "- **warning** `calc.go:12` Function 'Add' has no doc comment")
	assert.Contains(t, md, "- **error** Required documentation artifact README.md is missing")
	assert.Contains(t, md, "> Analysis failed: [RETRIES_EXHAUSTED] upstream gave up")
	assert.Contains(t, md, "- Document exported functions")
	assert.Contains(t, md, "run run-1 at 0123456, took 1.5s")
	assert.NotContains(t, md, "### coverage")
	assert.NotContains(t, md, "### pr_quality")
}

func TestMarkdownCapsFindings(t *testing.T) {
	res := review.NewResult(review.CodeQuality)
	for i := range 30 {
		res.AddFinding(review.Finding{Kind: "long_function", Severity: review.SeverityWarning, Message: fmt.Sprintf("f%d", i)})
	}
	md := Markdown(&review.Report{Results: []*review.Result{res}})

	assert.Contains(t, md, "f24")
	assert.NotContains(t, md, "f25")
	assert.Contains(t, md, "- ... and 5 more")
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleSink(&buf, true).Deliver(context.Background(), sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "acme/widgets#42  run run-1")
	assert.Contains(t, out, "documentation")
	assert.Contains(t, strings.ToLower(out), "2 ok / 1 skipped / 1 error")
	assert.Contains(t, out, "calc.go:12: Function 'Add' has no doc comment")
	assert.Contains(t, out, "hint    Document exported functions")
	assert.Contains(t, out, "code_quality: [RETRIES_EXHAUSTED] upstream gave up")
	assert.Contains(t, out, "Review FAILED in 1.5s")
	assert.NotContains(t, out, "\x1b[", "no escape codes with colors off")
}

func TestJSONFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "review.json")
	require.NoError(t, NewJSONFileSink(path).Deliver(context.Background(), sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded review.Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.False(t, decoded.Passed)
	require.Len(t, decoded.Results, 4)
	assert.Equal(t, review.Documentation, decoded.Results[0].AnalyzerID)
	assert.Equal(t, review.StatusSkipped, decoded.Results[1].Status)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestJSONSinkWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONSink(&buf).Deliver(context.Background(), sampleReport()))
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"run_id\": \"run-1\""))
}

// fakeCommenter stores comments by marker and fails on demand.
type fakeCommenter struct {
	mu       sync.Mutex
	failures []error
	calls    int
	bodies   map[string]string
}

func (f *fakeCommenter) UpsertComment(_ context.Context, repo string, number int, marker, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	if f.bodies == nil {
		f.bodies = map[string]string{}
	}
	f.bodies[fmt.Sprintf("%s#%d/%s", repo, number, marker)] = body
	return nil
}

func TestCommentSinkRetriesTransientFailures(t *testing.T) {
	fc := &fakeCommenter{failures: []error{
		gerrors.TransientError("502 bad gateway", nil),
		&gerrors.RateLimitError{StatusCode: 429, RetryAfter: time.Millisecond, Message: "slow down"},
	}}
	sink := NewCommentSink(fc, WithCommentRetry(4, time.Millisecond))

	require.NoError(t, sink.Deliver(context.Background(), sampleReport()))
	assert.Equal(t, 3, fc.calls)

	body := fc.bodies["acme/widgets#42/"+CommentMarker]
	assert.True(t, strings.HasPrefix(body, CommentMarker+"\n## CodeGuardian review failed"))

	// A second delivery replaces the same comment.
	require.NoError(t, sink.Deliver(context.Background(), sampleReport()))
	assert.Len(t, fc.bodies, 1)
}

func TestCommentSinkStopsOnFatal(t *testing.T) {
	fc := &fakeCommenter{failures: []error{gerrors.FatalError("403 resource not accessible", nil)}}
	sink := NewCommentSink(fc, WithCommentRetry(4, time.Millisecond))

	err := sink.Deliver(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acme/widgets#42")
	assert.True(t, gerrors.IsType(err, gerrors.ErrFatal))
	assert.Equal(t, 1, fc.calls)
}

type recordingSink struct {
	called bool
	err    error
}

func (r *recordingSink) Deliver(context.Context, *review.Report) error {
	r.called = true
	return r.err
}

func TestMultiSinkDeliversToAll(t *testing.T) {
	first := &recordingSink{err: errors.New("disk full")}
	second := &recordingSink{}
	m := NewMultiSink(first, second)

	err := m.Deliver(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, second.called)
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	m, err := FromConfig(config.OutputConfig{Formats: []string{"console", "json", "markdown"}},
		Env{Stdout: &buf, NoColor: true})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())

	require.NoError(t, m.Deliver(context.Background(), sampleReport()))
	assert.Contains(t, buf.String(), "Review FAILED")
	assert.Contains(t, buf.String(), `"run_id": "run-1"`)
	assert.Contains(t, buf.String(), "## CodeGuardian review failed")

	_, err = FromConfig(config.OutputConfig{Formats: []string{"comment"}}, Env{Stdout: &buf})
	assert.Error(t, err)

	m, err = FromConfig(config.OutputConfig{Formats: []string{"comment"}}, Env{Commenter: &fakeCommenter{}})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}
