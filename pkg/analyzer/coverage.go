// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/codeguardian-bot/codeguardian/pkg/config"
	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/fetch"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

const maxListedLines = 20

// coverage compares a coverage report against the configured threshold and
// measures how much of the PR's added code is exercised.
type coverage struct {
	cfg  config.CoverageConfig
	deps Deps
	// readLocal opens a report from disk; replaced in tests.
	readLocal func(path string) (io.ReadCloser, int64, error)
}

func newCoverage(cfg *config.Config, deps Deps) (Analyzer, error) {
	return &coverage{cfg: cfg.Coverage, deps: deps, readLocal: openLocal}, nil
}

func (c *coverage) ID() review.AnalyzerID { return review.Coverage }

func (c *coverage) Fingerprint(pr *review.PRContext) string {
	return configFingerprint(pr, c.cfg)
}

func (c *coverage) Analyze(ctx context.Context, pr *review.PRContext) (*review.Result, error) {
	data, source, err := c.loadReport(ctx, pr)
	if err != nil {
		return nil, err
	}
	report, err := ParseCoverage(c.cfg.Format, data)
	if err != nil {
		return nil, err
	}

	res := review.NewResult(review.Coverage)
	res.Threshold = c.cfg.Threshold
	res.Score = report.Total
	res.Metrics["total_coverage"] = report.Total
	res.Metrics["files_in_report"] = float64(len(report.Files))

	if report.Total < c.cfg.Threshold {
		res.AddFinding(review.Finding{
			Kind:     "low_coverage",
			Severity: review.SeverityError,
			Message:  fmt.Sprintf("Overall coverage %.1f%% is below threshold %.1f%%", report.Total, c.cfg.Threshold),
		})
	}

	var diffInstrumented, diffCovered int
	for _, f := range pr.Files() {
		if f.Removed() {
			continue
		}
		fc, ok := report.Lookup(f.Path)
		if !ok {
			continue
		}

		var uncovered []int
		for _, n := range f.AddedLines() {
			hit, instrumented := fc.Lines[n]
			if !instrumented {
				continue
			}
			diffInstrumented++
			if hit {
				diffCovered++
			} else {
				uncovered = append(uncovered, n)
			}
		}

		if rate := fc.Rate(); rate < c.cfg.Threshold {
			msg := fmt.Sprintf("%s: coverage %.1f%%", f.Path, rate)
			if len(uncovered) > 0 {
				msg += "; uncovered added lines " + formatLines(uncovered)
			}
			res.AddFinding(review.Finding{
				Kind:     "low_file_coverage",
				Severity: review.SeverityWarning,
				Message:  msg,
				File:     f.Path,
				Line:     firstOr(uncovered, 0),
			})
		}
	}

	if diffInstrumented > 0 {
		diff := float64(diffCovered) / float64(diffInstrumented) * 100
		res.Metrics["diff_coverage"] = diff
		res.Metrics["diff_lines"] = float64(diffInstrumented)
		if diff < c.cfg.Threshold {
			res.Suggest(fmt.Sprintf("Add tests for the changed code: only %.1f%% of added lines are covered", diff))
		}
	}

	res.Passed = report.Total >= c.cfg.Threshold
	c.deps.Logger.Debug("coverage analyzed",
		observability.String("source", source),
		observability.Float64("total", report.Total),
		observability.Int("diff_lines", diffInstrumented))
	return res, nil
}

// loadReport prefers a report on the local disk (CI workspaces produce one
// next to the checkout) and falls back to the copy committed at the head
// commit.
func (c *coverage) loadReport(ctx context.Context, pr *review.PRContext) ([]byte, string, error) {
	limit := int64(c.cfg.MaxReportSize)

	if c.cfg.ReportPath != "" && c.readLocal != nil {
		rc, size, err := c.readLocal(c.cfg.ReportPath)
		switch {
		case err == nil:
			defer rc.Close()
			if size > limit {
				return nil, "", c.tooLarge(size)
			}
			data, err := io.ReadAll(io.LimitReader(rc, limit+1))
			if err != nil {
				return nil, "", fmt.Errorf("read coverage report: %w", err)
			}
			if int64(len(data)) > limit {
				return nil, "", c.tooLarge(int64(len(data)))
			}
			return data, "local", nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, "", fmt.Errorf("open coverage report: %w", err)
		}
	}

	if c.cfg.ReportPath == "" {
		return nil, "", gerrors.FatalError("no coverage report configured", nil)
	}
	data, err := fetch.Do(ctx, c.deps.Fetcher, func(ctx context.Context) ([]byte, error) {
		return c.deps.Upstream.CoverageReport(ctx, pr.Repository(), c.cfg.ReportPath, pr.HeadSHA())
	}, fetch.DefaultClassifier)
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", c.tooLarge(int64(len(data)))
	}
	return data, "repository", nil
}

func (c *coverage) tooLarge(size int64) error {
	return gerrors.FatalError(fmt.Sprintf("coverage report is %s, limit is %s",
		humanize.IBytes(uint64(size)), humanize.IBytes(uint64(c.cfg.MaxReportSize))), nil)
}

func openLocal(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

// formatLines renders ascending line numbers as ranges, e.g. "3-5, 9".
func formatLines(lines []int) string {
	var parts []string
	for i := 0; i < len(lines); {
		j := i
		for j+1 < len(lines) && lines[j+1] == lines[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(lines[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", lines[i], lines[j]))
		}
		i = j + 1
		if len(parts) == maxListedLines {
			if i < len(lines) {
				parts = append(parts, "...")
			}
			break
		}
	}
	return strings.Join(parts, ", ")
}

func firstOr(s []int, def int) int {
	if len(s) == 0 {
		return def
	}
	return s[0]
}
