// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package analyzer

import (
	"context"
	"fmt"

	"github.com/codeguardian-bot/codeguardian/pkg/config"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
	"github.com/codeguardian-bot/codeguardian/pkg/syntax"
)

// complexityAdvisory is the average file complexity above which a general
// refactoring suggestion is added.
const complexityAdvisory = 15

// codeQuality flags changed files and functions that exceed the configured
// size, nesting and complexity limits.
type codeQuality struct {
	cfg  config.CodeQualityConfig
	deps Deps
}

func newCodeQuality(cfg *config.Config, deps Deps) (Analyzer, error) {
	return &codeQuality{cfg: cfg.CodeQuality, deps: deps}, nil
}

func (q *codeQuality) ID() review.AnalyzerID { return review.CodeQuality }

func (q *codeQuality) Fingerprint(pr *review.PRContext) string {
	return configFingerprint(pr, q.cfg)
}

func (q *codeQuality) Analyze(ctx context.Context, pr *review.PRContext) (*review.Result, error) {
	res := review.NewResult(review.CodeQuality)
	res.Threshold = float64(q.cfg.MaxComplexity)

	var (
		files, functions int
		sumComplexity    int
		worst            int
		kinds            = make(map[string]bool)
	)
	flag := func(kind, file string, line int, format string, args ...any) {
		kinds[kind] = true
		res.AddFinding(review.Finding{
			Kind:     kind,
			Severity: review.SeverityWarning,
			Message:  fmt.Sprintf(format, args...),
			File:     file,
			Line:     line,
		})
	}

	for _, f := range pr.Files() {
		if f.Removed() || !syntax.Supported(f.Path) {
			continue
		}
		content, err := q.deps.fileContent(ctx, pr.Repository(), f.Path, pr.HeadSHA())
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", f.Path, err)
		}
		lang, ok := syntax.Detect(f.Path, content)
		if !ok {
			continue
		}
		parsed, err := syntax.Parse(ctx, lang, content)
		if err != nil {
			return nil, err
		}

		files++
		if parsed.Lines > q.cfg.MaxLines {
			flag("file_too_long", f.Path, 0, "File is too long (%d lines, limit %d)", parsed.Lines, q.cfg.MaxLines)
		}

		fileComplexity := 0
		for _, fn := range parsed.Functions {
			functions++
			fileComplexity += fn.Complexity
			worst = max(worst, fn.Complexity)

			if fn.Complexity > q.cfg.MaxComplexity {
				flag("high_complexity", f.Path, fn.StartLine, "Function '%s' is too complex (complexity: %d, limit %d)",
					fn.Name, fn.Complexity, q.cfg.MaxComplexity)
			}
			if fn.Length > q.cfg.MaxFunctionLength {
				flag("long_function", f.Path, fn.StartLine, "Function '%s' is too long (%d lines, limit %d)",
					fn.Name, fn.Length, q.cfg.MaxFunctionLength)
			}
			if fn.MaxNesting > q.cfg.MaxNestingDepth {
				flag("deep_nesting", f.Path, fn.StartLine, "Function '%s' is nested too deeply (depth %d, limit %d)",
					fn.Name, fn.MaxNesting, q.cfg.MaxNestingDepth)
			}
		}
		sumComplexity += fileComplexity
	}

	if files > 0 {
		res.Score = float64(sumComplexity) / float64(files)
	}
	res.Metrics["files_analyzed"] = float64(files)
	res.Metrics["functions"] = float64(functions)
	res.Metrics["average_complexity"] = res.Score
	res.Metrics["max_function_complexity"] = float64(worst)
	res.Metrics["violations"] = float64(len(res.Findings))

	if res.Score > complexityAdvisory {
		res.Suggest("Consider breaking down complex functions into smaller, more manageable pieces")
	}
	if kinds["long_function"] {
		res.Suggest("Split long functions so each does one thing")
	}
	if kinds["deep_nesting"] {
		res.Suggest("Reduce nesting with early returns or helper functions")
	}
	if kinds["file_too_long"] {
		res.Suggest("Move unrelated code out of oversized files")
	}

	res.Passed = len(res.Findings) == 0
	q.deps.Logger.Debug("code quality analyzed",
		observability.Int("files", files),
		observability.Int("functions", functions),
		observability.Int("violations", len(res.Findings)))
	return res, nil
}
