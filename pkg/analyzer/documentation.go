// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/codeguardian-bot/codeguardian/pkg/config"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
	"github.com/codeguardian-bot/codeguardian/pkg/syntax"
)

var docRecommendations = []string{
	"Add doc comments to all public modules, types and functions",
	"Document parameters and return values",
	"Add examples in documentation where appropriate",
}

// documentation checks required artifacts and the share of documented
// public symbols in changed source files.
type documentation struct {
	cfg  config.DocumentationConfig
	deps Deps
}

func newDocumentation(cfg *config.Config, deps Deps) (Analyzer, error) {
	return &documentation{cfg: cfg.Documentation, deps: deps}, nil
}

func (d *documentation) ID() review.AnalyzerID { return review.Documentation }

func (d *documentation) Fingerprint(pr *review.PRContext) string {
	return configFingerprint(pr, d.cfg)
}

func (d *documentation) Analyze(ctx context.Context, pr *review.PRContext) (*review.Result, error) {
	res := review.NewResult(review.Documentation)
	res.Threshold = d.cfg.MinDocCoverage

	missingArtifact := false
	for _, artifact := range d.cfg.RequiredArtifacts {
		exists, err := d.artifactExists(ctx, pr, artifact)
		if err != nil {
			return nil, err
		}
		if !exists {
			missingArtifact = true
			res.AddFinding(review.Finding{
				Kind:     "missing_artifact",
				Severity: review.SeverityError,
				Message:  fmt.Sprintf("%s is required but not found", artifact),
				File:     artifact,
			})
		}
	}

	var total, documented, files int
	for _, f := range pr.Files() {
		if f.Removed() || !syntax.Supported(f.Path) {
			continue
		}
		content, err := d.deps.fileContent(ctx, pr.Repository(), f.Path, pr.HeadSHA())
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
		for _, sym := range parsed.Symbols {
			total++
			if sym.Documented {
				documented++
				continue
			}
			res.AddFinding(review.Finding{
				Kind:     "missing_" + string(sym.Kind) + "_doc",
				Severity: review.SeverityWarning,
				Message:  missingDocMessage(sym),
				File:     f.Path,
				Line:     sym.Line,
			})
		}
	}

	res.Score = 100
	if total > 0 {
		res.Score = float64(documented) / float64(total) * 100
	}
	res.Metrics["doc_coverage"] = res.Score
	res.Metrics["total_items"] = float64(total)
	res.Metrics["documented_items"] = float64(documented)
	res.Metrics["files_analyzed"] = float64(files)

	if total > 0 && res.Score < d.cfg.MinDocCoverage {
		res.AddFinding(review.Finding{
			Kind:     "low_doc_coverage",
			Severity: review.SeverityError,
			Message: fmt.Sprintf("Documentation coverage (%.1f%%) is below threshold (%.1f%%)",
				res.Score, d.cfg.MinDocCoverage),
		})
	}
	if len(res.Findings) > 0 {
		for _, s := range docRecommendations {
			res.Suggest(s)
		}
	}

	res.Passed = !missingArtifact && res.Score >= d.cfg.MinDocCoverage
	d.deps.Logger.Debug("documentation analyzed",
		observability.Int("symbols", total),
		observability.Int("documented", documented),
		observability.Int("files", files))
	return res, nil
}

func (d *documentation) artifactExists(ctx context.Context, pr *review.PRContext, path string) (bool, error) {
	if f, ok := pr.File(path); ok {
		return !f.Removed(), nil
	}
	_, err := d.deps.fileContent(ctx, pr.Repository(), path, pr.HeadSHA())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, platform.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check %s: %w", path, err)
	}
}

func missingDocMessage(s syntax.Symbol) string {
	switch s.Kind {
	case syntax.KindModule:
		return "Module is missing a docstring"
	case syntax.KindClass:
		return fmt.Sprintf("Class '%s' is missing documentation", s.Name)
	case syntax.KindType:
		return fmt.Sprintf("Type '%s' is missing documentation", s.Name)
	case syntax.KindMethod:
		return fmt.Sprintf("Method '%s' is missing documentation", s.Name)
	default:
		return fmt.Sprintf("Function '%s' is missing documentation", s.Name)
	}
}
