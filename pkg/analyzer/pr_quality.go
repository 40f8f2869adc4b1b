// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/codeguardian-bot/codeguardian/pkg/cache"
	"github.com/codeguardian-bot/codeguardian/pkg/config"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

var (
	issueRefPattern  = regexp.MustCompile(`(?:[\w.-]+/[\w.-]+)?#\d+\b|https?://\S+/issues/\d+`)
	codeBlockPattern = regexp.MustCompile("```[\\s\\S]*?```")
	listPattern      = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+\.)\s`)
	testingPattern   = regexp.MustCompile(`(?i)\b(?:test\w*|verified|validated)\b`)
)

// prQuality scores the PR description and enforces the description rules.
type prQuality struct {
	cfg  config.PRQualityConfig
	deps Deps
}

func newPRQuality(cfg *config.Config, deps Deps) (Analyzer, error) {
	return &prQuality{cfg: cfg.PRQuality, deps: deps}, nil
}

func (p *prQuality) ID() review.AnalyzerID { return review.PRQuality }

// Fingerprint covers only the text this analyzer reads, so pushing new
// commits does not invalidate it.
func (p *prQuality) Fingerprint(pr *review.PRContext) string {
	return cache.Fingerprint(pr.Repository(), strconv.Itoa(pr.Number()), pr.Title(), pr.Description(),
		fmt.Sprintf("%+v", p.cfg))
}

func (p *prQuality) Analyze(_ context.Context, pr *review.PRContext) (*review.Result, error) {
	res := review.NewResult(review.PRQuality)
	desc := strings.TrimSpace(pr.Description())
	length := utf8.RuneCountInString(desc)
	issues := linkedIssues(desc)
	hasTesting := testingPattern.MatchString(desc)

	res.Score = p.descriptionScore(desc, length, hasTesting)
	res.Metrics["description_score"] = res.Score
	res.Metrics["description_length"] = float64(length)
	res.Metrics["min_description_length"] = float64(p.cfg.MinDescriptionLength)
	res.Metrics["linked_issues"] = float64(len(issues))

	var missing []string
	if length < p.cfg.MinDescriptionLength {
		missing = append(missing, "a detailed PR description")
		res.AddFinding(review.Finding{
			Kind:     "short_description",
			Severity: review.SeverityError,
			Message: fmt.Sprintf("PR description is %d characters long, %d short of the required minimum of %d",
				length, p.cfg.MinDescriptionLength-length, p.cfg.MinDescriptionLength),
		})
	}
	if p.cfg.RequireIssueLink && len(issues) == 0 {
		missing = append(missing, "a linked issue")
		res.AddFinding(review.Finding{
			Kind:     "missing_issue_link",
			Severity: review.SeverityError,
			Message:  "PR description does not reference an issue (e.g. \"Fixes #123\")",
		})
	}
	if p.cfg.RequireTestSummary && !hasTesting {
		missing = append(missing, "testing information")
		res.AddFinding(review.Finding{
			Kind:     "missing_test_summary",
			Severity: review.SeverityError,
			Message:  "PR description does not describe how the change was tested",
		})
	}

	if res.Score < 60 {
		res.Suggest("Consider adding more details to the PR description")
	}
	if created := pr.CreatedAt(); !created.IsZero() {
		hours := p.deps.Clock().Sub(created).Hours()
		res.Metrics["hours_open"] = hours
		if p.cfg.ReviewReminderHours > 0 && hours > float64(p.cfg.ReviewReminderHours) {
			res.Suggest(fmt.Sprintf("This PR has been open for more than %d hours. Consider requesting a review",
				p.cfg.ReviewReminderHours))
		}
	}
	for _, m := range missing {
		res.Suggest("Add " + m)
	}

	res.Passed = len(res.Findings) == 0
	return res, nil
}

// descriptionScore awards 20 points each for length, an issue reference, a
// code block, a list and testing notes.
func (p *prQuality) descriptionScore(desc string, length int, hasTesting bool) float64 {
	score := 0.0
	if length > p.cfg.MinDescriptionLength {
		score += 20
	}
	if issueRefPattern.MatchString(desc) {
		score += 20
	}
	if codeBlockPattern.MatchString(desc) {
		score += 20
	}
	if listPattern.MatchString(desc) {
		score += 20
	}
	if hasTesting {
		score += 20
	}
	return score
}

func linkedIssues(desc string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range issueRefPattern.FindAllString(desc, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
