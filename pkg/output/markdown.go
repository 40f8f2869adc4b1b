// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package output renders review reports and delivers them to the console,
// JSON files and pull request comments.
package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// CommentMarker identifies the bot's review comment so later runs can
// update it instead of adding another one.
const CommentMarker = "<!-- codeguardian:review -->"

// maxFindingsPerAnalyzer caps how many findings one section lists.
const maxFindingsPerAnalyzer = 25

// Markdown renders report as GitHub-flavored markdown.
func Markdown(report *review.Report) string {
	var b strings.Builder

	verdict := "passed"
	if !report.Passed {
		verdict = "failed"
	}
	fmt.Fprintf(&b, "## CodeGuardian review %s\n\n", verdict)

	b.WriteString("| Analyzer | Status | Score | Threshold | Result |\n")
	b.WriteString("|---|---|---:|---:|---|\n")
	for _, r := range report.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			r.AnalyzerID, statusLabel(r), score(r), threshold(r), outcome(r))
	}

	for _, r := range report.Results {
		if r.Status == review.StatusSkipped {
			continue
		}
		if len(r.Findings) == 0 && len(r.Suggestions) == 0 && r.Error == "" {
			continue
		}

		fmt.Fprintf(&b, "\n### %s\n\n", r.AnalyzerID)
		if r.Error != "" {
			fmt.Fprintf(&b, "> Analysis failed: %s\n\n", escapePipes(r.Error))
		}
		for i, f := range r.Findings {
			if i == maxFindingsPerAnalyzer {
				fmt.Fprintf(&b, "- ... and %d more\n", len(r.Findings)-i)
				break
			}
			fmt.Fprintf(&b, "- **%s** %s%s\n", f.Severity, location(f), f.Message)
		}
		if len(r.Suggestions) > 0 {
			b.WriteString("\n**Suggestions**\n\n")
			for _, s := range r.Suggestions {
				fmt.Fprintf(&b, "- %s\n", s)
			}
		}
	}

	fmt.Fprintf(&b, "\n<sub>run %s", report.RunID)
	if report.HeadSHA != "" {
		fmt.Fprintf(&b, " at %s", shortSHA(report.HeadSHA))
	}
	fmt.Fprintf(&b, ", took %s</sub>\n", humanDuration(report))
	return b.String()
}

// MarkdownSink writes the markdown rendering to w.
type MarkdownSink struct {
	w io.Writer
}

// NewMarkdownSink creates a markdown sink.
func NewMarkdownSink(w io.Writer) *MarkdownSink {
	return &MarkdownSink{w: w}
}

// Deliver writes the report.
func (s *MarkdownSink) Deliver(_ context.Context, report *review.Report) error {
	_, err := io.WriteString(s.w, Markdown(report))
	return err
}

func statusLabel(r *review.Result) string {
	if r.Cached {
		return string(r.Status) + " (cached)"
	}
	return string(r.Status)
}

func outcome(r *review.Result) string {
	switch {
	case r.Status == review.StatusSkipped:
		return "-"
	case r.Status == review.StatusError:
		return "error"
	case r.Passed:
		return "pass"
	}
	return "fail"
}

func score(r *review.Result) string {
	if r.Status != review.StatusOK {
		return "-"
	}
	return fmt.Sprintf("%.1f", r.Score)
}

func threshold(r *review.Result) string {
	if r.Status != review.StatusOK || r.Threshold == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f", r.Threshold)
}

func location(f review.Finding) string {
	switch {
	case f.File == "":
		return ""
	case f.Line > 0:
		return fmt.Sprintf("`%s:%d` ", f.File, f.Line)
	}
	return fmt.Sprintf("`%s` ", f.File)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func humanDuration(report *review.Report) string {
	return humanize.FtoaWithDigits(report.Duration.Seconds(), 2) + "s"
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
