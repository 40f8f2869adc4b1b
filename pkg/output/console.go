// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// ConsoleSink prints a results table and the findings to a terminal.
type ConsoleSink struct {
	w       io.Writer
	noColor bool
}

// NewConsoleSink creates a console sink. Colors are off when noColor is set.
func NewConsoleSink(w io.Writer, noColor bool) *ConsoleSink {
	return &ConsoleSink{w: w, noColor: noColor}
}

// Deliver renders the report.
func (s *ConsoleSink) Deliver(_ context.Context, report *review.Report) error {
	paint := func(attr color.Attribute) *color.Color {
		c := color.New(attr)
		if s.noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
		return c
	}
	green, red, yellow, faint := paint(color.FgGreen), paint(color.FgRed), paint(color.FgYellow), paint(color.Faint)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Analyzer", "Status", "Score", "Threshold", "Findings", "Result"})
	for _, r := range report.Results {
		res := outcome(r)
		switch res {
		case "pass":
			res = green.Sprint(res)
		case "fail", "error":
			res = red.Sprint(res)
		}
		tw.AppendRow(table.Row{r.AnalyzerID, statusLabel(r), score(r), threshold(r), len(r.Findings), res})
	}
	counts := report.Counts()
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d ok / %d skipped / %d error",
		counts[review.StatusOK], counts[review.StatusSkipped], counts[review.StatusError]), "", "", "", ""})

	if _, err := fmt.Fprintf(s.w, "%s#%d  run %s\n", report.Repository, report.PRNumber, report.RunID); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(s.w, tw.Render()); err != nil {
		return err
	}

	for _, r := range report.Results {
		if r.Error != "" {
			red.Fprintf(s.w, "\n%s: %s\n", r.AnalyzerID, r.Error)
			continue
		}
		if len(r.Findings) == 0 {
			continue
		}
		fmt.Fprintf(s.w, "\n%s\n", r.AnalyzerID)
		for _, f := range r.Findings {
			c := yellow
			if f.Severity == review.SeverityError {
				c = red
			}
			c.Fprintf(s.w, "  %-7s ", f.Severity)
			fmt.Fprintf(s.w, "%s%s\n", plainLocation(f), f.Message)
		}
		for _, sug := range r.Suggestions {
			faint.Fprintf(s.w, "  hint    %s\n", sug)
		}
	}

	verdict := green.Sprint("PASSED")
	if !report.Passed {
		verdict = red.Sprint("FAILED")
	}
	_, err := fmt.Fprintf(s.w, "\nReview %s in %s\n", verdict, humanDuration(report))
	return err
}

func plainLocation(f review.Finding) string {
	switch {
	case f.File == "":
		return ""
	case f.Line > 0:
		return fmt.Sprintf("%s:%d: ", f.File, f.Line)
	}
	return f.File + ": "
}
