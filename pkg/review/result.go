// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package review

import (
	"time"
)

// AnalyzerID names a quality dimension.
type AnalyzerID string

const (
	Documentation AnalyzerID = "documentation"
	Coverage      AnalyzerID = "coverage"
	CodeQuality   AnalyzerID = "code_quality"
	PRQuality     AnalyzerID = "pr_quality"
)

// AllAnalyzers lists the built-in analyzers in default execution order.
var AllAnalyzers = []AnalyzerID{Documentation, Coverage, CodeQuality, PRQuality}

// Status tags how a Result was produced.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Severity of a finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is a single human-readable observation, optionally anchored to a
// file and line.
type Finding struct {
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// Result is the outcome of one analyzer for one run.
type Result struct {
	AnalyzerID  AnalyzerID         `json:"analyzer"`
	Status      Status             `json:"status"`
	Passed      bool               `json:"passed"`
	Score       float64            `json:"score"`
	Threshold   float64            `json:"threshold"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Findings    []Finding          `json:"findings,omitempty"`
	Suggestions []string           `json:"suggestions,omitempty"`
	Error       string             `json:"error,omitempty"`
	Duration    time.Duration      `json:"duration_ns"`
	Cached      bool               `json:"cached"`
}

// NewResult returns an ok Result ready to be filled in.
func NewResult(id AnalyzerID) *Result {
	return &Result{
		AnalyzerID: id,
		Status:     StatusOK,
		Metrics:    make(map[string]float64),
	}
}

// Skipped returns the Result for a disabled analyzer.
func Skipped(id AnalyzerID) *Result {
	return &Result{AnalyzerID: id, Status: StatusSkipped}
}

// Errored returns the Result for an analyzer that could not produce a verdict.
func Errored(id AnalyzerID, err error) *Result {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Result{AnalyzerID: id, Status: StatusError, Error: msg}
}

// AddFinding appends a finding.
func (r *Result) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Suggest appends a suggestion unless it is already present.
func (r *Result) Suggest(s string) {
	for _, existing := range r.Suggestions {
		if existing == s {
			return
		}
	}
	r.Suggestions = append(r.Suggestions, s)
}

// Clone returns a deep copy.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metrics != nil {
		out.Metrics = make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			out.Metrics[k] = v
		}
	}
	out.Findings = append([]Finding(nil), r.Findings...)
	out.Suggestions = append([]string(nil), r.Suggestions...)
	return &out
}

// Succeeded reports whether the result counts as passing in a verdict.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusOK && r.Passed
}
