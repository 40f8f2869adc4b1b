// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package review

import (
	"time"
)

// Report aggregates the Results of one run. Results keep the configured
// analyzer order.
type Report struct {
	RunID       string        `json:"run_id"`
	Repository  string        `json:"repository"`
	PRNumber    int           `json:"pr_number"`
	HeadSHA     string        `json:"head_sha"`
	Results     []*Result     `json:"results"`
	Required    []AnalyzerID  `json:"required,omitempty"`
	Passed      bool          `json:"passed"`
	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration_ns"`
}

// Result returns the result of analyzer id, or nil.
func (r *Report) Result(id AnalyzerID) *Result {
	for _, res := range r.Results {
		if res.AnalyzerID == id {
			return res
		}
	}
	return nil
}

// Counts tallies results by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, 3)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Aggregate computes the overall verdict. With an empty required list every
// non-skipped Result must be ok and passing. Otherwise only the listed
// analyzers count. Skipped Results never count, so a run where everything
// relevant was skipped passes.
func Aggregate(results []*Result, required []AnalyzerID) bool {
	counts := func(id AnalyzerID) bool {
		if len(required) == 0 {
			return true
		}
		for _, r := range required {
			if r == id {
				return true
			}
		}
		return false
	}

	for _, res := range results {
		if res.Status == StatusSkipped || !counts(res.AnalyzerID) {
			continue
		}
		if !res.Succeeded() {
			return false
		}
	}
	return true
}
