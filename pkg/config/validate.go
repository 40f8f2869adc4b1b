// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"errors"
	"fmt"
	"path"
	"slices"

	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
)

// AnalyzerIDs lists the built-in analyzer identifiers in default report
// order. Other ids in run.analyzers must be registered with the analyzer
// registry, which the orchestrator checks.
var AnalyzerIDs = []string{"documentation", "coverage", "code_quality", "pr_quality"}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "console"}
	validCovFormats = []string{"cobertura", "gocover", "auto"}
	validOutputs    = []string{"console", "json", "comment", "markdown"}
)

// Validate checks the configuration once at startup. All problems are
// reported together in one ConfigError.
func (c *Config) Validate() error {
	if c == nil {
		return gerrors.ConfigError("config is nil", nil)
	}

	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(between(c.Documentation.MinDocCoverage, 0, 100), "documentation.min_doc_coverage must be within 0-100, got %v", c.Documentation.MinDocCoverage)
	check(between(c.Coverage.Threshold, 0, 100), "coverage.threshold must be within 0-100, got %v", c.Coverage.Threshold)
	check(slices.Contains(validCovFormats, c.Coverage.Format), "coverage.format must be one of %v, got %q", validCovFormats, c.Coverage.Format)
	check(c.Coverage.MaxReportSize > 0, "coverage.max_report_size must be positive")

	q := c.CodeQuality
	check(q.MaxFunctionLength > 0, "code_quality.max_function_length must be positive")
	check(q.MaxNestingDepth > 0, "code_quality.max_nesting_depth must be positive")
	check(q.MaxComplexity > 0, "code_quality.max_complexity must be positive")
	check(q.MaxLines > 0, "code_quality.max_lines must be positive")

	check(c.PRQuality.MinDescriptionLength >= 0, "pr_quality.min_description_length must be non-negative")
	check(c.PRQuality.ReviewReminderHours >= 0, "pr_quality.review_reminder_hours must be non-negative")

	for _, id := range c.Run.Analyzers {
		check(validAnalyzerID(id), "run.analyzers: invalid analyzer id %q", id)
	}
	for id := range c.Analyzers {
		check(!slices.Contains(AnalyzerIDs, id), "analyzers.%s: built-in analyzers are configured in their own section", id)
		check(slices.Contains(c.AnalyzerOrder(), id), "analyzers.%s: not listed in run.analyzers", id)
	}
	check(!hasDuplicates(c.Run.Analyzers), "run.analyzers contains duplicates")
	for _, id := range c.Run.Required {
		check(slices.Contains(c.AnalyzerOrder(), id), "run.required: %q is not a configured analyzer", id)
	}
	check(c.Run.Workers > 0, "run.workers must be at least 1")
	check(c.Run.Timeout > 0, "run.timeout must be positive")
	for _, pattern := range c.Run.Exclude {
		_, err := path.Match(pattern, "")
		check(err == nil, "run.exclude: invalid pattern %q", pattern)
	}

	if c.Cache.Enabled {
		check(c.Cache.TTL > 0, "cache.ttl must be positive")
		check(c.Cache.MaxSize > 0, "cache.max_size must be positive")
		check(c.Cache.CleanupInterval >= 0, "cache.cleanup_interval must be non-negative")
		check(!c.Cache.Persistent || c.Cache.Dir != "", "cache.dir is required when cache.persistent is set")
	}

	check(c.Retry.MaxRetries >= 1, "retry.max_retries must be at least 1")
	check(c.Retry.BaseDelay > 0, "retry.base_delay must be positive")
	check(c.Retry.MaxDelay >= c.Retry.BaseDelay, "retry.max_delay must be >= retry.base_delay")
	check(between(c.Retry.Jitter, 0, 1), "retry.jitter must be within 0-1")

	check(c.GitHub.TokenEnv != "", "github.token_env is required")
	check(slices.Contains(validLogLevels, c.Log.Level), "log.level must be one of %v, got %q", validLogLevels, c.Log.Level)
	check(slices.Contains(validLogFormats, c.Log.Format), "log.format must be one of %v, got %q", validLogFormats, c.Log.Format)
	for _, f := range c.Output.Formats {
		check(slices.Contains(validOutputs, f), "output.formats: unknown format %q", f)
	}

	if len(errs) > 0 {
		return gerrors.ConfigError("invalid configuration", errors.Join(errs...))
	}
	return nil
}

// AnalyzerOrder returns the analyzer ids in report order.
func (c *Config) AnalyzerOrder() []string {
	if len(c.Run.Analyzers) == 0 {
		return slices.Clone(AnalyzerIDs)
	}
	return slices.Clone(c.Run.Analyzers)
}

// Enabled reports whether the analyzer with the given id is switched on.
func (c *Config) Enabled(id string) bool {
	switch id {
	case "documentation":
		return c.Documentation.Enabled
	case "coverage":
		return c.Coverage.Enabled
	case "code_quality":
		return c.CodeQuality.Enabled
	case "pr_quality":
		return c.PRQuality.Enabled
	}
	if p, ok := c.Analyzers[id]; ok && p.Enabled != nil {
		return *p.Enabled
	}
	return slices.Contains(c.Run.Analyzers, id)
}

// Plugin returns the settings of a registered non-built-in analyzer.
func (c *Config) Plugin(id string) PluginConfig {
	return c.Analyzers[id]
}

// validAnalyzerID accepts lower-case ids made of letters, digits and
// underscores, the shape the built-in ids and metric labels use.
func validAnalyzerID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func between(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func hasDuplicates(items []string) bool {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it] {
			return true
		}
		seen[it] = true
	}
	return false
}
