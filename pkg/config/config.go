// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package config provides configuration management for CodeGuardian.
//
// Configuration Loading Order (later overrides earlier):
// 1. Defaults (hardcoded)
// 2. Project Config: ./.codeguardian.yml
// 3. Explicit Config: --config <path>
// 4. Environment Variables: CODEGUARDIAN_* and the legacy CACHE_* names
package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Documentation DocumentationConfig `yaml:"documentation"`
	Coverage      CoverageConfig      `yaml:"coverage"`
	CodeQuality   CodeQualityConfig   `yaml:"code_quality"`
	PRQuality     PRQualityConfig     `yaml:"pr_quality"`
	Run           RunConfig           `yaml:"run"`
	Cache         CacheConfig         `yaml:"cache"`
	Retry         RetryConfig         `yaml:"retry"`
	GitHub        GitHubConfig        `yaml:"github"`
	Log           LogConfig           `yaml:"log"`
	Output        OutputConfig        `yaml:"output"`
	Webhook       WebhookConfig       `yaml:"webhook"`

	// Analyzers configures analyzers registered beyond the built-in four,
	// keyed by analyzer id.
	Analyzers map[string]PluginConfig `yaml:"analyzers,omitempty"`

	// Analysis is the older name of the code_quality section.
	Analysis *CodeQualityConfig `yaml:"analysis,omitempty"`
}

// DocumentationConfig controls the documentation analyzer.
type DocumentationConfig struct {
	Enabled           bool     `yaml:"enabled"`
	MinDocCoverage    float64  `yaml:"min_doc_coverage"` // percent
	RequiredArtifacts []string `yaml:"required_artifacts"`
}

// CoverageConfig controls the test coverage analyzer.
type CoverageConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Threshold     float64  `yaml:"threshold"`   // percent
	Format        string   `yaml:"format"`      // cobertura, gocover, auto
	ReportPath    string   `yaml:"report_path"` // local file, else fetched from the repository
	MaxReportSize ByteSize `yaml:"max_report_size"`
}

// CodeQualityConfig controls the code quality analyzer.
type CodeQualityConfig struct {
	Enabled           bool `yaml:"enabled"`
	MaxFunctionLength int  `yaml:"max_function_length"`
	MaxNestingDepth   int  `yaml:"max_nesting_depth"`
	MaxComplexity     int  `yaml:"max_complexity"`
	MaxLines          int  `yaml:"max_lines"`
}

// PRQualityConfig controls the PR description analyzer.
type PRQualityConfig struct {
	Enabled              bool `yaml:"enabled"`
	MinDescriptionLength int  `yaml:"min_description_length"`
	RequireIssueLink     bool `yaml:"require_issue_link"`
	RequireTestSummary   bool `yaml:"require_test_summary"`
	ReviewReminderHours  int  `yaml:"review_reminder_hours"`
}

// PluginConfig switches and parameterizes a registered analyzer that has no
// section of its own. Enabled defaults to true for ids listed in
// run.analyzers.
type PluginConfig struct {
	Enabled  *bool          `yaml:"enabled,omitempty"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// RunConfig controls orchestration of one review run.
type RunConfig struct {
	// Analyzers lists analyzer ids in report order. Empty means all.
	Analyzers []string `yaml:"analyzers"`
	// Required lists analyzer ids that decide the verdict. Empty means
	// every non-skipped analyzer.
	Required []string      `yaml:"required"`
	Workers  int           `yaml:"workers"`
	Timeout  time.Duration `yaml:"timeout"`
	// Exclude holds glob patterns of changed files to leave out of the
	// review, matched against the full path and the base name.
	Exclude []string `yaml:"exclude"`
}

// CacheConfig contains result cache settings.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Dir             string        `yaml:"dir"`
	Persistent      bool          `yaml:"persistent"` // keep results in <dir>/results.db
	TTL             time.Duration `yaml:"ttl"`
	MaxSize         int           `yaml:"max_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RetryConfig contains upstream retry settings.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"` // total attempts
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	Jitter     float64       `yaml:"jitter"`
}

// GitHubConfig contains GitHub API settings.
type GitHubConfig struct {
	APIURL   string `yaml:"api_url"`
	TokenEnv string `yaml:"token_env"` // e.g., "GITHUB_TOKEN"
	// token field is NOT allowed - must use token_env
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// OutputConfig selects report sinks.
type OutputConfig struct {
	Formats  []string `yaml:"formats"` // console, json, comment
	JSONPath string   `yaml:"json_path"`
}

// WebhookConfig contains settings for `codeguardian serve`.
type WebhookConfig struct {
	Listen    string `yaml:"listen"`
	SecretEnv string `yaml:"secret_env"`
	QueueSize int    `yaml:"queue_size"`
	Workers   int    `yaml:"workers"`
}

// ByteSize is a size in bytes that reads human-readable YAML values such
// as "5MB" or "512KiB".
type ByteSize uint64

// ParseByteSize parses a humanized byte count.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}
