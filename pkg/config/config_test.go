// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguardian-bot/codeguardian/pkg/config"
	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, 80.0, cfg.Coverage.Threshold)
	assert.Equal(t, "cobertura", cfg.Coverage.Format)
	assert.Equal(t, 50, cfg.CodeQuality.MaxFunctionLength)
	assert.Equal(t, 3, cfg.CodeQuality.MaxNestingDepth)
	assert.Equal(t, 10, cfg.CodeQuality.MaxComplexity)
	assert.Equal(t, 300, cfg.CodeQuality.MaxLines)
	assert.Equal(t, 50, cfg.PRQuality.MinDescriptionLength)
	assert.True(t, cfg.PRQuality.RequireIssueLink)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, []string{"documentation", "coverage", "code_quality", "pr_quality"}, cfg.AnalyzerOrder())
	require.NoError(t, cfg.Validate())
}

func TestLoadProjectFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.ProjectConfigFile, `
coverage:
  enabled: false
  max_report_size: 5MB
pr_quality:
  min_description_length: 120
run:
  analyzers: [pr_quality, documentation]
  required: [pr_quality]
log:
  level: DEBUG
`)

	cfg, err := config.NewLoader().
		WithProjectRoot(dir).
		WithGetenv(envMap(map[string]string{
			"CACHE_TTL":                      "60",
			"CACHE_MAX_SIZE":                 "10",
			"CODEGUARDIAN_RETRY_BASE_DELAY":  "250ms",
			"CODEGUARDIAN_RETRY_MAX_RETRIES": "5",
		})).
		Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Coverage.Enabled)
	assert.Equal(t, config.ByteSize(5_000_000), cfg.Coverage.MaxReportSize)
	assert.Equal(t, 120, cfg.PRQuality.MinDescriptionLength)
	assert.True(t, cfg.PRQuality.RequireIssueLink, "unset fields keep defaults")
	assert.Equal(t, []string{"pr_quality", "documentation"}, cfg.AnalyzerOrder())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Cache.MaxSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
}

func TestExplicitPathOverridesProject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, config.ProjectConfigFile, "coverage:\n  threshold: 70\n")
	explicit := writeFile(t, t.TempDir(), "ci.yml", "coverage:\n  threshold: 90\n")

	cfg, err := config.NewLoader().WithProjectRoot(dir).WithGetenv(envMap(nil)).Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.Coverage.Threshold)
}

func TestLegacyAnalysisSection(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(`
analysis:
  max_function_length: 80
  max_nesting_depth: 4
  max_complexity: 12
  max_lines: 500
`))
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.CodeQuality.MaxFunctionLength)
	assert.Equal(t, 500, cfg.CodeQuality.MaxLines)
	assert.True(t, cfg.CodeQuality.Enabled)
	assert.Nil(t, cfg.Analysis)
}

func TestLoadErrorsAreConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "malformed yaml", yaml: "coverage: [1, 2"},
		{name: "unknown field", yaml: "coverage:\n  treshold: 80\n"},
		{name: "threshold out of range", yaml: "coverage:\n  threshold: 180\n"},
		{name: "negative complexity", yaml: "code_quality:\n  max_complexity: -1\n"},
		{name: "invalid analyzer id", yaml: "run:\n  analyzers: [\"License Check\"]\n"},
		{name: "plugin section for built-in", yaml: "analyzers:\n  coverage:\n    enabled: false\n"},
		{name: "plugin section not scheduled", yaml: "analyzers:\n  license:\n    enabled: true\n"},
		{name: "required not configured", yaml: "run:\n  analyzers: [coverage]\n  required: [pr_quality]\n"},
		{name: "bad byte size", yaml: "coverage:\n  max_report_size: lots\n"},
		{name: "bad env", yaml: "", env: map[string]string{"CACHE_TTL": "soon"}},
		{name: "zero retries", yaml: "", env: map[string]string{"CODEGUARDIAN_RETRY_MAX_RETRIES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "c.yml", tt.yaml)
			_, err := config.NewLoader().WithProjectRoot(t.TempDir()).WithGetenv(envMap(tt.env)).Load(path)
			require.Error(t, err)
			assert.True(t, gerrors.IsType(err, gerrors.ErrConfig), "got %v", err)
		})
	}
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := config.NewLoader().WithProjectRoot(t.TempDir()).Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.True(t, gerrors.IsType(err, gerrors.ErrConfig))
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Run.Workers = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run.workers")
	assert.Contains(t, err.Error(), "log.format")
}

func TestEnabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Coverage.Enabled = false
	assert.False(t, cfg.Enabled("coverage"))
	assert.True(t, cfg.Enabled("pr_quality"))
	assert.False(t, cfg.Enabled("unknown"))
}

func TestRegisteredAnalyzerSection(t *testing.T) {
	path := writeFile(t, t.TempDir(), "c.yml", `
run:
  analyzers: [pr_quality, license, changelog]
analyzers:
  license:
    settings:
      allowed: [MIT, Apache-2.0]
  changelog:
    enabled: false
`)
	cfg, err := config.NewLoader().WithProjectRoot(t.TempDir()).WithGetenv(envMap(nil)).Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled("license"), "listed analyzers default to on")
	assert.False(t, cfg.Enabled("changelog"))
	assert.Equal(t, []any{"MIT", "Apache-2.0"}, cfg.Plugin("license").Settings["allowed"])
	assert.Equal(t, []string{"pr_quality", "license", "changelog"}, cfg.AnalyzerOrder())
}
