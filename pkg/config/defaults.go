// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"time"
)

// DefaultConfig returns the default configuration.
// These values are used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		Documentation: DefaultDocumentationConfig(),
		Coverage:      DefaultCoverageConfig(),
		CodeQuality:   DefaultCodeQualityConfig(),
		PRQuality:     DefaultPRQualityConfig(),
		Run: RunConfig{
			Workers: 4,
			Timeout: 5 * time.Minute,
		},
		Cache:  DefaultCacheConfig(),
		Retry:  DefaultRetryConfig(),
		GitHub: GitHubConfig{APIURL: "https://api.github.com", TokenEnv: "GITHUB_TOKEN"},
		Log:    LogConfig{Level: "info", Format: "json"},
		Output: OutputConfig{Formats: []string{"console"}},
		Webhook: WebhookConfig{
			Listen:    ":8080",
			SecretEnv: "CODEGUARDIAN_WEBHOOK_SECRET",
			QueueSize: 64,
			Workers:   2,
		},
	}
}

// DefaultDocumentationConfig returns default documentation thresholds.
func DefaultDocumentationConfig() DocumentationConfig {
	return DocumentationConfig{
		Enabled:           true,
		MinDocCoverage:    80,
		RequiredArtifacts: []string{"README.md"},
	}
}

// DefaultCoverageConfig returns default coverage settings.
func DefaultCoverageConfig() CoverageConfig {
	return CoverageConfig{
		Enabled:       true,
		Threshold:     80,
		Format:        "cobertura",
		ReportPath:    "coverage.xml",
		MaxReportSize: 20 << 20,
	}
}

// DefaultCodeQualityConfig returns default code quality limits.
func DefaultCodeQualityConfig() CodeQualityConfig {
	return CodeQualityConfig{
		Enabled:           true,
		MaxFunctionLength: 50,
		MaxNestingDepth:   3,
		MaxComplexity:     10,
		MaxLines:          300,
	}
}

// DefaultPRQualityConfig returns default PR description rules.
func DefaultPRQualityConfig() PRQualityConfig {
	return PRQualityConfig{
		Enabled:              true,
		MinDescriptionLength: 50,
		RequireIssueLink:     true,
		RequireTestSummary:   true,
		ReviewReminderHours:  48,
	}
}

// DefaultCacheConfig returns default cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:         true,
		Dir:             ".cache",
		Persistent:      true,
		TTL:             time.Hour,
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRetryConfig returns default retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Jitter:     0.2,
	}
}
