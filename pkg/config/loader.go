// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
)

const (
	// EnvPrefix is the prefix for all environment variables.
	EnvPrefix = "CODEGUARDIAN"
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = ".codeguardian.yml"
)

var projectConfigFiles = []string{ProjectConfigFile, ".codeguardian.yaml"}

// Loader loads configuration from files and environment.
type Loader struct {
	projectRoot string
	getenv      func(string) string
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{getenv: os.Getenv}
}

// WithProjectRoot sets the project root directory.
func (l *Loader) WithProjectRoot(root string) *Loader {
	l.projectRoot = root
	return l
}

// WithGetenv replaces the environment lookup.
func (l *Loader) WithGetenv(fn func(string) string) *Loader {
	l.getenv = fn
	return l
}

// Load resolves the configuration with full precedence order and validates
// it. path is optional; when set the file must exist.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if project, ok := l.findProjectConfig(); ok {
		if err := decodeFile(project, cfg); err != nil {
			return nil, err
		}
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads defaults overlaid with a single file, without
// environment overrides.
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if err := decode(r, cfg); err != nil {
		return nil, gerrors.ConfigError("failed to parse config", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (l *Loader) findProjectConfig() (string, bool) {
	root := l.projectRoot
	if root == "" {
		root = "."
	}
	for _, name := range projectConfigFiles {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// decodeFile overlays the YAML at path onto cfg. Fields absent from the file
// keep their current values.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return gerrors.ConfigError(fmt.Sprintf("config file not found: %s", path), err)
		}
		return gerrors.ConfigError(fmt.Sprintf("failed to read config file: %s", path), err)
	}
	if err := decode(bytes.NewReader(data), cfg); err != nil {
		return gerrors.ConfigError(fmt.Sprintf("failed to parse config file: %s", path), err)
	}
	return nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// normalize folds legacy sections into their current names.
func (c *Config) normalize() {
	if c.Analysis != nil {
		enabled := c.CodeQuality.Enabled
		c.CodeQuality = *c.Analysis
		c.CodeQuality.Enabled = enabled || c.Analysis.Enabled
		c.Analysis = nil
	}
	for i, f := range c.Output.Formats {
		c.Output.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// applyEnvOverrides applies environment variable overrides.
// Format: CODEGUARDIAN_<SECTION>_<KEY>=value
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	env := envReader{getenv: l.getenv}

	// Legacy names first so the prefixed ones win.
	env.str("CACHE_DIR", &cfg.Cache.Dir)
	env.seconds("CACHE_TTL", &cfg.Cache.TTL)
	env.int("CACHE_MAX_SIZE", &cfg.Cache.MaxSize)
	env.seconds("CACHE_CLEANUP_INTERVAL", &cfg.Cache.CleanupInterval)

	env.str(EnvPrefix+"_LOG_LEVEL", &cfg.Log.Level)
	env.str(EnvPrefix+"_LOG_FORMAT", &cfg.Log.Format)
	env.str(EnvPrefix+"_CACHE_DIR", &cfg.Cache.Dir)
	env.duration(EnvPrefix+"_CACHE_TTL", &cfg.Cache.TTL)
	env.int(EnvPrefix+"_CACHE_MAX_SIZE", &cfg.Cache.MaxSize)
	env.int(EnvPrefix+"_RETRY_MAX_RETRIES", &cfg.Retry.MaxRetries)
	env.duration(EnvPrefix+"_RETRY_BASE_DELAY", &cfg.Retry.BaseDelay)
	env.duration(EnvPrefix+"_RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)
	env.str(EnvPrefix+"_GITHUB_API_URL", &cfg.GitHub.APIURL)
	env.int(EnvPrefix+"_RUN_WORKERS", &cfg.Run.Workers)
	env.duration(EnvPrefix+"_RUN_TIMEOUT", &cfg.Run.Timeout)

	return env.err
}

// envReader records the first malformed variable.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) lookup(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v := strings.TrimSpace(e.getenv(key))
	return v, v != ""
}

func (e *envReader) fail(key string, err error) {
	e.err = gerrors.ConfigError(fmt.Sprintf("invalid value for %s", key), err)
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = d
	}
}

// seconds reads a plain integer number of seconds.
func (e *envReader) seconds(key string, dst *time.Duration) {
	if v, ok := e.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, err)
			return
		}
		*dst = time.Duration(n) * time.Second
	}
}
