// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package version provides build information for the codeguardian binary.
// The variables are set via ldflags, e.g.
//
//	-ldflags "-X github.com/codeguardian-bot/codeguardian/pkg/version.Version=v1.2.0"
package version

import "runtime"

// Version is the release version of the binary.
var Version = "dev"

// BuildDate is the date when the binary was built.
var BuildDate = "unknown"

// GitCommit is the commit the binary was built from.
var GitCommit = "unknown"

// GoVersion is the toolchain used for the build. It falls back to the
// running toolchain when not set at link time.
var GoVersion = ""

// String returns the bare version.
func String() string {
	return Version
}

// FullString returns a version line suitable for --version.
func FullString() string {
	if Version == "dev" {
		return "codeguardian development version"
	}
	return "codeguardian " + Version
}

// Info returns all build information as a map.
func Info() map[string]string {
	goVersion := GoVersion
	if goVersion == "" {
		goVersion = runtime.Version()
	}
	return map[string]string{
		"version":   Version,
		"buildDate": BuildDate,
		"gitCommit": GitCommit,
		"goVersion": goVersion,
	}
}

// UserAgent is sent with every upstream API request.
func UserAgent() string {
	return "codeguardian/" + Version
}
