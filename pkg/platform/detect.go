// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Getenv reads an environment variable. os.Getenv satisfies it.
type Getenv func(key string) string

// InGitHubActions reports whether the process runs inside a GitHub Actions job.
func InGitHubActions(getenv Getenv) bool {
	return getenv("GITHUB_ACTIONS") == "true"
}

// pullRequestEvents are the workflow triggers that carry a pull request.
var pullRequestEvents = map[string]bool{
	"pull_request":        true,
	"pull_request_target": true,
	"pull_request_review": true,
}

// TargetFromEnv resolves the pull request under analysis from the GitHub
// Actions environment. The number comes from GITHUB_EVENT_NUMBER when set,
// otherwise from the event payload at GITHUB_EVENT_PATH.
func TargetFromEnv(getenv Getenv) (Target, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	event := getenv("GITHUB_EVENT_NAME")
	if !pullRequestEvents[event] {
		return Target{}, fmt.Errorf("event %q is not a pull request event", event)
	}

	t := Target{Repository: getenv("GITHUB_REPOSITORY")}

	if raw := strings.TrimSpace(getenv("GITHUB_EVENT_NUMBER")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Target{}, fmt.Errorf("invalid GITHUB_EVENT_NUMBER %q: %w", raw, err)
		}
		t.Number = n
	} else if path := getenv("GITHUB_EVENT_PATH"); path != "" {
		n, err := numberFromEventFile(path)
		if err != nil {
			return Target{}, err
		}
		t.Number = n
	}

	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}

func numberFromEventFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read event payload: %w", err)
	}

	var payload struct {
		Number      int `json:"number"`
		PullRequest struct {
			Number int `json:"number"`
		} `json:"pull_request"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("parse event payload: %w", err)
	}
	if payload.PullRequest.Number != 0 {
		return payload.PullRequest.Number, nil
	}
	return payload.Number, nil
}
