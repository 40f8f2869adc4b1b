// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func envMap(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestTargetFromEnv(t *testing.T) {
	dir := t.TempDir()
	eventPath := filepath.Join(dir, "event.json")
	if err := os.WriteFile(eventPath, []byte(`{"action":"opened","pull_request":{"number":42}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		env     map[string]string
		want    Target
		wantErr bool
	}{
		{
			name: "explicit number",
			env: map[string]string{
				"GITHUB_EVENT_NAME":   "pull_request",
				"GITHUB_REPOSITORY":   "acme/widgets",
				"GITHUB_EVENT_NUMBER": "17",
			},
			want: Target{Repository: "acme/widgets", Number: 17},
		},
		{
			name: "number from payload",
			env: map[string]string{
				"GITHUB_EVENT_NAME": "pull_request_target",
				"GITHUB_REPOSITORY": "acme/widgets",
				"GITHUB_EVENT_PATH": eventPath,
			},
			want: Target{Repository: "acme/widgets", Number: 42},
		},
		{
			name:    "push event",
			env:     map[string]string{"GITHUB_EVENT_NAME": "push", "GITHUB_REPOSITORY": "acme/widgets"},
			wantErr: true,
		},
		{
			name: "missing number",
			env: map[string]string{
				"GITHUB_EVENT_NAME": "pull_request",
				"GITHUB_REPOSITORY": "acme/widgets",
			},
			wantErr: true,
		},
		{
			name: "bad repository",
			env: map[string]string{
				"GITHUB_EVENT_NAME":   "pull_request",
				"GITHUB_REPOSITORY":   "widgets",
				"GITHUB_EVENT_NUMBER": "3",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TargetFromEnv(envMap(tt.env))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInGitHubActions(t *testing.T) {
	if !InGitHubActions(envMap(map[string]string{"GITHUB_ACTIONS": "true"})) {
		t.Error("expected GitHub Actions to be detected")
	}
	if InGitHubActions(envMap(nil)) {
		t.Error("expected no detection")
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.github.com", false},
		{"https://github.example.com/api/v3", false},
		{"http://127.0.0.1:8080", false},
		{"ftp://api.github.com", true},
		{"http://169.254.169.254/latest", true},
		{"http://10.0.0.5", true},
		{"http://192.168.1.1", true},
		{"http://[fe80::1]", true},
		{"https://", true},
	}

	for _, tt := range tests {
		err := validateBaseURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateBaseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}
