// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// JSONSink writes the report as indented JSON, either to a writer or to a
// file that is replaced atomically.
type JSONSink struct {
	w    io.Writer
	path string
}

// NewJSONSink writes to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

// NewJSONFileSink writes to path.
func NewJSONFileSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

// Deliver encodes the report.
func (s *JSONSink) Deliver(_ context.Context, report *review.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if s.path == "" {
		_, err := s.w.Write(data)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
