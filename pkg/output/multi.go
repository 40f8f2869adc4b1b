// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/codeguardian-bot/codeguardian/pkg/config"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// Sink receives a finished report.
type Sink interface {
	Deliver(ctx context.Context, report *review.Report) error
}

// MultiSink fans a report out to several sinks. Every sink is tried and the
// failures are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks in delivery order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Deliver calls each sink in turn.
func (m *MultiSink) Deliver(ctx context.Context, report *review.Report) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Deliver(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Env carries what FromConfig needs to build sinks.
type Env struct {
	Stdout    io.Writer
	NoColor   bool
	Commenter platform.Commenter // required for the comment format
	Comment   []CommentOption
}

// FromConfig builds the sinks listed in output.formats. The json format
// writes to output.json_path when set, stdout otherwise.
func FromConfig(cfg config.OutputConfig, env Env) (*MultiSink, error) {
	var sinks []Sink
	for _, format := range cfg.Formats {
		switch format {
		case "console":
			sinks = append(sinks, NewConsoleSink(env.Stdout, env.NoColor))
		case "markdown":
			sinks = append(sinks, NewMarkdownSink(env.Stdout))
		case "json":
			if cfg.JSONPath != "" {
				sinks = append(sinks, NewJSONFileSink(cfg.JSONPath))
			} else {
				sinks = append(sinks, NewJSONSink(env.Stdout))
			}
		case "comment":
			if env.Commenter == nil {
				return nil, fmt.Errorf("output format %q needs an upstream that can post comments", format)
			}
			sinks = append(sinks, NewCommentSink(env.Commenter, env.Comment...))
		default:
			return nil, fmt.Errorf("unknown output format %q", format)
		}
	}
	return NewMultiSink(sinks...), nil
}
