// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package orchestrator

import (
	"context"

	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// Sink receives the finished report of a run.
type Sink interface {
	Deliver(ctx context.Context, report *review.Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, report *review.Report) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, report *review.Report) error {
	return f(ctx, report)
}
