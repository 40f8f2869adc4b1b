// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import (
	"context"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/retry"

	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// Comment posting retry settings.
const (
	commentAttempts   = 4
	commentDelay      = time.Second
	commentMaxDelay   = 20 * time.Second
	commentMaxBodyLen = 65000 // GitHub rejects comment bodies over 65536 characters
)

// CommentSink posts the markdown report to the pull request, replacing the
// previous review comment when there is one.
type CommentSink struct {
	commenter platform.Commenter
	logger    observability.Logger
	attempts  uint
	delay     time.Duration
}

// CommentOption configures a CommentSink.
type CommentOption func(*CommentSink)

// WithCommentRetry overrides the attempt count and initial delay. Zero
// attempts would mean retrying forever, so at least one is kept.
func WithCommentRetry(attempts uint, delay time.Duration) CommentOption {
	return func(s *CommentSink) {
		s.attempts = max(attempts, 1)
		s.delay = max(delay, time.Millisecond)
	}
}

// WithCommentLogger sets the logger.
func WithCommentLogger(l observability.Logger) CommentOption {
	return func(s *CommentSink) { s.logger = l }
}

// NewCommentSink creates a comment sink.
func NewCommentSink(c platform.Commenter, opts ...CommentOption) *CommentSink {
	s := &CommentSink{
		commenter: c,
		logger:    observability.NewNop(),
		attempts:  commentAttempts,
		delay:     commentDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver upserts the review comment. Transient and rate-limit failures are
// retried with jittered backoff.
func (s *CommentSink) Deliver(ctx context.Context, report *review.Report) error {
	body := CommentMarker + "\n" + Markdown(report)
	if len(body) > commentMaxBodyLen {
		body = body[:commentMaxBodyLen] + "\n\n_Report truncated._\n"
	}

	err := retry.Do(
		func() error {
			return s.commenter.UpsertComment(ctx, report.Repository, report.PRNumber, CommentMarker, body)
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.MaxDelay(commentMaxDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(s.delay/4),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("retrying review comment",
				observability.Int("attempt", int(n)+1),
				observability.Err(err))
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(gerrors.IsRetryable),
	)
	if err != nil {
		return fmt.Errorf("post review comment on %s#%d: %w", report.Repository, report.PRNumber, err)
	}
	s.logger.Info("review comment posted",
		observability.String("repository", report.Repository),
		observability.Int("pr", report.PRNumber))
	return nil
}
