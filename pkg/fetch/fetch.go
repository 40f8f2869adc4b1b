// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package fetch wraps upstream calls with classified retries.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeguardian-bot/codeguardian/pkg/backoff"
	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
)

// Class is the outcome of classifying a failed attempt.
type Class int

const (
	Retryable Class = iota
	Fatal
)

func (c Class) String() string {
	if c == Fatal {
		return "fatal"
	}
	return "retryable"
}

// Classifier maps an operation error to a Class.
type Classifier func(error) Class

// DefaultClassifier treats cancellation and errors typed fatal or config as
// fatal. Everything else, including errors it cannot place, is retryable.
func DefaultClassifier(err error) Class {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Fatal
	case gerrors.IsRateLimit(err):
		return Retryable
	case gerrors.IsType(err, gerrors.ErrFatal), gerrors.IsType(err, gerrors.ErrConfig):
		return Fatal
	}
	return Retryable
}

// RetryState tracks one Execute call.
type RetryState struct {
	Attempt   int
	Waited    time.Duration
	LastClass Class
	LastErr   error
}

// Fetcher runs operations with bounded retries.
type Fetcher struct {
	maxRetries int
	policy     *backoff.Policy
	sleep      func(ctx context.Context, d time.Duration) error
	logger     observability.Logger
	metrics    *observability.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger for retry decisions.
func WithLogger(l observability.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithMetrics records attempt outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithSleep replaces the wait between attempts. The function must return
// ctx.Err() if ctx is done before d elapses.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = fn }
}

// New creates a Fetcher. maxRetries is the total number of invocations an
// operation may receive, so 1 disables retrying.
func New(maxRetries int, policy *backoff.Policy, opts ...Option) (*Fetcher, error) {
	if maxRetries < 1 {
		return nil, fmt.Errorf("max retries must be >= 1, got %d", maxRetries)
	}
	if policy == nil {
		policy = backoff.DefaultPolicy()
	}

	f := &Fetcher{
		maxRetries: maxRetries,
		policy:     policy,
		sleep:      sleepContext,
		logger:     observability.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// MaxRetries returns the invocation limit.
func (f *Fetcher) MaxRetries() int {
	return f.maxRetries
}

// Execute calls op until it succeeds, fails fatally, or has been invoked
// MaxRetries times. Rate-limit errors are retried whatever classify says. A fatal error is returned unchanged. Exhaustion returns
// a RetriesExhausted error wrapping the last failure.
func (f *Fetcher) Execute(ctx context.Context, op func(ctx context.Context) error, classify Classifier) error {
	if classify == nil {
		classify = DefaultClassifier
	}

	var state RetryState
	for state.Attempt = 1; ; state.Attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			f.metrics.RecordFetchAttempt("success")
			return nil
		}

		state.LastErr = err
		state.LastClass = classify(err)
		if gerrors.IsRateLimit(err) {
			state.LastClass = Retryable
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			state.LastClass = Fatal
		}

		if state.LastClass == Fatal {
			f.metrics.RecordFetchAttempt("fatal")
			return err
		}

		if state.Attempt >= f.maxRetries {
			f.metrics.RecordFetchAttempt("exhausted")
			f.logger.Warn("upstream retries exhausted",
				observability.Int("attempts", state.Attempt),
				observability.Duration("waited", state.Waited),
				observability.Err(err))
			return gerrors.RetriesExhausted(state.Attempt, err)
		}

		delay := f.policy.NextDelay(state.Attempt)
		if hint := gerrors.RetryAfter(err); hint > delay {
			delay = hint
		}

		f.metrics.RecordFetchAttempt("retry")
		f.logger.Debug("retrying upstream call",
			observability.Int("attempt", state.Attempt),
			observability.Duration("delay", delay),
			observability.Err(err))

		if err := f.sleep(ctx, delay); err != nil {
			return err
		}
		state.Waited += delay
	}
}

// Do is Execute for operations that return a value.
func Do[T any](ctx context.Context, f *Fetcher, op func(ctx context.Context) (T, error), classify Classifier) (T, error) {
	var out T
	err := f.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, classify)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
