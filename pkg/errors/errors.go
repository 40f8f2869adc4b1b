// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package errors provides typed errors for codeguardian
package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrConfig indicates an invalid configuration; fails the run before any analyzer executes
	ErrConfig ErrorType = iota
	// ErrTransient indicates a network, timeout or server failure talking to the upstream API
	ErrTransient
	// ErrFatal indicates an auth, permission or not-found failure that must not be retried
	ErrFatal
	// ErrRetriesExhausted wraps the last transient error once the backoff budget is spent
	ErrRetriesExhausted
	// ErrAnalyzerFault indicates an unexpected failure inside one analyzer
	ErrAnalyzerFault
	// ErrTimeout indicates a deadline was reached
	ErrTimeout
)

// GuardianError is the base error type for all codeguardian errors
type GuardianError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns the error message
func (e *GuardianError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", errorTypeString(e.Type), e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", errorTypeString(e.Type), e.Message)
}

// Unwrap returns the underlying cause
func (e *GuardianError) Unwrap() error {
	return e.Cause
}

// New creates a new GuardianError
func New(errType ErrorType, message string, cause error) *GuardianError {
	return &GuardianError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *GuardianError) WithContext(key string, value interface{}) *GuardianError {
	e.Context[key] = value
	return e
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var gErr *GuardianError
	if err == nil {
		return false
	}
	if errors.As(err, &gErr) {
		return gErr.Type == errType
	}
	return false
}

// RateLimitError is returned by the upstream when it refuses a request
// because of rate limiting (HTTP 403 with an exhausted quota, or 429).
type RateLimitError struct {
	StatusCode int
	// RetryAfter is the server-provided wait hint; zero when absent.
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d, retry after %s): %s", e.StatusCode, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.Message)
}

// IsRateLimit reports whether err carries a rate-limit signal.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// RetryAfter returns the server-provided retry hint carried by err, if any.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// IsRetryable returns true if the error is transient and retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsRateLimit(err) {
		return true
	}

	var gErr *GuardianError
	if !errors.As(err, &gErr) {
		return false
	}

	switch gErr.Type {
	case ErrTransient, ErrTimeout:
		return true
	default:
		return false
	}
}

// ShouldFailRun returns true if the error must abort the whole run instead of
// being absorbed into a Result.
func ShouldFailRun(err error) bool {
	var gErr *GuardianError
	if !errors.As(err, &gErr) {
		return false
	}
	return gErr.Type == ErrConfig
}

func errorTypeString(et ErrorType) string {
	switch et {
	case ErrConfig:
		return "CONFIG"
	case ErrTransient:
		return "TRANSIENT"
	case ErrFatal:
		return "FATAL"
	case ErrRetriesExhausted:
		return "RETRIES_EXHAUSTED"
	case ErrAnalyzerFault:
		return "ANALYZER_FAULT"
	case ErrTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Convenience functions for common errors

// ConfigError creates a configuration error
func ConfigError(message string, cause error) *GuardianError {
	return New(ErrConfig, message, cause)
}

// TransientError creates a retryable upstream error
func TransientError(message string, cause error) *GuardianError {
	return New(ErrTransient, message, cause)
}

// FatalError creates a non-retryable upstream error
func FatalError(message string, cause error) *GuardianError {
	return New(ErrFatal, message, cause)
}

// RetriesExhausted wraps the last transient error after attempts invocations
func RetriesExhausted(attempts int, cause error) *GuardianError {
	return New(ErrRetriesExhausted, fmt.Sprintf("gave up after %d attempts", attempts), cause).
		WithContext("attempts", attempts)
}

// AnalyzerFault creates an analyzer fault error
func AnalyzerFault(analyzer string, cause error) *GuardianError {
	return New(ErrAnalyzerFault, "analyzer "+analyzer+" failed", cause).
		WithContext("analyzer", analyzer)
}

// TimeoutError creates a timeout error
func TimeoutError(message string, cause error) *GuardianError {
	return New(ErrTimeout, message, cause)
}
