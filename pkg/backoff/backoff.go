// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package backoff computes retry delays for calls to the upstream API.
package backoff

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy defines an exponential backoff strategy.
type Policy struct {
	BaseDelay time.Duration // Delay before the first retry
	MaxDelay  time.Duration // Upper bound for any delay
	Jitter    float64       // Uniform jitter fraction, e.g. 0.2 for ±20% (0 disables)

	rand func() float64
}

// DefaultPolicy returns the default backoff policy.
func DefaultPolicy() *Policy {
	return &Policy{
		BaseDelay: 1 * time.Second,
		MaxDelay:  30 * time.Second,
		Jitter:    0.2,
	}
}

// New creates a policy and checks its bounds.
func New(base, max time.Duration, jitter float64) (*Policy, error) {
	if base <= 0 {
		return nil, fmt.Errorf("base delay must be positive, got %v", base)
	}
	if max < base {
		return nil, fmt.Errorf("max delay %v is below base delay %v", max, base)
	}
	if jitter < 0 || jitter >= 1 {
		return nil, fmt.Errorf("jitter must be in [0, 1), got %v", jitter)
	}
	return &Policy{BaseDelay: base, MaxDelay: max, Jitter: jitter}, nil
}

// WithRand replaces the random source used for jitter. fn must return values in [0, 1).
func (p *Policy) WithRand(fn func() float64) *Policy {
	p.rand = fn
	return p
}

// NextDelay returns the delay to wait before retry number attempt (1-based):
// min(MaxDelay, BaseDelay * 2^(attempt-1)) with jitter applied. It panics
// when attempt < 1.
//
// The un-jittered delay never decreases as attempt grows. With Jitter > 0
// each call draws its own factor, so a later delay can be shorter than an
// earlier one; only the bounds [d*(1-Jitter), min(MaxDelay, d*(1+Jitter))]
// hold per attempt.
func (p *Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		panic(fmt.Sprintf("backoff: attempt must be >= 1, got %d", attempt))
	}

	delay := p.BaseDelay
	for i := 1; i < attempt && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 {
		r := p.rand
		if r == nil {
			r = rand.Float64
		}
		// Scale by a factor in [1-Jitter, 1+Jitter).
		factor := 1 + p.Jitter*(2*r()-1)
		delay = time.Duration(float64(delay) * factor)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}
