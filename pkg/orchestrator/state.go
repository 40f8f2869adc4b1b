// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package orchestrator

// State is the lifecycle position of one run.
type State int

const (
	StateInitialized State = iota
	StateContextBuilt
	StateRunning
	StateAggregated
	StateDelivered
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateContextBuilt:
		return "context_built"
	case StateRunning:
		return "running"
	case StateAggregated:
		return "aggregated"
	case StateDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// StateHook observes state transitions. It is called synchronously from Run
// and must not block.
type StateHook func(runID string, s State)
