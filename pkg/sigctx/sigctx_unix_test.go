//go:build unix

// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package sigctx

import (
	"context"
	"syscall"
	"testing"
	"time"
)

func TestSignalCancels(t *testing.T) {
	ctx, cancel := WithSignal(context.Background(), syscall.SIGUSR1)
	defer cancel()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by signal")
	}
}
