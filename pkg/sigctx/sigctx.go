// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package sigctx ties context cancellation to OS signals.
package sigctx

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// DefaultSignals are the signals that abort a run.
var DefaultSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// WithSignal returns a context cancelled when one of sigs arrives or parent
// is done. The returned cancel function must be called to release the
// signal subscription and the watcher goroutine.
//
//	ctx, cancel := sigctx.WithSignal(context.Background())
//	defer cancel()
func WithSignal(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	if len(sigs) == 0 {
		sigs = DefaultSignals
	}

	ctx, cancel := context.WithCancel(parent)

	ch := make(chan os.Signal, len(sigs))
	signal.Notify(ch, sigs...)

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ch:
			cancel()
		case <-stopCh:
		case <-ctx.Done():
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(ch)
			close(stopCh)
			cancel()
			<-done
		})
	}
	return ctx, stop
}
