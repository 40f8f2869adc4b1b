// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package perf provides the bounded worker pool that runs analyzers and
// webhook-triggered reviews.
package perf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// defaultQueueMultiplier is the multiplier for task queue size relative to maxWorkers
	defaultQueueMultiplier = 2
)

// ErrPoolStopped is returned when submitting to a stopped pool.
var ErrPoolStopped = errors.New("worker pool was stopped")

// ErrQueueFull is returned by TrySubmit when no queue slot is free.
var ErrQueueFull = errors.New("worker pool queue is full")

// PanicHandler receives the value recovered from a panicking task.
type PanicHandler func(recovered any)

// WorkerPool manages a fixed set of goroutines for concurrent task execution.
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	startOnce  sync.Once

	// mu orders sends on taskQueue against its close in Stop.
	mu      sync.RWMutex
	stopped bool

	activeJobs atomic.Int32
	onPanic    PanicHandler
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithQueueSize overrides the default queue length of 2x workers.
func WithQueueSize(n int) Option {
	return func(p *WorkerPool) {
		if n > 0 {
			p.taskQueue = make(chan func(), n)
		}
	}
}

// WithPanicHandler is called when a task panics. The worker survives.
func WithPanicHandler(fn PanicHandler) Option {
	return func(p *WorkerPool) { p.onPanic = fn }
}

// NewWorkerPool creates a new worker pool with the specified maximum number of workers
func NewWorkerPool(maxWorkers int, opts ...Option) (*WorkerPool, error) {
	if maxWorkers <= 0 {
		return nil, fmt.Errorf("maxWorkers must be positive, got %d", maxWorkers)
	}

	p := &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), maxWorkers*defaultQueueMultiplier),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start starts the workers. Calling it more than once has no effect.
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			p.wg.Add(1)
			go p.worker()
		}
	})
}

// worker runs tasks until the queue is closed and drained.
func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for task := range p.taskQueue {
		p.run(task)
	}
}

func (p *WorkerPool) run(task func()) {
	p.activeJobs.Add(1)
	defer p.activeJobs.Add(-1)
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}

// TrySubmit queues task without blocking. It returns ErrQueueFull when every
// slot is taken and ErrPoolStopped after Stop.
func (p *WorkerPool) TrySubmit(task func()) error {
	if task == nil {
		return errors.New("nil task")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit queues task, blocking until a slot frees up or ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	if task == nil {
		return errors.New("nil task")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitWait submits a task and waits for it to complete.
func (p *WorkerPool) SubmitWait(ctx context.Context, task func()) error {
	done := make(chan struct{})
	err := p.Submit(ctx, func() {
		defer close(done)
		task()
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting work, lets queued tasks finish and waits for the
// workers to exit. Safe to call multiple times.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.taskQueue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Workers returns the pool size.
func (p *WorkerPool) Workers() int {
	return p.maxWorkers
}

// ActiveJobs returns the number of currently active jobs
func (p *WorkerPool) ActiveJobs() int {
	return int(p.activeJobs.Load())
}

// QueueSize returns the current size of the task queue
func (p *WorkerPool) QueueSize() int {
	return len(p.taskQueue)
}
