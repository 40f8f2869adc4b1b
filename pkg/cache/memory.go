// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/codeguardian-bot/codeguardian/pkg/observability"
)

// Codec converts values to and from the bytes kept in a Store.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// JSONCodec encodes values as JSON.
type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

// Layered reads the in-memory tier first and falls back to an optional
// persistent Store. Writes go to both. Store failures are logged and the
// cache keeps working from memory.
type Layered[V any] struct {
	mem    *TTLCache[string, V]
	store  Store
	codec  Codec[V]
	now    func() time.Time
	logger observability.Logger
}

// LayeredOption configures a Layered cache.
type LayeredOption[V any] func(*Layered[V])

// WithStore attaches a persistent tier.
func WithStore[V any](s Store) LayeredOption[V] {
	return func(l *Layered[V]) { l.store = s }
}

// WithCodec overrides the JSON codec.
func WithCodec[V any](c Codec[V]) LayeredOption[V] {
	return func(l *Layered[V]) { l.codec = c }
}

// WithLogger sets the logger used for store failures.
func WithLogger[V any](logger observability.Logger) LayeredOption[V] {
	return func(l *Layered[V]) { l.logger = logger }
}

// NewLayered wraps mem. clock must be the same clock mem was built with.
func NewLayered[V any](mem *TTLCache[string, V], clock func() time.Time, opts ...LayeredOption[V]) *Layered[V] {
	if clock == nil {
		clock = time.Now
	}
	l := &Layered[V]{
		mem:    mem,
		codec:  JSONCodec[V]{},
		now:    clock,
		logger: observability.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Memory returns the in-memory tier.
func (l *Layered[V]) Memory() *TTLCache[string, V] {
	return l.mem
}

// Get returns a visible value. A store hit re-hydrates memory with the
// record's remaining lifetime.
func (l *Layered[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := l.mem.Get(key); ok {
		return v, true
	}

	var zero V
	if l.store == nil {
		return zero, false
	}

	rec, err := l.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			l.logger.Warn("cache store read failed", observability.String("key", key), observability.Err(err))
		}
		return zero, false
	}

	now := l.now()
	if rec.Expired(now) {
		if err := l.store.Delete(ctx, key); err != nil {
			l.logger.Warn("cache store delete failed", observability.String("key", key), observability.Err(err))
		}
		return zero, false
	}

	v, err := l.codec.Decode(rec.Value)
	if err != nil {
		l.logger.Warn("cache record undecodable", observability.String("key", key), observability.Err(err))
		return zero, false
	}

	ttl := rec.TTL
	if ttl > 0 {
		ttl = rec.TTL - now.Sub(rec.CreatedAt)
		if ttl <= 0 {
			// Visible at exactly the boundary; keep it alive for the read.
			ttl = time.Nanosecond
		}
	}
	l.mem.Set(key, v, ttl)
	return v, true
}

// Set stores value in memory and, when configured, in the store.
func (l *Layered[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = l.mem.defaultTTL
	}
	l.mem.Set(key, value, ttl)

	if l.store == nil {
		return
	}
	b, err := l.codec.Encode(value)
	if err != nil {
		l.logger.Warn("cache value unencodable", observability.String("key", key), observability.Err(err))
		return
	}
	rec := Record{Key: key, Value: b, CreatedAt: l.now(), TTL: ttl}
	if err := l.store.Put(ctx, rec); err != nil {
		l.logger.Warn("cache store write failed", observability.String("key", key), observability.Err(err))
	}
}

// Delete removes key from both tiers.
func (l *Layered[V]) Delete(ctx context.Context, key string) {
	l.mem.Delete(key)
	if l.store != nil {
		if err := l.store.Delete(ctx, key); err != nil {
			l.logger.Warn("cache store delete failed", observability.String("key", key), observability.Err(err))
		}
	}
}

// Clear empties both tiers.
func (l *Layered[V]) Clear(ctx context.Context) error {
	l.mem.Clear()
	if l.store != nil {
		return l.store.Clear(ctx)
	}
	return nil
}

// Sweep removes expired entries from both tiers and returns the total.
func (l *Layered[V]) Sweep(ctx context.Context) (int, error) {
	n := l.mem.Sweep()
	if l.store == nil {
		return n, nil
	}
	m, err := l.store.Sweep(ctx, l.now())
	return n + m, err
}

// Close stops the memory sweeper and closes the store.
func (l *Layered[V]) Close() error {
	l.mem.Close()
	if l.store != nil {
		return l.store.Close()
	}
	return nil
}
