// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package cache provides caching for analysis results.
//
// TTLCache is a bounded in-memory cache with per-entry expiry. When the
// bound is reached the least recently used entry is evicted. A single mutex
// guards both the entry map and the recency list, and eviction completes
// before the lock is released.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Entry represents a cache entry.
type Entry[K comparable, V any] struct {
	Key       K
	Value     V
	CreatedAt time.Time
	TTL       time.Duration // Zero means the entry never expires
}

// expired reports whether the entry is no longer visible at now.
// An entry is visible while now - created <= ttl.
func (e *Entry[K, V]) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// Remaining returns the time left before the entry expires.
func (e *Entry[K, V]) Remaining(now time.Time) time.Duration {
	if e.TTL <= 0 {
		return 0
	}
	return e.TTL - now.Sub(e.CreatedAt)
}

// Options configures a TTLCache.
type Options struct {
	MaxSize    int           // Maximum number of entries (must be positive)
	DefaultTTL time.Duration // TTL applied when Set receives ttl <= 0
	Clock      func() time.Time
}

// Stats holds cache counters.
type Stats struct {
	Len         int
	MaxSize     int
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}

// TTLCache is a thread-safe LRU cache with per-entry TTL.
type TTLCache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]*list.Element
	lru        *list.List // front = most recently used
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	onEvicted  func(K, V)

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	sweepMu   sync.Mutex
	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a new cache. A non-positive MaxSize is treated as 1.
func New[K comparable, V any](opts Options) *TTLCache[K, V] {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &TTLCache[K, V]{
		items:      make(map[K]*list.Element),
		lru:        list.New(),
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		now:        opts.Clock,
	}
}

// SetOnEvicted sets the callback invoked when an entry is evicted to make
// room. It runs with the cache lock held and must not call back into the cache.
func (c *TTLCache[K, V]) SetOnEvicted(fn func(K, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvicted = fn
}

// Get returns the value for key if present and unexpired. Expired entries
// are removed as a side effect and reported as a miss.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	entry, ok := c.GetEntry(key)
	if !ok {
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// GetEntry is like Get but returns the entry metadata as well.
func (c *TTLCache[K, V]) GetEntry(key K) (Entry[K, V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.misses.Add(1)
		return Entry[K, V]{}, false
	}

	entry := elem.Value.(*Entry[K, V])
	if entry.expired(c.now()) {
		c.removeElement(elem)
		c.expirations.Add(1)
		c.misses.Add(1)
		return Entry[K, V]{}, false
	}

	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return *entry, true
}

// Set inserts or overwrites key. When a new key would push the cache past
// MaxSize, expired entries are dropped first and least recently used live
// entries only after that.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &Entry[K, V]{
		Key:       key,
		Value:     value,
		CreatedAt: c.now(),
		TTL:       ttl,
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = entry
		c.lru.MoveToFront(elem)
		return
	}

	if c.lru.Len() >= c.maxSize {
		c.expirations.Add(int64(c.removeExpired()))
	}
	for c.lru.Len() >= c.maxSize {
		c.evictOldest()
	}

	c.items[key] = c.lru.PushFront(entry)
}

// Delete removes key from the cache.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// Clear drops every entry.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.lru.Init()
}

// Sweep removes all expired entries and returns how many were dropped.
func (c *TTLCache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.removeExpired()
	c.expirations.Add(int64(removed))
	return removed
}

// removeExpired drops every expired entry. c.mu must be held.
func (c *TTLCache[K, V]) removeExpired() int {
	now := c.now()
	removed := 0
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*Entry[K, V]).expired(now) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Len returns the number of stored entries, expired ones included until
// they are swept or read.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns keys from most to least recently used.
func (c *TTLCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.lru.Len())
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*Entry[K, V]).Key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *TTLCache[K, V]) Stats() Stats {
	return Stats{
		Len:         c.Len(),
		MaxSize:     c.maxSize,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}

// HitRate returns the cache hit rate (0-1)
func (c *TTLCache[K, V]) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// StartSweeper runs Sweep every interval until Close is called. A
// non-positive interval or a second call is a no-op.
func (c *TTLCache[K, V]) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}

	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	if c.stopSweep != nil {
		return
	}

	c.stopSweep = make(chan struct{})
	c.sweepDone = make(chan struct{})
	go c.sweepLoop(interval, c.stopSweep, c.sweepDone)
}

// Close stops the background sweeper and waits for it to exit.
// Safe to call multiple times.
func (c *TTLCache[K, V]) Close() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	if c.stopSweep == nil {
		return
	}
	close(c.stopSweep)
	<-c.sweepDone
	c.stopSweep = nil
	c.sweepDone = nil
}

func (c *TTLCache[K, V]) sweepLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-stop:
			return
		}
	}
}

// removeElement unlinks an element. Caller holds c.mu.
func (c *TTLCache[K, V]) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.items, elem.Value.(*Entry[K, V]).Key)
}

// evictOldest evicts the least recently used entry. Caller holds c.mu.
func (c *TTLCache[K, V]) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	c.evictions.Add(1)

	if c.onEvicted != nil {
		entry := elem.Value.(*Entry[K, V])
		c.onEvicted(entry.Key, entry.Value)
	}
}
