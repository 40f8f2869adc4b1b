// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package orchestrator

import (
	"time"

	"github.com/codeguardian-bot/codeguardian/pkg/cache"
	"github.com/codeguardian-bot/codeguardian/pkg/config"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// ResultCache is the process-lifetime cache of analyzer results.
type ResultCache = cache.Layered[*review.Result]

// OpenResultCache builds the result cache described by cfg. With
// cache.persistent set, results are also kept in <cache.dir>/results.db so
// they survive between invocations. The background sweeper only runs when
// cache.cleanup_interval is positive.
func OpenResultCache(cfg config.CacheConfig, clock func() time.Time, logger observability.Logger, metrics *observability.Metrics) (*ResultCache, error) {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = observability.NewNop()
	}

	mem := cache.New[string, *review.Result](cache.Options{
		MaxSize:    cfg.MaxSize,
		DefaultTTL: cfg.TTL,
		Clock:      clock,
	})
	mem.SetOnEvicted(func(string, *review.Result) { metrics.RecordCacheEviction() })

	opts := []cache.LayeredOption[*review.Result]{cache.WithLogger[*review.Result](logger)}
	if cfg.Persistent {
		store, err := cache.OpenDiskCache(cfg.Dir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cache.WithStore[*review.Result](store))
	}

	if cfg.CleanupInterval > 0 {
		mem.StartSweeper(cfg.CleanupInterval)
	}
	return cache.NewLayered(mem, clock, opts...), nil
}
