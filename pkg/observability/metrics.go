// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codeguardian"

// Metrics provides metrics collection. Each instance owns a private
// registry so several can coexist in one process (tests, embedded use).
type Metrics struct {
	registry *prometheus.Registry

	analyzerRuns     *prometheus.CounterVec
	analyzerDuration *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	cacheEvictions   prometheus.Counter
	fetchAttempts    *prometheus.CounterVec
	verdicts         *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyzerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_runs_total",
			Help:      "Analyzer executions by analyzer and result status.",
		}, []string{"analyzer", "status"}),
		analyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_duration_seconds",
			Help:      "Analyzer execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"analyzer"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"outcome"}),
		cacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries evicted from the result cache to make room.",
		}),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Upstream call attempts by outcome.",
		}, []string{"outcome"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_verdicts_total",
			Help:      "Completed runs by verdict.",
		}, []string{"verdict"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by event and disposition.",
		}, []string{"event", "disposition"}),
	}

	m.registry.MustRegister(
		m.analyzerRuns,
		m.analyzerDuration,
		m.cacheLookups,
		m.cacheEvictions,
		m.fetchAttempts,
		m.verdicts,
		m.webhookEvents,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAnalyzer records one analyzer execution.
func (m *Metrics) RecordAnalyzer(analyzer, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.analyzerRuns.WithLabelValues(analyzer, status).Inc()
	m.analyzerDuration.WithLabelValues(analyzer).Observe(d.Seconds())
}

// RecordCacheHit records a cache hit/miss.
func (m *Metrics) RecordCacheHit(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// RecordCacheEviction counts one LRU eviction.
func (m *Metrics) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.cacheEvictions.Inc()
}

// RecordFetchAttempt records an upstream attempt; outcome is one of
// success, retry, fatal, exhausted.
func (m *Metrics) RecordFetchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.fetchAttempts.WithLabelValues(outcome).Inc()
}

// RecordVerdict records the verdict of a completed run.
func (m *Metrics) RecordVerdict(passed bool) {
	if m == nil {
		return
	}
	verdict := "fail"
	if passed {
		verdict = "pass"
	}
	m.verdicts.WithLabelValues(verdict).Inc()
}

// RecordWebhook records a webhook delivery.
func (m *Metrics) RecordWebhook(event, disposition string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(event, disposition).Inc()
}
