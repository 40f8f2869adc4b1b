// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/perf"
	"github.com/codeguardian-bot/codeguardian/pkg/platform"
	"github.com/codeguardian-bot/codeguardian/pkg/review"
)

// Runner performs one review. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, target platform.Target) (*review.Report, error)
}

// Options configures a Server.
type Options struct {
	// Secret verifies X-Hub-Signature-256. Empty disables verification.
	Secret    string
	Workers   int
	QueueSize int
	Logger    observability.Logger
	Metrics   *observability.Metrics
}

// Server accepts deliveries and queues review runs on a bounded pool.
// Runs outlive the request that triggered them and are canceled by Close.
type Server struct {
	runner  Runner
	secret  string
	pool    *perf.WorkerPool
	logger  observability.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inflight map[platform.Target]bool
}

// NewServer creates a server and starts its workers.
func NewServer(runner Runner, opts Options) (*Server, error) {
	if runner == nil {
		return nil, errors.New("webhook: runner is required")
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNop()
	}
	workers := max(opts.Workers, 1)
	pool, err := perf.NewWorkerPool(workers, perf.WithQueueSize(opts.QueueSize),
		perf.WithPanicHandler(func(r any) {
			opts.Logger.Error("review run panicked", observability.Any("panic", r))
		}))
	if err != nil {
		return nil, err
	}
	pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runner:   runner,
		secret:   opts.Secret,
		pool:     pool,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[platform.Target]bool),
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		mux.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	mux.Post("/webhook/github", s.handleGitHub)
	return mux
}

// Close cancels running reviews and waits for the workers to exit.
func (s *Server) Close() {
	s.cancel()
	s.pool.Stop()
}

func (s *Server) handleGitHub(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get("X-GitHub-Event")
	delivery := r.Header.Get("X-GitHub-Delivery")
	log := s.logger.With(observability.String("event", eventType), observability.String("delivery", delivery))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadSize))
	if err != nil {
		s.respond(w, eventType, "rejected", http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if s.secret != "" {
		if err := VerifySignature(body, r.Header.Get("X-Hub-Signature-256"), s.secret); err != nil {
			log.Warn("webhook signature rejected")
			s.respond(w, eventType, "unauthorized", http.StatusUnauthorized, err.Error())
			return
		}
	}

	event, err := ParseGitHubEvent(body, eventType)
	if err != nil {
		log.Warn("webhook payload rejected", observability.Err(err))
		s.respond(w, eventType, "rejected", http.StatusBadRequest, err.Error())
		return
	}
	if event == nil {
		s.respond(w, eventType, "ignored", http.StatusOK, "ignored")
		return
	}

	if !s.claim(event.Target) {
		s.respond(w, eventType, "duplicate", http.StatusAccepted, "already queued")
		return
	}
	err = s.pool.TrySubmit(func() { s.review(event, log) })
	if err != nil {
		s.release(event.Target)
		log.Warn("review queue rejected event", observability.Err(err))
		s.respond(w, eventType, "overloaded", http.StatusServiceUnavailable, "review queue is full")
		return
	}
	log.Info("review queued",
		observability.String("target", event.Target.String()),
		observability.String("action", event.Type.String()))
	s.respond(w, eventType, "queued", http.StatusAccepted, "queued")
}

func (s *Server) review(event *Event, log observability.Logger) {
	s.release(event.Target)
	report, err := s.runner.Run(s.ctx, event.Target)
	if err != nil {
		log.Error("review run failed", observability.String("target", event.Target.String()), observability.Err(err))
		return
	}
	log.Info("review run delivered",
		observability.String("target", event.Target.String()),
		observability.Bool("passed", report.Passed))
}

// claim marks target as queued. A PR already waiting for a run is not
// queued twice, since that run will pick up the latest state anyway.
func (s *Server) claim(t platform.Target) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[t] {
		return false
	}
	s.inflight[t] = true
	return true
}

func (s *Server) release(t platform.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, t)
}

func (s *Server) respond(w http.ResponseWriter, event, disposition string, code int, msg string) {
	s.metrics.RecordWebhook(event, disposition)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": disposition, "message": msg})
}
