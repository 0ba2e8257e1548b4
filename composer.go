/*
Package qcomposer serves a single shared qubit composer session.

Clients drive the session through commands (apply, preview and undo gates,
measure, unmeasure, reset, compare states) and watch it through a websocket
that mirrors every accepted change. All commands go through one Controller,
which serializes mutations and queues broadcast events in commit order.
*/
package qcomposer

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Composer is the assembled service: one session, its controller and its transport.
type Composer struct {
	Controller *Controller
	Group      *BroadcastGroup
	Dispatcher *Dispatcher
	Server     *Server
	Registry   *prometheus.Registry
}

// New wires every component from cfg.
func New(cfg *Config, log zerolog.Logger) *Composer {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	engine := NewQubitEngine(cfg.Seed)
	group := NewBroadcastGroup(metrics)
	dispatcher := NewDispatcher(group)

	controller := NewController(
		NewSession(engine),
		NewRegistry(),
		engine,
		dispatcher,
		WithMetrics(metrics),
		WithBroadcastMeasurements(cfg.BroadcastMeasurements),
		WithMaxBatchSize(cfg.MaxBatchSize),
	)

	opts := []ServerOption{WithGatherer(registry)}
	if cfg.RateLimitBurst > 0 {
		opts = append(opts, WithRegulator(NewRateLimiter(cfg.RateLimitBurst, cfg.RateLimitRefill, metrics)))
	}

	return &Composer{
		Controller: controller,
		Group:      group,
		Dispatcher: dispatcher,
		Server:     NewServer(cfg, controller, group, log, opts...),
		Registry:   registry,
	}
}

// Run starts event dispatch and serves until ctx is cancelled.
func (composer *Composer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go composer.Dispatcher.Run(ctx)

	return composer.Server.ListenAndServe(ctx)
}
