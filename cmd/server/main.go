// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/api"
	"github.com/tomtom215/segmentum/internal/breaker"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/eventprocessor"
	"github.com/tomtom215/segmentum/internal/keylock"
	"github.com/tomtom215/segmentum/internal/leaderboard"
	"github.com/tomtom215/segmentum/internal/ledger"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/notify"
	"github.com/tomtom215/segmentum/internal/pipeline"
	"github.com/tomtom215/segmentum/internal/records"
	"github.com/tomtom215/segmentum/internal/supervisor"
	"github.com/tomtom215/segmentum/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("ledger_backend", cfg.Ledger.Backend).
		Str("events_backend", cfg.Events.Backend).
		Msg("Starting Segmentum with supervisor tree")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Bool("spatial", db.IsSpatialAvailable()).Msg("Database initialized")

	led, err := ledger.New(cfg.Ledger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open processing ledger")
	}
	defer func() {
		if err := led.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing ledger")
		}
	}()

	bus, err := eventprocessor.NewBus(cfg.Events, eventprocessor.WatermillLogger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	publisher := eventprocessor.NewPublisher(bus.Publisher, breaker.Config{
		Name:             "event-publisher",
		FailureThreshold: cfg.Worker.BreakerFailureThreshold,
		Timeout:          cfg.Worker.BreakerTimeout,
	})
	defer publisher.Close()

	dispatcher, err := notify.NewDispatcher(cfg.Notifications)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure notifiers")
	}
	logging.Info().Strs("notifiers", dispatcher.Notifiers()).Msg("Achievement notifiers configured")

	// Segment-level and user-level writes share one lock table so PR
	// updates and crown transfers on a segment never interleave.
	locks := keylock.New()
	tracker := records.NewTracker(db, locks)
	ranker := leaderboard.NewRanker(db, cfg.Leaderboard)
	defer ranker.Close()
	engine := achievements.NewEngine(db, publisher, locks, cfg.Achievements)

	processor := pipeline.NewProcessor(pipeline.Deps{
		Store:        db,
		Ledger:       led,
		Records:      tracker,
		Achievements: engine,
		Leaderboards: ranker,
		Backfill:     publisher,
	}, cfg)
	pool := pipeline.NewPool(processor, cfg.Worker)
	defer pool.Stop()

	consumers := eventprocessor.NewHandlers(pool, dispatcher)
	routerSvc := services.NewEventRouterService(newRouterFactory(cfg.Events, bus, consumers))

	handler := api.NewHandler(api.Deps{
		Store:        db,
		Segments:     processor,
		Publisher:    publisher,
		Leaderboards: ranker,
		Achievements: engine,
		Ledger:       led,
		Checks: []api.ReadinessCheck{
			{Name: "event_router", Check: runningCheck("event router", routerSvc.IsRunning)},
			{Name: "worker_pool", Check: runningCheck("worker pool", pool.Running)},
		},
	}, cfg)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Data layer
	if gc, ok := led.(services.GarbageCollector); ok {
		tree.AddDataService(services.NewLedgerGCService(gc, cfg.Ledger.GCInterval))
		logging.Info().Dur("interval", cfg.Ledger.GCInterval).Msg("Ledger GC service added")
	}
	tree.AddDataService(services.NewReconcilerService(engine))

	// Messaging layer
	tree.AddMessagingService(routerSvc)
	tree.AddMessagingService(pool)

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Starting supervisor tree...")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	if err := db.Checkpoint(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Final database checkpoint failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}
