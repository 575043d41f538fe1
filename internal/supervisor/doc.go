// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package supervisor runs Segmentum's long-lived services under suture v4.

# Overview

Services are grouped into three layers so failures stay local:

	RootSupervisor ("segmentum")
	├── DataSupervisor ("data-layer")
	│   ├── LedgerGCService (badger ledger only)
	│   └── ReconcilerService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── EventRouterService
	│   └── pipeline.Pool ("worker-pool")
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failing event router restarts with backoff while the API keeps serving
leaderboards; uploads are still stored and can be reprocessed once the
router is back.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewReconcilerService(engine))
	tree.AddMessagingService(services.NewEventRouterService(buildRouter))
	tree.AddMessagingService(pool)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

# Failure Handling

Suture keeps a failure counter per supervisor that decays over
FailureDecay seconds. Once it passes FailureThreshold, restarts wait
FailureBackoff. Serve return values decide what happens next:

	nil         service finished, not restarted
	error       service crashed, restarted
	ctx.Err()   shutdown, not counted as a failure

# Not Supervised

DuckDB and the ledger are libraries opened in main and closed after the
tree stops. The event bus and any embedded NATS server are owned by the
eventprocessor.Bus and closed the same way.

# Shutdown

Each service gets ShutdownTimeout to return after cancellation.
UnstoppedServiceReport lists the ones that did not.
*/
package supervisor
