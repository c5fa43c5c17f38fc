// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

/*
Package main is the entry point for the Powerhour server.

Powerhour keeps drinking-game playlists shared between friends in sync
across a local BadgerDB cache and an optional shared Postgres collection.
The local cache is always written first, so the server stays usable when
the shared collection is unreachable.

# Application Architecture

	RootSupervisor ("powerhour")
	├── SyncSupervisor ("sync-layer")
	│   ├── Remote prober (keeps availability current)
	│   └── Outbox replayer (optional, OUTBOX_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTP server (chi router)

Component initialization order:

 1. Configuration: koanf v2 with defaults, YAML file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Local store: BadgerDB cache and the installation profile
 4. Remote store: pgx pool, golang-migrate schema, circuit-breaking client
 5. Events: Redis pub/sub change notifications (optional)
 6. Services: sync coordinator, rating aggregator, migration service
 7. Supervisor tree and HTTP server

# Shutdown

SIGINT or SIGTERM cancels the root context. Suture stops every service
within SERVER_SHUTDOWN_TIMEOUT and the stores are closed afterwards.
*/
package main
