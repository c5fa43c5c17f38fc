// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package supervisor runs Powerhour's long-lived services under a suture
// supervisor tree.
//
// The tree has two layers so a crash in background sync never takes the
// HTTP server down with it:
//
//	powerhour
//	├── sync-layer   remote prober, outbox replayer
//	└── api-layer    HTTP server
//
// Each service implements suture.Service (Serve(ctx) error) and
// fmt.Stringer. Suture restarts a service whose Serve returns, backing off
// once FailureThreshold is exceeded. Lifecycle events are logged through
// sutureslog into the zerolog logger.
package supervisor
