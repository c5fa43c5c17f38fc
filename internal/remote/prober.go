// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package remote

import (
	"context"
	"time"
)

// Prober periodically pings the remote store so IsAvailable reflects
// reachability without waiting for a user request to fail. It implements
// suture.Service.
type Prober struct {
	client   *Client
	interval time.Duration
}

// NewProber returns a prober for client. Non-positive intervals default to 30s.
func NewProber(client *Client, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Prober{client: client, interval: interval}
}

// Serve probes immediately and then on every tick until ctx is cancelled.
func (p *Prober) Serve(ctx context.Context) error {
	if !p.client.Configured() {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	_ = p.client.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = p.client.Probe(ctx)
		}
	}
}

func (p *Prober) String() string {
	return "remote-prober"
}
