// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/powerhour/internal/models"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	LocalStoreOK     bool    `json:"local_store_ok"`
	RemoteConfigured bool    `json:"remote_configured"`
	RemoteAvailable  bool    `json:"remote_available"`
	CircuitState     string  `json:"circuit_state"`
	Uptime           float64 `json:"uptime"`
}

// Health reports dependency status. A missing remote tier only degrades the
// service; the local cache keeps it usable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	localOK := h.local.Ping(r.Context()) == nil

	status := "healthy"
	switch {
	case !localOK:
		status = "unhealthy"
	case h.remote.Configured() && !h.remote.IsAvailable():
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:           status,
		Version:          h.version,
		LocalStoreOK:     localOK,
		RemoteConfigured: h.remote.Configured(),
		RemoteAvailable:  h.remote.IsAvailable(),
		CircuitState:     h.remote.State(),
		Uptime:           time.Since(h.startTime).Seconds(),
	}, models.Metadata{})
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, models.Metadata{})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Ready means the local cache answers; the remote tier is optional.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.local.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "Local store unavailable", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"ready":            true,
		"remote_available": h.remote.IsAvailable(),
	}, models.Metadata{})
}
