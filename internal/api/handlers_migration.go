// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/powerhour/internal/models"
)

// MigrationStatus reports what a migration would do for the caller.
func (h *Handler) MigrationStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.migrations.Status(r.Context(), actor(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, st, models.Metadata{})
}

// RunMigration migrates every local-only record. Per-record failures are
// reported in the body; the response is still 200.
func (h *Handler) RunMigration(w http.ResponseWriter, r *http.Request) {
	report, err := h.migrations.MigrateAll(r.Context(), actor(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, report, models.Metadata{})
}

// MigrateOne migrates the record {id}.
func (h *Handler) MigrateOne(w http.ResponseWriter, r *http.Request) {
	item, err := h.migrations.MigrateOne(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, item, models.Metadata{})
}
