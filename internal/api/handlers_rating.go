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

// RateShared records the caller's rating. Accounts only.
func (h *Handler) RateShared(w http.ResponseWriter, r *http.Request) {
	var req models.RateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	res, err := h.ratings.Rate(r.Context(), actor(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res, writeMeta(res.RemoteStatus))
}

// RecordDownload counts a download once per identity.
func (h *Handler) RecordDownload(w http.ResponseWriter, r *http.Request) {
	res, err := h.ratings.RecordDownload(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res, writeMeta(res.RemoteStatus))
}
