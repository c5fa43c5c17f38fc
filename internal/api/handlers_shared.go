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

// SaveShared creates or updates a shared playlist.
func (h *Handler) SaveShared(w http.ResponseWriter, r *http.Request) {
	var rec models.SharedPlaylist
	if err := decodeJSON(w, r, &rec); err != nil {
		respondServiceError(w, r, err)
		return
	}
	res, err := h.sharing.Save(r.Context(), actor(r), &rec)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res.Playlist, writeMeta(res.RemoteStatus))
}

// ShareLibraryPlaylist shares the library playlist {id}.
func (h *Handler) ShareLibraryPlaylist(w http.ResponseWriter, r *http.Request) {
	var req models.ShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	req.PlaylistID = chi.URLParam(r, "id")

	res, err := h.sharing.Share(r.Context(), actor(r), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res.Playlist, writeMeta(res.RemoteStatus))
}

// ResolveCode looks up a shared playlist by share code.
func (h *Handler) ResolveCode(w http.ResponseWriter, r *http.Request) {
	rec, err := h.sharing.ResolveByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, rec, models.Metadata{})
}

// ListShared returns a community listing.
func (h *Handler) ListShared(w http.ResponseWriter, r *http.Request) {
	category, err := models.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	limit := models.ClampLimit(getIntParam(r, "limit", 0))
	listing, err := h.sharing.List(r.Context(), category, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, listing.Playlists, models.Metadata{Source: listing.Source})
}

// ListMine returns every shared playlist the caller created.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	listing, err := h.sharing.ListMine(r.Context(), actor(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, listing.Playlists, models.Metadata{Source: listing.Source})
}

// ImportShared copies a shared playlist into the local library.
func (h *Handler) ImportShared(w http.ResponseWriter, r *http.Request) {
	res, err := h.sharing.Import(r.Context(), actor(r), chi.URLParam(r, "code"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, res, models.Metadata{})
}

// RenameShared renames a shared playlist the caller owns.
func (h *Handler) RenameShared(w http.ResponseWriter, r *http.Request) {
	var req models.RenameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	res, err := h.sharing.Rename(r.Context(), actor(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res.Playlist, writeMeta(res.RemoteStatus))
}

// UnlistShared removes a shared playlist from the community listing.
func (h *Handler) UnlistShared(w http.ResponseWriter, r *http.Request) {
	res, err := h.sharing.RemoveFromCommunity(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, res.Playlist, writeMeta(res.RemoteStatus))
}

// DeleteShared deletes a shared playlist from both tiers.
func (h *Handler) DeleteShared(w http.ResponseWriter, r *http.Request) {
	res, err := h.sharing.Delete(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id")}, writeMeta(res.RemoteStatus))
}
