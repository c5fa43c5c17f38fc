// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/models"
)

type signInResponse struct {
	Identity auth.Identity `json:"identity"`
	Token    string        `json:"token,omitempty"`
}

// SignInAnonymously signs the local profile in. When bearer auth is
// configured the response carries a token for the profile.
func (h *Handler) SignInAnonymously(w http.ResponseWriter, r *http.Request) {
	id, err := h.identities.SignInAnonymously(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := signInResponse{Identity: id}
	token, err := h.identities.IssueToken(id)
	switch {
	case err == nil:
		resp.Token = token
	case errors.Is(err, auth.ErrBearerDisabled):
	default:
		respondError(w, http.StatusInternalServerError, codeInternal, "Failed to issue token", err)
		return
	}
	respondSuccess(w, http.StatusOK, resp, models.Metadata{})
}

// WhoAmI returns the identity the request acts as.
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, actor(r), models.Metadata{})
}
