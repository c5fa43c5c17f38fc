// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package sharing

import (
	"fmt"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/models"
)

// AssertOwner reports whether actor owns rec. Records without a creator
// (legacy data) are owned by nobody and must be migrated first.
func AssertOwner(rec *models.SharedPlaylist, actor auth.Identity) bool {
	if rec == nil || !rec.IsOwned() || actor.IsZero() {
		return false
	}
	return rec.CreatorID == actor.ID
}

func requireOwner(rec *models.SharedPlaylist, actor auth.Identity) error {
	if AssertOwner(rec, actor) {
		return nil
	}
	if rec != nil && !rec.IsOwned() {
		return fmt.Errorf("%w: playlist %s has no recorded creator", models.ErrOwnershipDenied, rec.ID)
	}
	return models.ErrOwnershipDenied
}
