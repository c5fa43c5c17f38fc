// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package sharing

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/validation"
)

const (
	importSuffix  = " (Imported)"
	maxNameLength = 120
)

// Import copies the shared playlist behind code into the local library as
// a new, independent playlist. Attachments the library lacks are returned
// for the user to fetch; they are not downloaded here.
func (c *Coordinator) Import(ctx context.Context, actor auth.Identity, code string) (*models.ImportResult, error) {
	shared, err := c.ResolveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := checkImportable(shared); err != nil {
		return nil, err
	}

	now := c.now()
	copied := shared.Clone()
	pl := &models.Playlist{
		ID:           c.ids.LocalID(),
		Name:         importedName(shared.Name),
		Description:  copied.Description,
		Tags:         copied.Tags,
		Clips:        copied.Clips,
		ImportedFrom: shared.ShareCode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.local.PutPlaylist(ctx, pl); err != nil {
		return nil, fmt.Errorf("store imported playlist: %w", err)
	}

	var missing []models.Attachment
	for _, a := range shared.Attachments() {
		ok, err := c.local.HasAttachment(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("check attachment %s: %w", a.ID, err)
		}
		if !ok {
			missing = append(missing, a)
		}
	}

	if c.downloads != nil && !actor.IsZero() {
		if res, err := c.downloads.RecordDownload(ctx, actor, shared.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("op", "import").
				Str("playlist_id", shared.ID).
				Str("share_code", shared.ShareCode).
				Msg("Failed to record download for import")
		} else {
			shared.DownloadCount = res.DownloadCount
		}
	}

	return &models.ImportResult{Playlist: pl, Shared: shared, MissingAttachments: missing}, nil
}

// checkImportable rejects records that cannot become a playable playlist.
func checkImportable(rec *models.SharedPlaylist) error {
	switch {
	case rec.ID == "":
		return &models.ValidationError{Field: "id", Reason: "shared playlist has no id"}
	case rec.Name == "":
		return &models.ValidationError{Field: "name", Reason: "shared playlist has no name"}
	case len(rec.Clips) == 0:
		return &models.ValidationError{Field: "clips", Reason: "shared playlist has no clips"}
	}
	return validation.Check(rec)
}

func importedName(name string) string {
	room := maxNameLength - utf8.RuneCountInString(importSuffix)
	if utf8.RuneCountInString(name) > room {
		name = string([]rune(name)[:room])
	}
	return name + importSuffix
}
