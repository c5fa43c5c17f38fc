// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package remote is the client for the authoritative shared-playlist
// collection.
//
// Store is the raw contract (PostgresStore in production, MemoryStore in
// tests and offline demos). Client wraps a Store with a circuit breaker, a
// per-call timeout and an availability flag; callers check IsAvailable before
// every operation and treat ErrRemoteUnavailable as "degrade to local".
package remote

import (
	"context"
	"fmt"

	"github.com/tomtom215/powerhour/internal/models"
)

var (
	// ErrShareCodeTaken means another record already owns the share code.
	ErrShareCodeTaken = fmt.Errorf("%w: share code already in use", models.ErrRemoteRejected)

	// ErrOriginExists means the creator already has a record for the same
	// original playlist. Callers retry as an update.
	ErrOriginExists = fmt.Errorf("%w: record for this playlist already exists", models.ErrRemoteRejected)
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name               *string
	Description        *string
	Tags               *[]string
	Clips              *[]models.Clip
	CreatorDisplayName *string
	IsPublic           *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Tags == nil && p.Clips == nil &&
		p.CreatorDisplayName == nil && p.IsPublic == nil
}

// touchesContent reports whether the patch changes playlist content, which
// bumps the record version.
func (p Patch) touchesContent() bool {
	return p.Name != nil || p.Description != nil || p.Tags != nil || p.Clips != nil
}

// Apply copies the patch onto rec.
func (p Patch) Apply(rec *models.SharedPlaylist) {
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.Tags != nil {
		rec.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Clips != nil {
		rec.Clips = append([]models.Clip(nil), (*p.Clips)...)
	}
	if p.CreatorDisplayName != nil {
		rec.CreatorDisplayName = *p.CreatorDisplayName
	}
	if p.IsPublic != nil {
		rec.IsPublic = *p.IsPublic
	}
}

// ContentPatch builds the patch a re-share sends: everything the owner can
// edit from the library.
func ContentPatch(rec *models.SharedPlaylist) Patch {
	name, desc, display, public := rec.Name, rec.Description, rec.CreatorDisplayName, rec.IsPublic
	tags := append([]string{}, rec.Tags...)
	clips := append([]models.Clip{}, rec.Clips...)
	return Patch{
		Name:               &name,
		Description:        &desc,
		Tags:               &tags,
		Clips:              &clips,
		CreatorDisplayName: &display,
		IsPublic:           &public,
	}
}

// Store is the remote collection contract.
//
// Mutations scoped to a creator (UpdateFields, Delete) fail closed: they
// return false, not an error, when the record is missing or owned by someone
// else. Lookups return models.ErrNotFound on a miss.
type Store interface {
	// Create inserts rec and returns the remote-assigned ID.
	Create(ctx context.Context, rec *models.SharedPlaylist) (string, error)
	UpdateFields(ctx context.Context, id, creatorID string, patch Patch) (bool, error)
	// Delete removes the record with its ratings and downloads.
	Delete(ctx context.Context, id, creatorID string) (bool, error)

	GetByID(ctx context.Context, id string) (*models.SharedPlaylist, error)
	// GetByShareCode prefers a public match and falls back to any record
	// with the code, covering legacy rows without a visibility flag.
	GetByShareCode(ctx context.Context, code string) (*models.SharedPlaylist, error)
	QueryByCategory(ctx context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error)
	QueryByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error)
	FindByOrigin(ctx context.Context, creatorID, originalLocalID string) (*models.SharedPlaylist, error)
	ShareCodeExists(ctx context.Context, code string) (bool, error)

	// UpsertRating replaces the rater's entry and returns the recomputed
	// rating and entry count.
	UpsertRating(ctx context.Context, entry models.RatingEntry) (rating float64, count int, err error)
	// InsertDownload records a receipt once per downloader and returns the
	// recomputed download count.
	InsertDownload(ctx context.Context, receipt models.DownloadReceipt) (count int64, inserted bool, err error)

	Ping(ctx context.Context) error
}
