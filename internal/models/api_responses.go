// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package models

import (
	"time"
)

// APIResponse is the envelope returned by every HTTP endpoint.
//
// Status is "success" with Data populated, or "error" with Error populated.
//
//	{
//	  "status": "success",
//	  "data": {"id": "...", "share_code": "AB12CD34"},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "remote_status": "synced"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing plus which tier answered.
type Metadata struct {
	Timestamp    time.Time `json:"timestamp"`
	QueryTimeMS  int64     `json:"query_time_ms,omitempty"`
	Source       string    `json:"source,omitempty"`
	RemoteStatus string    `json:"remote_status,omitempty"`
}

// APIError is the error payload of a failed response.
//
// Codes in use:
//   - VALIDATION_ERROR: malformed input (400)
//   - AUTHENTICATION_ERROR: missing or invalid token (401)
//   - OWNERSHIP_DENIED: acting identity may not modify the record (403)
//   - NOT_FOUND: unknown code or ID (404)
//   - RATE_LIMIT_EXCEEDED: too many requests (429)
//   - INTERNAL_ERROR: local storage failure (500)
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SaveResult is returned by save and share operations.
type SaveResult struct {
	Playlist     *SharedPlaylist `json:"playlist"`
	RemoteStatus RemoteStatus    `json:"remote_status"`
	RemoteError  string          `json:"remote_error,omitempty"`
}

// RemoteStatus reports how a write fared against the remote tier.
type RemoteStatus string

const (
	// RemoteSynced means the remote store accepted the write.
	RemoteSynced RemoteStatus = "synced"

	// RemoteLocalOnly means the remote tier was unavailable or the identity
	// cannot write remotely; only the local cache was updated.
	RemoteLocalOnly RemoteStatus = "local_only"

	// RemoteFailed means the remote tier was attempted and failed. The local
	// write still stands.
	RemoteFailed RemoteStatus = "remote_failed"

	// RemoteQueued means the write was placed in the outbox for replay.
	RemoteQueued RemoteStatus = "queued"
)

// ImportResult is returned when a shared playlist is imported into the
// local library.
type ImportResult struct {
	Playlist           *Playlist       `json:"playlist"`
	Shared             *SharedPlaylist `json:"shared"`
	MissingAttachments []Attachment    `json:"missing_attachments,omitempty"`
}

// RateRequest is the body of a rating submission.
type RateRequest struct {
	Value  int    `json:"value" validate:"min=1,max=5"`
	Review string `json:"review,omitempty" validate:"max=1000"`
}

// RatingResult reports the record's aggregates after a rating.
type RatingResult struct {
	PlaylistID   string       `json:"playlist_id"`
	Rating       float64      `json:"rating"`
	RatingCount  int          `json:"rating_count"`
	RemoteStatus RemoteStatus `json:"remote_status"`
}

// DownloadResult reports the record's download count after a download.
type DownloadResult struct {
	PlaylistID    string       `json:"playlist_id"`
	DownloadCount int64        `json:"download_count"`
	Duplicate     bool         `json:"duplicate"`
	RemoteStatus  RemoteStatus `json:"remote_status"`
}

// ShareRequest is the body of a share or re-share.
type ShareRequest struct {
	PlaylistID  string   `json:"playlist_id" validate:"required"`
	Description string   `json:"description,omitempty" validate:"max=2000"`
	Tags        []string `json:"tags,omitempty" validate:"max=10,dive,max=32"`
	IsPublic    *bool    `json:"is_public,omitempty"`
}

// RenameRequest is the body of a rename.
type RenameRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// MigrationStatus summarises what a migration pass would do.
// NeedsMigration counts local-only records with no remote counterpart.
type MigrationStatus struct {
	LocalOnly      int `json:"local_only"`
	Remote         int `json:"remote"`
	NeedsMigration int `json:"needs_migration"`
}

// MigrationOutcome is the result of migrating one record.
type MigrationOutcome string

const (
	MigrationMigrated MigrationOutcome = "migrated"
	MigrationSkipped  MigrationOutcome = "skipped"
	MigrationFailed   MigrationOutcome = "failed"
)

// MigrationItem is the per-record result of a migration pass.
type MigrationItem struct {
	LocalID   string           `json:"local_id"`
	RemoteID  string           `json:"remote_id,omitempty"`
	ShareCode string           `json:"share_code,omitempty"`
	Outcome   MigrationOutcome `json:"outcome"`
	Error     string           `json:"error,omitempty"`
}

// MigrationReport aggregates a migration pass.
type MigrationReport struct {
	Migrated int             `json:"migrated"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Items    []MigrationItem `json:"items"`
}

// Add records an item and bumps the matching counter.
func (r *MigrationReport) Add(item MigrationItem) {
	switch item.Outcome {
	case MigrationMigrated:
		r.Migrated++
	case MigrationSkipped:
		r.Skipped++
	case MigrationFailed:
		r.Failed++
	}
	r.Items = append(r.Items, item)
}
