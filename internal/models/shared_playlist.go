// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package models

import (
	"strings"
	"time"
)

// MaxTags is the maximum number of distinct tags a shared playlist may carry.
const MaxTags = 10

// Provenance records which tier assigned a shared playlist's ID.
type Provenance string

const (
	// ProvenanceLocal marks a record whose ID was generated on this device and
	// that has never been accepted by the remote store.
	ProvenanceLocal Provenance = "local"

	// ProvenanceRemote marks a record whose ID was assigned by the remote store.
	ProvenanceRemote Provenance = "remote"
)

// Source describes how a shared playlist came into existence.
type Source string

const (
	SourceShare     Source = "share"
	SourceMigration Source = "migration"
	SourceImport    Source = "import"
)

// AttachmentKind is the media type of a clip attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentSound AttachmentKind = "sound"
)

// Attachment is an image or sound bundled with a clip (drink cue, overlay).
// Only metadata travels with a shared playlist; the binary lives in the
// owner's library and must be fetched by the importer.
type Attachment struct {
	ID       string         `json:"id" validate:"required,max=128"`
	Kind     AttachmentKind `json:"kind" validate:"oneof=image sound"`
	Name     string         `json:"name" validate:"max=256"`
	Checksum string         `json:"checksum,omitempty" validate:"max=128"`
}

// Clip is one trimmed segment of a playlist.
type Clip struct {
	MediaRef    string       `json:"media_ref" validate:"required,max=512"`
	Title       string       `json:"title,omitempty" validate:"max=200"`
	StartMs     int64        `json:"start_ms" validate:"gte=0"`
	DurationMs  int64        `json:"duration_ms" validate:"gt=0"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"dive"`
}

// SharedPlaylist is the record kept in sync between the local cache and the
// remote collection.
//
// ID is ambiguous on its own: it is either a locally generated ID or a
// remote-assigned ID. Use Ref() to branch on provenance instead of comparing
// IDs of unclear origin.
//
// Rating and DownloadCount are materialized views over the rating entries and
// download receipts for the record. Callers never set them directly.
type SharedPlaylist struct {
	ID                 string     `json:"id"`
	OriginalLocalID    string     `json:"original_local_id,omitempty"`
	Provenance         Provenance `json:"provenance"`
	Name               string     `json:"name" validate:"required,max=120"`
	Description        string     `json:"description,omitempty" validate:"max=2000"`
	Tags               []string   `json:"tags,omitempty" validate:"max=10,unique,dive,max=32"`
	Clips              []Clip     `json:"clips" validate:"dive"`
	CreatorID          string     `json:"creator_id,omitempty"`
	CreatorDisplayName string     `json:"creator_display_name,omitempty"`
	ShareCode          string     `json:"share_code" validate:"omitempty,sharecode"`
	IsPublic           bool       `json:"is_public"`
	IsFeatured         bool       `json:"is_featured,omitempty"`
	Source             Source     `json:"source,omitempty"`
	Rating             float64    `json:"rating"`
	DownloadCount      int64      `json:"download_count"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int        `json:"version"`
}

// Ref returns the provenance-tagged identity of the record.
func (p *SharedPlaylist) Ref() Ref {
	if p.Provenance == ProvenanceRemote {
		return RemoteRef{ID: p.ID, OriginalLocalID: p.OriginalLocalID}
	}
	return LocalRef{ID: p.ID}
}

// IsOwned reports whether the record has a recorded creator.
func (p *SharedPlaylist) IsOwned() bool {
	return p.CreatorID != ""
}

// Attachments returns every attachment referenced by the record's clips,
// de-duplicated by ID in clip order.
func (p *SharedPlaylist) Attachments() []Attachment {
	seen := make(map[string]bool)
	var out []Attachment
	for _, c := range p.Clips {
		for _, a := range c.Attachments {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out
}

// Clone returns a deep copy so cached records can be handed out without
// callers mutating the cache.
func (p *SharedPlaylist) Clone() *SharedPlaylist {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Clips = cloneClips(p.Clips)
	return &c
}

func cloneClips(in []Clip) []Clip {
	if in == nil {
		return nil
	}
	out := make([]Clip, len(in))
	for i, c := range in {
		out[i] = c
		out[i].Attachments = append([]Attachment(nil), c.Attachments...)
	}
	return out
}

// NormalizeTags trims tags and removes case-insensitive duplicates, keeping
// the first spelling seen. Empty tags are dropped. The cap is enforced by
// validation, not here.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// Ref is the provenance-tagged identity of a shared playlist: either
// LocalRef or RemoteRef.
type Ref interface {
	RecordID() string
	isRef()
}

// LocalRef identifies a record that only exists in the local cache.
type LocalRef struct {
	ID string
}

// RecordID returns the local ID.
func (r LocalRef) RecordID() string { return r.ID }
func (LocalRef) isRef()             {}

// RemoteRef identifies a record the remote store has accepted.
// OriginalLocalID links back to the library playlist it was shared from.
type RemoteRef struct {
	ID              string
	OriginalLocalID string
}

// RecordID returns the remote-assigned ID.
func (r RemoteRef) RecordID() string { return r.ID }
func (RemoteRef) isRef()             {}
