// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package models

import (
	"math"
	"time"
)

// Rating bounds.
const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// RatingEntry is one rater's score for a shared playlist.
// Unique per (PlaylistID, RaterID); a resubmission replaces the entry.
type RatingEntry struct {
	PlaylistID string    `json:"playlist_id"`
	RaterID    string    `json:"rater_id"`
	Value      int       `json:"value" validate:"min=1,max=5"`
	Review     string    `json:"review,omitempty" validate:"max=1000"`
	CreatedAt  time.Time `json:"created_at"`
}

// DownloadReceipt records that an identity downloaded a shared playlist.
// Unique per (PlaylistID, DownloaderID).
type DownloadReceipt struct {
	PlaylistID   string    `json:"playlist_id"`
	DownloaderID string    `json:"downloader_id"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// UserProfile is the installation identity used when no account is signed in.
type UserProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Playlist is a playlist in the local library. Sharing derives a
// SharedPlaylist from it; importing produces a fresh one.
type Playlist struct {
	ID           string    `json:"id"`
	Name         string    `json:"name" validate:"required,max=120"`
	Description  string    `json:"description,omitempty" validate:"max=2000"`
	Tags         []string  `json:"tags,omitempty"`
	Clips        []Clip    `json:"clips" validate:"dive"`
	ImportedFrom string    `json:"imported_from,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoundRating rounds a mean rating to one decimal place, halves away from
// zero, matching Postgres round(numeric, 1).
func RoundRating(mean float64) float64 {
	return math.Round(mean*10) / 10
}

// MeanRating returns the displayed rating for a set of entries, or 0 when
// there are none.
func MeanRating(entries []RatingEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	sum := 0
	for _, e := range entries {
		sum += e.Value
	}
	return RoundRating(float64(sum) / float64(len(entries)))
}
