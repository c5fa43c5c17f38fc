// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package models

import (
	"fmt"
	"sort"
	"strings"
)

// Category selects a community listing.
type Category string

const (
	// CategoryNew lists the most recently created public records first.
	CategoryNew Category = "new"

	// CategoryTrending lists public records by download count, highest first.
	CategoryTrending Category = "trending"

	// CategoryHighlyRated lists public records rated at least HighlyRatedThreshold.
	CategoryHighlyRated Category = "highly_rated"

	// CategoryFeatured lists public records carrying the featured flag.
	CategoryFeatured Category = "featured"
)

// HighlyRatedThreshold is the minimum rating for CategoryHighlyRated.
const HighlyRatedThreshold = 4.0

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ParseCategory converts user input to a Category. Hyphens are accepted in
// place of underscores ("highly-rated").
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch c {
	case CategoryNew, CategoryTrending, CategoryHighlyRated, CategoryFeatured:
		return c, nil
	case "":
		return CategoryNew, nil
	default:
		return "", &ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", s)}
	}
}

// ClampLimit bounds a listing limit to [1, MaxListLimit], using
// DefaultListLimit for non-positive input.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ApplyCategory filters and orders records for a category, keeping only
// public records, and truncates to limit. It is used for the local tier and
// for any ordering the remote tier cannot express. The input slice is not
// modified.
func ApplyCategory(records []*SharedPlaylist, category Category, limit int) []*SharedPlaylist {
	out := make([]*SharedPlaylist, 0, len(records))
	for _, r := range records {
		if !r.IsPublic {
			continue
		}
		switch category {
		case CategoryHighlyRated:
			if r.Rating < HighlyRatedThreshold {
				continue
			}
		case CategoryFeatured:
			if !r.IsFeatured {
				continue
			}
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch category {
		case CategoryTrending:
			if a.DownloadCount != b.DownloadCount {
				return a.DownloadCount > b.DownloadCount
			}
		case CategoryHighlyRated:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	limit = ClampLimit(limit)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// DedupeByID drops records whose ID already appeared earlier in the slice.
func DedupeByID(records []*SharedPlaylist) []*SharedPlaylist {
	seen := make(map[string]bool, len(records))
	out := records[:0:0]
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
