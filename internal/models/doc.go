// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

/*
Package models defines the data structures shared by every Powerhour tier.

Key Components:

  - SharedPlaylist: the record kept in sync between the local cache and the
    remote collection, with a provenance-tagged identity (Ref)
  - RatingEntry and DownloadReceipt: the per-identity facts the displayed
    rating and download count are derived from
  - Playlist and UserProfile: the local library and installation identity
  - APIResponse: the HTTP envelope, plus request and result payloads

Errors:

Every tier reports failures with the sentinels in errors.go
(ErrRemoteUnavailable, ErrRemoteRejected, ErrNotFound, ErrOwnershipDenied,
ErrValidationFailed). Wrap with fmt.Errorf("...: %w", err) and branch with
errors.Is.

Aggregates:

Rating and DownloadCount are never incremented in place. They are recomputed
from the full set of entries or receipts (MeanRating, RoundRating), which
keeps resubmissions and duplicate downloads idempotent.
*/
package models
