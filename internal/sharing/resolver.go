// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package sharing

import (
	"context"
	"errors"

	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/remote"
)

// Resolver looks shared playlists up in one tier.
type Resolver interface {
	Tier() string
	ByCode(ctx context.Context, code string) (*models.SharedPlaylist, error)
	ByCategory(ctx context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error)
	ByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error)
}

// RemoteResolver reads from the remote tier.
type RemoteResolver struct {
	Remote remote.Store
}

func (RemoteResolver) Tier() string { return "remote" }

func (r RemoteResolver) ByCode(ctx context.Context, code string) (*models.SharedPlaylist, error) {
	return r.Remote.GetByShareCode(ctx, code)
}

func (r RemoteResolver) ByCategory(ctx context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error) {
	return r.Remote.QueryByCategory(ctx, category, limit)
}

func (r RemoteResolver) ByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error) {
	return r.Remote.QueryByCreator(ctx, creatorID)
}

// LocalResolver reads from the local cache.
type LocalResolver struct {
	Local Local
}

func (LocalResolver) Tier() string { return "local" }

func (r LocalResolver) ByCode(ctx context.Context, code string) (*models.SharedPlaylist, error) {
	return r.Local.GetByCode(ctx, code)
}

func (r LocalResolver) ByCategory(ctx context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error) {
	all, err := r.Local.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return models.ApplyCategory(all, category, limit), nil
}

func (r LocalResolver) ByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error) {
	return r.Local.ListByCreator(ctx, creatorID)
}

// Listing is a resolved list and the tier that answered it.
type Listing struct {
	Playlists []*models.SharedPlaylist `json:"playlists"`
	Source    string                   `json:"source"`
}

// Fallback asks Primary first when Available reports true, then Secondary.
//
// Lookups by code return the first hit. Lists from Primary are merged with
// Secondary records that have never reached Primary (local provenance), so
// a playlist saved offline still shows up once the remote is back.
type Fallback struct {
	Primary   Resolver
	Secondary Resolver
	Available func() bool

	// OnPrimaryHit receives records Primary resolved by code.
	OnPrimaryHit func(ctx context.Context, rec *models.SharedPlaylist)
}

func (f *Fallback) primaryUp() bool {
	return f.Primary != nil && (f.Available == nil || f.Available())
}

// ByCode resolves code, returning models.ErrNotFound only when both tiers miss.
func (f *Fallback) ByCode(ctx context.Context, code string) (*models.SharedPlaylist, error) {
	if f.primaryUp() {
		rec, err := f.Primary.ByCode(ctx, code)
		switch {
		case err == nil:
			metrics.RecordResolve(f.Primary.Tier(), "hit")
			if f.OnPrimaryHit != nil {
				f.OnPrimaryHit(ctx, rec)
			}
			return rec, nil
		case errors.Is(err, models.ErrNotFound):
			metrics.RecordResolve(f.Primary.Tier(), "miss")
		default:
			metrics.RecordResolve(f.Primary.Tier(), "error")
			logging.Ctx(ctx).Warn().Err(err).Str("op", "resolve_by_code").Str("share_code", code).
				Msg("Remote lookup failed; falling back to local cache")
		}
	}

	rec, err := f.Secondary.ByCode(ctx, code)
	switch {
	case err == nil:
		metrics.RecordResolve(f.Secondary.Tier(), "hit")
		return rec, nil
	case errors.Is(err, models.ErrNotFound):
		metrics.RecordResolve(f.Secondary.Tier(), "miss")
		return nil, models.ErrNotFound
	default:
		metrics.RecordResolve(f.Secondary.Tier(), "error")
		return nil, err
	}
}

// ByCategory lists a community category.
func (f *Fallback) ByCategory(ctx context.Context, category models.Category, limit int) (*Listing, error) {
	return f.list(ctx, "list",
		func(r Resolver) ([]*models.SharedPlaylist, error) { return r.ByCategory(ctx, category, limit) },
		func(recs []*models.SharedPlaylist) []*models.SharedPlaylist {
			return models.ApplyCategory(recs, category, limit)
		})
}

// ByCreator lists every record owned by creatorID, newest first.
func (f *Fallback) ByCreator(ctx context.Context, creatorID string) (*Listing, error) {
	return f.list(ctx, "list_mine",
		func(r Resolver) ([]*models.SharedPlaylist, error) { return r.ByCreator(ctx, creatorID) },
		func(recs []*models.SharedPlaylist) []*models.SharedPlaylist {
			sortNewestFirst(recs)
			return recs
		})
}

func (f *Fallback) list(
	ctx context.Context,
	op string,
	query func(Resolver) ([]*models.SharedPlaylist, error),
	shape func([]*models.SharedPlaylist) []*models.SharedPlaylist,
) (*Listing, error) {
	local, err := query(f.Secondary)
	if err != nil {
		return nil, err
	}

	if f.primaryUp() {
		remoteRecs, err := query(f.Primary)
		if err == nil {
			metrics.RecordResolve(f.Primary.Tier(), "hit")
			merged := append([]*models.SharedPlaylist{}, remoteRecs...)
			for _, r := range local {
				if _, unsynced := r.Ref().(models.LocalRef); unsynced {
					merged = append(merged, r)
				}
			}
			return &Listing{Playlists: shape(dedupe(merged)), Source: f.Primary.Tier()}, nil
		}
		metrics.RecordResolve(f.Primary.Tier(), "error")
		logging.Ctx(ctx).Warn().Err(err).Str("op", op).Msg("Remote listing failed; serving local cache")
	}

	metrics.RecordResolve(f.Secondary.Tier(), "hit")
	return &Listing{Playlists: shape(dedupe(local)), Source: f.Secondary.Tier()}, nil
}

// dedupe drops repeated IDs and, for records sharing a (creator, origin)
// pair, every occurrence after the first. Callers put the remote tier first.
func dedupe(recs []*models.SharedPlaylist) []*models.SharedPlaylist {
	recs = models.DedupeByID(recs)
	seen := make(map[string]bool, len(recs))
	out := recs[:0:0]
	for _, r := range recs {
		if r.CreatorID != "" && r.OriginalLocalID != "" {
			key := originKey(r.CreatorID, r.OriginalLocalID)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		out = append(out, r)
	}
	return out
}

func originKey(creatorID, originalLocalID string) string {
	return creatorID + "\x00" + originalLocalID
}
