// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package sharing

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/events"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/remote"
	"github.com/tomtom215/powerhour/internal/validation"
)

// RemoveFromCommunity hides a record from category listings. The record,
// its share code and its ratings stay intact.
func (c *Coordinator) RemoveFromCommunity(ctx context.Context, actor auth.Identity, id string) (*models.SaveResult, error) {
	rec, err := c.lookupOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	private := false
	return c.mutate(ctx, actor, rec, "unlist", remote.Patch{IsPublic: &private}, events.PlaylistUnlisted)
}

// Rename changes a record's display name.
func (c *Coordinator) Rename(ctx context.Context, actor auth.Identity, id string, req models.RenameRequest) (*models.SaveResult, error) {
	if err := validation.Check(req); err != nil {
		return nil, err
	}
	rec, err := c.lookupOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	name := req.Name
	return c.mutate(ctx, actor, rec, "rename", remote.Patch{Name: &name}, events.PlaylistUpdated)
}

// Delete removes a record and its ratings and download receipts from both
// tiers. The local copy is removed even when the remote delete fails.
func (c *Coordinator) Delete(ctx context.Context, actor auth.Identity, id string) (*models.SaveResult, error) {
	found, err := c.lookupOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	unlock := c.locks.Lock(originKey(found.CreatorID, lockID(found)))
	defer unlock()

	rec, err := c.reload(ctx, actor, found)
	if err != nil {
		return nil, err
	}

	result := &models.SaveResult{Playlist: rec, RemoteStatus: models.RemoteLocalOnly}
	if ref, ok := rec.Ref().(models.RemoteRef); ok && c.remote.IsAvailable() && actor.CanWriteRemote() {
		deleted, err := c.remote.Delete(ctx, ref.ID, actor.ID)
		switch {
		case err != nil:
			c.remoteFailed(ctx, result, "delete", rec, err)
		case !deleted:
			c.remoteFailed(ctx, result, "delete", rec,
				fmt.Errorf("%w: delete of %s refused", models.ErrRemoteRejected, ref.ID))
		default:
			result.RemoteStatus = models.RemoteSynced
			c.emit(ctx, events.PlaylistDeleted, rec, actor.ID)
		}
	}

	if err := c.local.DeleteCascade(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("delete shared playlist locally: %w", err)
	}
	if rec.OriginalLocalID != "" {
		c.origins.Remove(originKey(rec.CreatorID, rec.OriginalLocalID))
	}
	metrics.RecordSave(result.RemoteStatus)
	return result, nil
}

// lookupOwned finds id in either tier and checks the actor owns it.
func (c *Coordinator) lookupOwned(ctx context.Context, actor auth.Identity, id string) (*models.SharedPlaylist, error) {
	if id == "" {
		return nil, &models.ValidationError{Field: "id", Reason: "is required"}
	}
	rec, err := c.local.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) && c.remote.IsAvailable() {
		rec, err = c.remote.GetByID(ctx, id)
		if errors.Is(err, models.ErrRemoteUnavailable) {
			err = models.ErrNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	if err := requireOwner(rec, actor); err != nil {
		return nil, err
	}
	return rec, nil
}

// reload re-reads rec under its record lock so a write that landed after
// lookupOwned is not overwritten. A Save may have moved the cached record
// to its remote ID in the meantime, so the origin is tried as well. Records
// known only to the remote tier are returned unchanged.
func (c *Coordinator) reload(ctx context.Context, actor auth.Identity, rec *models.SharedPlaylist) (*models.SharedPlaylist, error) {
	fresh, err := c.local.Get(ctx, rec.ID)
	if errors.Is(err, models.ErrNotFound) && rec.CreatorID != "" && rec.OriginalLocalID != "" {
		fresh, err = c.local.FindByOrigin(ctx, rec.CreatorID, rec.OriginalLocalID)
	}
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotFound):
		return rec, nil
	default:
		return nil, fmt.Errorf("reload shared playlist: %w", err)
	}
	if err := requireOwner(fresh, actor); err != nil {
		return nil, err
	}
	return fresh, nil
}

// mutate applies patch locally, then mirrors it to the remote record when
// there is one.
func (c *Coordinator) mutate(
	ctx context.Context,
	actor auth.Identity,
	found *models.SharedPlaylist,
	op string,
	patch remote.Patch,
	typ events.Type,
) (*models.SaveResult, error) {
	unlock := c.locks.Lock(originKey(found.CreatorID, lockID(found)))
	defer unlock()

	rec, err := c.reload(ctx, actor, found)
	if err != nil {
		return nil, err
	}
	updated := rec.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = c.now()
	if patch.Name != nil {
		updated.Version++
	}

	if err := c.local.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("%s shared playlist locally: %w", op, err)
	}

	result := &models.SaveResult{Playlist: updated.Clone(), RemoteStatus: models.RemoteLocalOnly}
	switch ref := updated.Ref().(type) {
	case models.RemoteRef:
		if !c.remote.IsAvailable() || !actor.CanWriteRemote() {
			break
		}
		ok, err := c.remote.UpdateFields(ctx, ref.ID, actor.ID, patch)
		switch {
		case err != nil:
			c.remoteFailed(ctx, result, op, updated, err)
		case !ok:
			c.remoteFailed(ctx, result, op, updated,
				fmt.Errorf("%w: %s of %s refused", models.ErrRemoteRejected, op, ref.ID))
		default:
			result.RemoteStatus = models.RemoteSynced
			c.emit(ctx, typ, updated, actor.ID)
		}
	case models.LocalRef:
		// never reached the remote tier; the next Save carries the change
	}

	metrics.RecordSave(result.RemoteStatus)
	return result, nil
}

func (c *Coordinator) remoteFailed(ctx context.Context, result *models.SaveResult, op string, rec *models.SharedPlaylist, err error) {
	logging.Ctx(ctx).Warn().Err(err).
		Str("op", op).
		Str("playlist_id", rec.ID).
		Str("share_code", rec.ShareCode).
		Msg("Remote write failed; kept local change")
	result.RemoteStatus = models.RemoteFailed
	result.RemoteError = err.Error()
}

func lockID(rec *models.SharedPlaylist) string {
	if rec.OriginalLocalID != "" {
		return rec.OriginalLocalID
	}
	return rec.ID
}
