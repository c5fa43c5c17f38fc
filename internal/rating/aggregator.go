// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package rating folds rating entries and download receipts into a shared
// playlist's displayed rating and download count.
//
// Both counters are recomputed from their entry sets on every write, in
// the tier that owns the record: the local store for records that never
// reached the remote tier, the remote store otherwise. They are never
// incremented in place.
package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/events"
	"github.com/tomtom215/powerhour/internal/localstore"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/remote"
	"github.com/tomtom215/powerhour/internal/validation"
)

// Local is the slice of the local store the aggregator uses.
type Local interface {
	Get(ctx context.Context, id string) (*models.SharedPlaylist, error)
	Put(ctx context.Context, rec *models.SharedPlaylist) error
	UpsertRating(ctx context.Context, entry models.RatingEntry, writeBack bool) (localstore.RatingAggregate, error)
	InsertDownload(ctx context.Context, receipt models.DownloadReceipt, writeBack bool) (int64, bool, error)
	SetAggregates(ctx context.Context, id string, rating *float64, downloads *int64) error
}

// Queue holds remote writes for later replay.
type Queue interface {
	EnqueueRating(ctx context.Context, entry models.RatingEntry) error
	EnqueueDownload(ctx context.Context, receipt models.DownloadReceipt) error
}

// Aggregator records ratings and downloads.
type Aggregator struct {
	local  Local
	remote remote.Tier
	queue  Queue
	events events.Publisher
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithQueue enables the outbox for writes the remote tier could not take.
func WithQueue(q Queue) Option {
	return func(a *Aggregator) { a.queue = q }
}

// WithPublisher sets the change-event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(a *Aggregator) { a.events = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator returns an Aggregator over the two tiers.
func NewAggregator(local Local, tier remote.Tier, opts ...Option) *Aggregator {
	a := &Aggregator{
		local:  local,
		remote: tier,
		events: events.Nop{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Rate stores the actor's rating for a playlist, replacing any earlier one,
// and returns the recomputed aggregate.
//
// Only signed-in, non-anonymous accounts may rate; anyone else gets
// models.ErrAnonymousIdentity.
func (a *Aggregator) Rate(ctx context.Context, actor auth.Identity, playlistID string, req models.RateRequest) (*models.RatingResult, error) {
	if !actor.IsAccount() {
		metrics.Ratings.WithLabelValues("denied").Inc()
		return nil, models.ErrAnonymousIdentity
	}
	if err := validation.Check(req); err != nil {
		metrics.Ratings.WithLabelValues("invalid").Inc()
		return nil, err
	}
	rec, err := a.lookup(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	entry := models.RatingEntry{
		PlaylistID: rec.ID,
		RaterID:    actor.ID,
		Value:      req.Value,
		Review:     req.Review,
		CreatedAt:  a.now(),
	}
	_, isLocal := rec.Ref().(models.LocalRef)
	agg, err := a.local.UpsertRating(ctx, entry, isLocal)
	if err != nil {
		return nil, fmt.Errorf("store rating locally: %w", err)
	}

	result := &models.RatingResult{
		PlaylistID:   rec.ID,
		Rating:       agg.Rating,
		RatingCount:  agg.Count,
		RemoteStatus: models.RemoteLocalOnly,
	}
	if !isLocal {
		// Until the remote tier answers, the cached remote aggregate is the
		// best figure available.
		result.Rating = rec.Rating
		result.RemoteStatus = a.rateRemote(ctx, entry, result)
	}

	metrics.Ratings.WithLabelValues(string(result.RemoteStatus)).Inc()
	return result, nil
}

func (a *Aggregator) rateRemote(ctx context.Context, entry models.RatingEntry, result *models.RatingResult) models.RemoteStatus {
	if !a.remote.IsAvailable() {
		return a.enqueue(ctx, entry.PlaylistID, func() error { return a.queue.EnqueueRating(ctx, entry) })
	}

	rating, count, err := a.remote.UpsertRating(ctx, entry)
	switch {
	case err == nil:
		if cerr := a.local.SetAggregates(ctx, entry.PlaylistID, &rating, nil); cerr != nil {
			logging.Ctx(ctx).Warn().Err(cerr).Str("playlist_id", entry.PlaylistID).Msg("Failed to cache rating")
		}
		result.Rating, result.RatingCount = rating, count
		events.Emit(ctx, a.events, events.Event{
			Type: events.PlaylistRated, PlaylistID: entry.PlaylistID, ActorID: entry.RaterID,
			Rating: &rating, At: a.now(),
		})
		return models.RemoteSynced
	case errors.Is(err, models.ErrRemoteUnavailable):
		a.warn(ctx, "rate", entry.PlaylistID, err)
		return a.enqueue(ctx, entry.PlaylistID, func() error { return a.queue.EnqueueRating(ctx, entry) })
	default:
		a.warn(ctx, "rate", entry.PlaylistID, err)
		return models.RemoteFailed
	}
}

// RecordDownload records that actor downloaded the playlist. A repeat
// download by the same identity is a successful no-op with Duplicate set.
// Any identity may download, signed in or not.
func (a *Aggregator) RecordDownload(ctx context.Context, actor auth.Identity, playlistID string) (*models.DownloadResult, error) {
	if actor.IsZero() {
		return nil, &models.ValidationError{Field: "downloader_id", Reason: "is required"}
	}
	rec, err := a.lookup(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	receipt := models.DownloadReceipt{
		PlaylistID:   rec.ID,
		DownloaderID: actor.ID,
		DownloadedAt: a.now(),
	}
	_, isLocal := rec.Ref().(models.LocalRef)
	count, inserted, err := a.local.InsertDownload(ctx, receipt, isLocal)
	if err != nil {
		return nil, fmt.Errorf("store download locally: %w", err)
	}

	result := &models.DownloadResult{
		PlaylistID:    rec.ID,
		DownloadCount: count,
		Duplicate:     !inserted,
		RemoteStatus:  models.RemoteLocalOnly,
	}
	if !isLocal {
		result.DownloadCount = rec.DownloadCount
		result.RemoteStatus = a.downloadRemote(ctx, receipt, inserted, result)
	}

	outcome := "recorded"
	if result.Duplicate {
		outcome = "duplicate"
	}
	metrics.Downloads.WithLabelValues(outcome).Inc()
	return result, nil
}

func (a *Aggregator) downloadRemote(ctx context.Context, receipt models.DownloadReceipt, insertedLocally bool, result *models.DownloadResult) models.RemoteStatus {
	if !a.remote.IsAvailable() {
		if !insertedLocally {
			return models.RemoteLocalOnly
		}
		return a.enqueue(ctx, receipt.PlaylistID, func() error { return a.queue.EnqueueDownload(ctx, receipt) })
	}

	count, inserted, err := a.remote.InsertDownload(ctx, receipt)
	switch {
	case err == nil:
		if cerr := a.local.SetAggregates(ctx, receipt.PlaylistID, nil, &count); cerr != nil {
			logging.Ctx(ctx).Warn().Err(cerr).Str("playlist_id", receipt.PlaylistID).Msg("Failed to cache download count")
		}
		result.DownloadCount = count
		result.Duplicate = !inserted
		if inserted {
			events.Emit(ctx, a.events, events.Event{
				Type: events.PlaylistDownloaded, PlaylistID: receipt.PlaylistID, ActorID: receipt.DownloaderID,
				DownloadCount: &count, At: a.now(),
			})
		}
		return models.RemoteSynced
	case errors.Is(err, models.ErrRemoteUnavailable) && insertedLocally:
		a.warn(ctx, "download", receipt.PlaylistID, err)
		return a.enqueue(ctx, receipt.PlaylistID, func() error { return a.queue.EnqueueDownload(ctx, receipt) })
	default:
		a.warn(ctx, "download", receipt.PlaylistID, err)
		return models.RemoteFailed
	}
}

// lookup finds the playlist locally, then remotely, caching a remote hit.
func (a *Aggregator) lookup(ctx context.Context, id string) (*models.SharedPlaylist, error) {
	if id == "" {
		return nil, &models.ValidationError{Field: "playlist_id", Reason: "is required"}
	}
	rec, err := a.local.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if !a.remote.IsAvailable() {
		return nil, models.ErrNotFound
	}

	rec, err = a.remote.GetByID(ctx, id)
	if errors.Is(err, models.ErrRemoteUnavailable) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if perr := a.local.Put(ctx, rec); perr != nil {
		logging.Ctx(ctx).Warn().Err(perr).Str("playlist_id", rec.ID).Msg("Failed to cache playlist")
	}
	return rec, nil
}

func (a *Aggregator) enqueue(ctx context.Context, playlistID string, fn func() error) models.RemoteStatus {
	if a.queue == nil {
		return models.RemoteLocalOnly
	}
	if err := fn(); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("playlist_id", playlistID).Msg("Failed to queue remote write")
		return models.RemoteLocalOnly
	}
	return models.RemoteQueued
}

func (a *Aggregator) warn(ctx context.Context, op, playlistID string, err error) {
	logging.Ctx(ctx).Warn().Err(err).
		Str("op", op).
		Str("playlist_id", playlistID).
		Msg("Remote aggregate write failed")
}
