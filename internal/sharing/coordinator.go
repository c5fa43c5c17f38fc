// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

/*
coordinator.go - Sync Coordinator

The Coordinator keeps the local cache and the remote collection in step.

Write path (Save, Share):
  - The local cache is written first and its failure is the only hard error
  - The remote tier is attempted when available and the actor may write there
  - Remote failures are logged and reported through SaveResult.RemoteStatus

Read path (ResolveByCode, List, ListMine):
  - Remote first, local fallback, via the Fallback resolver
  - Records resolved remotely by code are written into the local cache

Deduplication:
  - At most one remote record exists per (creator, original local playlist)
  - An expirable LRU maps that pair to the remote ID to skip lookups on re-share
  - Saves of the same pair within this process are serialized by a keyed mutex
*/

//nolint:staticcheck // File documentation, not package doc
package sharing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/events"
	"github.com/tomtom215/powerhour/internal/ids"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/remote"
	"github.com/tomtom215/powerhour/internal/validation"
)

// Local is the slice of the local store the coordinator uses.
type Local interface {
	Put(ctx context.Context, rec *models.SharedPlaylist) error
	Get(ctx context.Context, id string) (*models.SharedPlaylist, error)
	GetAll(ctx context.Context) ([]*models.SharedPlaylist, error)
	GetByCode(ctx context.Context, code string) (*models.SharedPlaylist, error)
	FindByOrigin(ctx context.Context, creatorID, originalLocalID string) (*models.SharedPlaylist, error)
	ListByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error)
	DeleteCascade(ctx context.Context, id string) error
	ReplaceID(ctx context.Context, oldID string, rec *models.SharedPlaylist) error
	Ratings(ctx context.Context, playlistID string) ([]models.RatingEntry, error)
	Downloads(ctx context.Context, playlistID string) ([]models.DownloadReceipt, error)
	SetAggregates(ctx context.Context, id string, rating *float64, downloads *int64) error

	GetPlaylist(ctx context.Context, id string) (*models.Playlist, error)
	PutPlaylist(ctx context.Context, p *models.Playlist) error
	HasAttachment(ctx context.Context, id string) (bool, error)
}

// DownloadRecorder records that an identity downloaded a shared playlist.
type DownloadRecorder interface {
	RecordDownload(ctx context.Context, actor auth.Identity, playlistID string) (*models.DownloadResult, error)
}

// Queue holds remote rating and download writes for later replay.
type Queue interface {
	EnqueueRating(ctx context.Context, entry models.RatingEntry) error
	EnqueueDownload(ctx context.Context, receipt models.DownloadReceipt) error
}

// BeforeShareFunc runs before a library playlist is shared.
type BeforeShareFunc func(ctx context.Context, actor auth.Identity, originalLocalID string) error

// Coordinator orchestrates the local and remote tiers.
type Coordinator struct {
	local    Local
	remote   remote.Tier
	resolver *Fallback
	ids      ids.Generator
	events   events.Publisher

	// (creator, originalLocalID) -> remote ID
	origins *expirable.LRU[string, string]
	locks   *keyedMutex

	codeAttempts int
	now          func() time.Time

	downloads   DownloadRecorder
	queue       Queue
	beforeShare BeforeShareFunc
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithIDs replaces the identifier generator.
func WithIDs(g ids.Generator) Option {
	return func(c *Coordinator) { c.ids = g }
}

// WithPublisher sets the change-event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.events = p }
}

// WithDownloadRecorder sets who records downloads on import.
func WithDownloadRecorder(d DownloadRecorder) Option {
	return func(c *Coordinator) { c.downloads = d }
}

// WithQueue enables the outbox for entries carried over from local-only
// records that the remote tier could not take.
func WithQueue(q Queue) Option {
	return func(c *Coordinator) { c.queue = q }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator wires the two tiers together.
func NewCoordinator(local Local, tier remote.Tier, cfg config.RemoteConfig, opts ...Option) *Coordinator {
	size := cfg.IndexCacheSize
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.IndexCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	attempts := cfg.ShareCodeAttempts
	if attempts < 1 {
		attempts = 5
	}

	c := &Coordinator{
		local:        local,
		remote:       tier,
		ids:          ids.Random{},
		events:       events.Nop{},
		origins:      expirable.NewLRU[string, string](size, nil, ttl),
		locks:        newKeyedMutex(),
		codeAttempts: attempts,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}

	c.resolver = &Fallback{
		Primary:      RemoteResolver{Remote: tier},
		Secondary:    LocalResolver{Local: local},
		Available:    tier.IsAvailable,
		OnPrimaryHit: c.warm,
	}
	return c
}

// SetBeforeShare installs a hook run by Share before the record is built.
// Hook errors are logged and do not stop the share.
func (c *Coordinator) SetBeforeShare(fn BeforeShareFunc) {
	c.beforeShare = fn
}

// SetDownloadRecorder sets who records downloads on import.
func (c *Coordinator) SetDownloadRecorder(d DownloadRecorder) {
	c.downloads = d
}

// Save writes rec to the local cache and, when possible, to the remote tier.
//
// The returned error is non-nil only for invalid input, ownership
// violations and local-store failures. Remote outcomes are reported in
// SaveResult.RemoteStatus.
func (c *Coordinator) Save(ctx context.Context, actor auth.Identity, rec *models.SharedPlaylist) (*models.SaveResult, error) {
	if rec == nil {
		return nil, &models.ValidationError{Field: "playlist", Reason: "is required"}
	}
	if actor.IsZero() {
		return nil, models.ErrOwnershipDenied
	}

	rec = rec.Clone()
	if rec.CreatorID == "" {
		rec.CreatorID = actor.ID
	} else if rec.CreatorID != actor.ID {
		return nil, models.ErrOwnershipDenied
	}
	if rec.CreatorDisplayName == "" {
		rec.CreatorDisplayName = actor.DisplayName
	}
	rec.Tags = models.NormalizeTags(rec.Tags)
	if rec.ShareCode != "" {
		code, err := ids.NormalizeShareCode(rec.ShareCode)
		if err != nil {
			return nil, err
		}
		rec.ShareCode = code
	}
	if rec.Source == "" {
		rec.Source = models.SourceShare
	}
	if err := validation.Check(rec); err != nil {
		return nil, err
	}

	if key := c.lockKey(ctx, rec); key != "" {
		unlock := c.locks.Lock(key)
		defer unlock()
	}

	if err := c.reconcileLocal(ctx, rec); err != nil {
		return nil, err
	}
	if err := c.local.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("save shared playlist locally: %w", err)
	}

	result := &models.SaveResult{Playlist: rec.Clone(), RemoteStatus: models.RemoteLocalOnly}
	if c.remote.IsAvailable() && actor.CanWriteRemote() {
		synced, err := c.syncRemote(ctx, rec)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("op", "save").
				Str("playlist_id", rec.ID).
				Str("share_code", rec.ShareCode).
				Msg("Remote save failed; kept local copy")
			result.RemoteStatus = models.RemoteFailed
			result.RemoteError = err.Error()
		} else {
			result.Playlist = synced
			result.RemoteStatus = models.RemoteSynced
		}
	}

	metrics.RecordSave(result.RemoteStatus)
	return result, nil
}

// lockKey returns the record lock for rec, the same key mutate takes for
// the cached copy. A record saved by ID alone borrows its cached origin.
func (c *Coordinator) lockKey(ctx context.Context, rec *models.SharedPlaylist) string {
	origin := rec.OriginalLocalID
	if origin == "" && rec.ID != "" {
		origin = rec.ID
		if cached, err := c.local.Get(ctx, rec.ID); err == nil {
			origin = lockID(cached)
		}
	}
	if origin == "" {
		return ""
	}
	return originKey(rec.CreatorID, origin)
}

// reconcileLocal merges rec with the cached record for the same logical
// playlist, keeping identity fields and aggregates the caller may not set.
func (c *Coordinator) reconcileLocal(ctx context.Context, rec *models.SharedPlaylist) error {
	existing, err := c.findLocal(ctx, rec)
	if err != nil {
		return err
	}
	now := c.now()

	if existing != nil {
		rec.ID = existing.ID
		rec.Provenance = existing.Provenance
		if existing.ShareCode != "" {
			rec.ShareCode = existing.ShareCode
		}
		if rec.OriginalLocalID == "" {
			rec.OriginalLocalID = existing.OriginalLocalID
		}
		rec.CreatedAt = existing.CreatedAt
		rec.Rating = existing.Rating
		rec.DownloadCount = existing.DownloadCount
		rec.IsFeatured = existing.IsFeatured
		rec.Version = existing.Version + 1
	} else {
		rec.ID = c.ids.LocalID()
		rec.Provenance = models.ProvenanceLocal
		if rec.ShareCode == "" {
			rec.ShareCode = c.ids.ShareCode()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.Rating = 0
		rec.DownloadCount = 0
		rec.IsFeatured = false
		rec.Version = 1
	}
	rec.UpdatedAt = now
	return nil
}

func (c *Coordinator) findLocal(ctx context.Context, rec *models.SharedPlaylist) (*models.SharedPlaylist, error) {
	if rec.OriginalLocalID != "" {
		existing, err := c.local.FindByOrigin(ctx, rec.CreatorID, rec.OriginalLocalID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("look up cached share: %w", err)
		}
	}
	if rec.ID == "" {
		return nil, nil
	}
	existing, err := c.local.Get(ctx, rec.ID)
	switch {
	case err == nil:
		if existing.CreatorID != "" && existing.CreatorID != rec.CreatorID {
			return nil, models.ErrOwnershipDenied
		}
		return existing, nil
	case errors.Is(err, models.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("look up cached share: %w", err)
	}
}

// syncRemote mirrors rec to the remote tier and adopts the remote identity
// locally. It returns the record as now cached.
func (c *Coordinator) syncRemote(ctx context.Context, rec *models.SharedPlaylist) (*models.SharedPlaylist, error) {
	existing, err := c.findRemote(ctx, rec)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return c.updateRemote(ctx, rec, existing)
	}
	return c.createRemote(ctx, rec)
}

// findRemote returns the remote record for rec's logical playlist, or nil.
func (c *Coordinator) findRemote(ctx context.Context, rec *models.SharedPlaylist) (*models.SharedPlaylist, error) {
	if rec.OriginalLocalID != "" {
		key := originKey(rec.CreatorID, rec.OriginalLocalID)
		if id, ok := c.origins.Get(key); ok {
			got, err := c.remote.GetByID(ctx, id)
			switch {
			case err == nil && got.CreatorID == rec.CreatorID:
				metrics.RemoteIndexCache.WithLabelValues("hit").Inc()
				return got, nil
			case err == nil || errors.Is(err, models.ErrNotFound):
				metrics.RemoteIndexCache.WithLabelValues("stale").Inc()
				c.origins.Remove(key)
			default:
				return nil, err
			}
		} else {
			metrics.RemoteIndexCache.WithLabelValues("miss").Inc()
		}

		got, err := c.remote.FindByOrigin(ctx, rec.CreatorID, rec.OriginalLocalID)
		if err == nil {
			c.origins.Add(key, got.ID)
			return got, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	if rec.Provenance == models.ProvenanceRemote {
		got, err := c.remote.GetByID(ctx, rec.ID)
		if err == nil {
			return got, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

func (c *Coordinator) updateRemote(ctx context.Context, rec, existing *models.SharedPlaylist) (*models.SharedPlaylist, error) {
	ok, err := c.remote.UpdateFields(ctx, existing.ID, rec.CreatorID, remote.ContentPatch(rec))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: update of %s refused", models.ErrRemoteRejected, existing.ID)
	}

	localID := rec.ID
	merged := rec.Clone()
	merged.ID = existing.ID
	merged.Provenance = models.ProvenanceRemote
	merged.ShareCode = existing.ShareCode
	merged.CreatedAt = existing.CreatedAt
	merged.Rating = existing.Rating
	merged.DownloadCount = existing.DownloadCount
	merged.IsFeatured = existing.IsFeatured
	merged.Version = existing.Version + 1
	if merged.OriginalLocalID == "" {
		merged.OriginalLocalID = existing.OriginalLocalID
	}

	if err := c.adopt(ctx, localID, merged); err != nil {
		return nil, err
	}
	c.emit(ctx, events.PlaylistUpdated, merged, merged.CreatorID)
	return merged, nil
}

func (c *Coordinator) createRemote(ctx context.Context, rec *models.SharedPlaylist) (*models.SharedPlaylist, error) {
	candidate := rec.Clone()
	var lastErr error

	for attempt := 0; attempt < c.codeAttempts; attempt++ {
		taken, err := c.remote.ShareCodeExists(ctx, candidate.ShareCode)
		if err != nil {
			return nil, err
		}
		if taken {
			candidate.ShareCode = c.ids.ShareCode()
			continue
		}

		id, err := c.remote.Create(ctx, candidate)
		switch {
		case err == nil:
			created := candidate.Clone()
			created.ID = id
			created.Provenance = models.ProvenanceRemote
			if err := c.adopt(ctx, rec.ID, created); err != nil {
				return nil, err
			}
			if created.OriginalLocalID != "" {
				c.origins.Add(originKey(created.CreatorID, created.OriginalLocalID), id)
			}
			c.emit(ctx, events.PlaylistShared, created, created.CreatorID)
			return created, nil

		case errors.Is(err, remote.ErrShareCodeTaken):
			lastErr = err
			candidate.ShareCode = c.ids.ShareCode()

		case errors.Is(err, remote.ErrOriginExists):
			// Lost a race with another writer for the same playlist.
			existing, ferr := c.remote.FindByOrigin(ctx, rec.CreatorID, rec.OriginalLocalID)
			if ferr != nil {
				return nil, ferr
			}
			return c.updateRemote(ctx, rec, existing)

		default:
			return nil, err
		}
	}

	if lastErr == nil {
		lastErr = remote.ErrShareCodeTaken
	}
	return nil, fmt.Errorf("no free share code after %d attempts: %w", c.codeAttempts, lastErr)
}

// adopt stores rec, which carries a remote ID, in place of the cached
// record localID. Ratings and downloads recorded while the record was
// local-only never reached the remote tier; they are sent now. Both remote
// writes are upserts, so entries that did reach it are harmless.
func (c *Coordinator) adopt(ctx context.Context, localID string, rec *models.SharedPlaylist) error {
	if localID == "" || localID == rec.ID {
		if err := c.local.Put(ctx, rec); err != nil {
			return fmt.Errorf("cache remote record %s: %w", rec.ID, err)
		}
		return nil
	}

	facts, err := c.localFacts(ctx, localID)
	if err != nil {
		return err
	}
	if err := c.local.ReplaceID(ctx, localID, rec); err != nil {
		return fmt.Errorf("cache remote record %s: %w", rec.ID, err)
	}
	c.pushFacts(ctx, rec, facts)
	return nil
}

type localFacts struct {
	ratings   []models.RatingEntry
	downloads []models.DownloadReceipt
}

func (c *Coordinator) localFacts(ctx context.Context, id string) (localFacts, error) {
	ratings, err := c.local.Ratings(ctx, id)
	if err != nil {
		return localFacts{}, err
	}
	downloads, err := c.local.Downloads(ctx, id)
	if err != nil {
		return localFacts{}, err
	}
	return localFacts{ratings: ratings, downloads: downloads}, nil
}

// pushFacts replays facts against rec's remote ID and caches the remote
// aggregates on rec. Writes the remote tier cannot take go to the queue.
func (c *Coordinator) pushFacts(ctx context.Context, rec *models.SharedPlaylist, facts localFacts) {
	var rating *float64
	var downloads *int64

	for _, e := range facts.ratings {
		e.PlaylistID = rec.ID
		value, _, err := c.remote.UpsertRating(ctx, e)
		if err != nil {
			c.carryFailed(ctx, "rate", rec.ID, err, func() error { return c.queue.EnqueueRating(ctx, e) })
			continue
		}
		rating = &value
	}
	for _, d := range facts.downloads {
		d.PlaylistID = rec.ID
		count, _, err := c.remote.InsertDownload(ctx, d)
		if err != nil {
			c.carryFailed(ctx, "download", rec.ID, err, func() error { return c.queue.EnqueueDownload(ctx, d) })
			continue
		}
		downloads = &count
	}

	if rating == nil && downloads == nil {
		return
	}
	if rating != nil {
		rec.Rating = *rating
	}
	if downloads != nil {
		rec.DownloadCount = *downloads
	}
	if err := c.local.SetAggregates(ctx, rec.ID, rating, downloads); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("playlist_id", rec.ID).Msg("Failed to cache remote aggregates")
	}
}

func (c *Coordinator) carryFailed(ctx context.Context, op, playlistID string, err error, enqueue func() error) {
	if c.queue == nil || !errors.Is(err, models.ErrRemoteUnavailable) {
		logging.Ctx(ctx).Warn().Err(err).Str("op", op).Str("playlist_id", playlistID).
			Msg("Dropped local entry for remote record")
		return
	}
	if qerr := enqueue(); qerr != nil {
		logging.Ctx(ctx).Error().Err(qerr).Str("op", op).Str("playlist_id", playlistID).
			Msg("Failed to queue remote write")
	}
}

// AdoptRemote replaces the cached record localID with remoteRec.
func (c *Coordinator) AdoptRemote(ctx context.Context, localID string, remoteRec *models.SharedPlaylist) error {
	rec := remoteRec.Clone()
	rec.Provenance = models.ProvenanceRemote
	if err := c.adopt(ctx, localID, rec); err != nil {
		return err
	}
	if rec.CreatorID != "" && rec.OriginalLocalID != "" {
		c.origins.Add(originKey(rec.CreatorID, rec.OriginalLocalID), rec.ID)
	}
	return nil
}

// ResolveByCode looks code up remote-first. It returns models.ErrNotFound
// only when both tiers miss.
func (c *Coordinator) ResolveByCode(ctx context.Context, code string) (*models.SharedPlaylist, error) {
	normalized, err := ids.NormalizeShareCode(code)
	if err != nil {
		return nil, err
	}
	return c.resolver.ByCode(ctx, normalized)
}

// warm caches a record resolved from the remote tier.
func (c *Coordinator) warm(ctx context.Context, rec *models.SharedPlaylist) {
	var err error
	if rec.CreatorID != "" && rec.OriginalLocalID != "" {
		existing, ferr := c.local.FindByOrigin(ctx, rec.CreatorID, rec.OriginalLocalID)
		if ferr == nil && existing.ID != rec.ID {
			err = c.adopt(ctx, existing.ID, rec)
		} else {
			err = c.local.Put(ctx, rec)
		}
	} else {
		err = c.local.Put(ctx, rec)
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("op", "warm_cache").
			Str("playlist_id", rec.ID).
			Str("share_code", rec.ShareCode).
			Msg("Failed to cache resolved playlist")
	}
}

// List returns public records in category, remote-first.
func (c *Coordinator) List(ctx context.Context, category models.Category, limit int) (*Listing, error) {
	return c.resolver.ByCategory(ctx, category, limit)
}

// ListMine returns every record the actor created, public or not.
func (c *Coordinator) ListMine(ctx context.Context, actor auth.Identity) (*Listing, error) {
	if actor.IsZero() {
		return nil, models.ErrOwnershipDenied
	}
	return c.resolver.ByCreator(ctx, actor.ID)
}

// Share publishes a library playlist. Re-sharing the same playlist updates
// the existing record.
func (c *Coordinator) Share(ctx context.Context, actor auth.Identity, req models.ShareRequest) (*models.SaveResult, error) {
	if err := validation.Check(req); err != nil {
		return nil, err
	}
	pl, err := c.local.GetPlaylist(ctx, req.PlaylistID)
	if err != nil {
		return nil, err
	}

	if c.beforeShare != nil {
		if err := c.beforeShare(ctx, actor, pl.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("op", "share").Str("playlist_id", pl.ID).
				Msg("Pre-share migration failed")
		}
	}

	rec := &models.SharedPlaylist{
		OriginalLocalID: pl.ID,
		Name:            pl.Name,
		Description:     pl.Description,
		Tags:            pl.Tags,
		Clips:           pl.Clips,
		IsPublic:        true,
		Source:          models.SourceShare,
	}
	if req.Description != "" {
		rec.Description = req.Description
	}
	if len(req.Tags) > 0 {
		rec.Tags = req.Tags
	}
	if req.IsPublic != nil {
		rec.IsPublic = *req.IsPublic
	}
	return c.Save(ctx, actor, rec)
}

func (c *Coordinator) emit(ctx context.Context, typ events.Type, rec *models.SharedPlaylist, actorID string) {
	events.Emit(ctx, c.events, events.Event{
		Type:       typ,
		PlaylistID: rec.ID,
		ShareCode:  rec.ShareCode,
		ActorID:    actorID,
		At:         c.now(),
	})
}

func sortNewestFirst(recs []*models.SharedPlaylist) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
}
