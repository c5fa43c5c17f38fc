// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package migration moves shared playlists created on this installation
// before sign-in into the signed-in account's remote set.
//
// A record is a candidate when it has never reached the remote tier and
// was created by nobody (legacy data), by the installation profile, or by
// the account itself. Migrating a record already present remotely for the
// same (account, original playlist) only links the local copy to it, so
// running a migration twice creates nothing the second time.
package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/remote"
)

// ErrAlreadyRunning is returned when a bulk migration is in progress.
var ErrAlreadyRunning = errors.New("migration already running")

// Local is the slice of the local store migration reads and rewrites.
type Local interface {
	Get(ctx context.Context, id string) (*models.SharedPlaylist, error)
	GetAll(ctx context.Context) ([]*models.SharedPlaylist, error)
	Put(ctx context.Context, rec *models.SharedPlaylist) error
}

// Saver is the sync coordinator's write path.
type Saver interface {
	Save(ctx context.Context, actor auth.Identity, rec *models.SharedPlaylist) (*models.SaveResult, error)
	AdoptRemote(ctx context.Context, localID string, remoteRec *models.SharedPlaylist) error
}

// Service migrates local-only records.
type Service struct {
	saver     Saver
	local     Local
	remote    remote.Tier
	profileID string

	mu      sync.Mutex
	running bool
}

// NewService returns a Service. profileID is the installation profile whose
// records may be claimed by a signed-in account.
func NewService(saver Saver, local Local, tier remote.Tier, profileID string) *Service {
	return &Service{saver: saver, local: local, remote: tier, profileID: profileID}
}

// Status counts what a migration for actor would do.
func (s *Service) Status(ctx context.Context, actor auth.Identity) (*models.MigrationStatus, error) {
	all, err := s.local.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	st := &models.MigrationStatus{}
	var candidates []*models.SharedPlaylist
	for _, r := range all {
		switch {
		case s.isCandidate(r, actor):
			candidates = append(candidates, r)
		case r.Provenance == models.ProvenanceRemote && r.CreatorID == actor.ID && actor.ID != "":
			st.Remote++
		}
	}
	st.LocalOnly = len(candidates)

	if !actor.IsAccount() || !s.remote.IsAvailable() {
		st.NeedsMigration = len(candidates)
		return st, nil
	}

	if mine, err := s.remote.QueryByCreator(ctx, actor.ID); err == nil {
		st.Remote = len(mine)
	}
	for _, r := range candidates {
		// A failed lookup counts as work remaining.
		if _, err := s.remote.FindByOrigin(ctx, actor.ID, origin(r)); err != nil {
			st.NeedsMigration++
		}
	}
	return st, nil
}

// MigrateAll migrates every candidate, reporting per-record outcomes. A
// failed record does not stop the batch. Cancelling ctx stops before the
// next record; the report so far is returned with ctx's error.
func (s *Service) MigrateAll(ctx context.Context, actor auth.Identity) (*models.MigrationReport, error) {
	if err := s.ready(actor); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	all, err := s.local.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report := &models.MigrationReport{Items: []models.MigrationItem{}}
	for _, r := range all {
		if !s.isCandidate(r, actor) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Add(s.migrate(ctx, actor, r))
	}

	logging.Ctx(ctx).Info().
		Str("account_id", actor.ID).
		Int("migrated", report.Migrated).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", time.Since(start)).
		Msg("Migration complete")
	return report, nil
}

// MigrateOne migrates the cached record localID.
func (s *Service) MigrateOne(ctx context.Context, actor auth.Identity, localID string) (*models.MigrationItem, error) {
	if err := s.ready(actor); err != nil {
		return nil, err
	}
	rec, err := s.local.Get(ctx, localID)
	if err != nil {
		return nil, err
	}
	if rec.Provenance == models.ProvenanceRemote {
		item := models.MigrationItem{
			LocalID: rec.ID, RemoteID: rec.ID, ShareCode: rec.ShareCode, Outcome: models.MigrationSkipped,
		}
		metrics.MigrationItems.WithLabelValues(string(item.Outcome)).Inc()
		return &item, nil
	}
	if !s.isCandidate(rec, actor) {
		return nil, models.ErrOwnershipDenied
	}
	item := s.migrate(ctx, actor, rec)
	return &item, nil
}

// MigrateOrigin migrates the candidates shared from one library playlist.
// It is meant to run right before that playlist is shared, and does
// nothing when migration is not possible.
func (s *Service) MigrateOrigin(ctx context.Context, actor auth.Identity, originalLocalID string) error {
	if s.ready(actor) != nil {
		return nil
	}
	all, err := s.local.GetAll(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range all {
		if origin(r) != originalLocalID || r.CreatorID == actor.ID || !s.isCandidate(r, actor) {
			continue
		}
		if item := s.migrate(ctx, actor, r); item.Outcome == models.MigrationFailed {
			errs = append(errs, fmt.Errorf("migrate %s: %s", r.ID, item.Error))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) ready(actor auth.Identity) error {
	if !actor.IsAccount() {
		return models.ErrAnonymousIdentity
	}
	if !s.remote.IsAvailable() {
		return models.ErrRemoteUnavailable
	}
	return nil
}

func (s *Service) isCandidate(r *models.SharedPlaylist, actor auth.Identity) bool {
	if r.Provenance == models.ProvenanceRemote {
		return false
	}
	switch r.CreatorID {
	case "":
		return true
	case s.profileID:
		return s.profileID != ""
	default:
		return actor.ID != "" && r.CreatorID == actor.ID
	}
}

// migrate moves one record. It never returns an error; failures are
// reported on the item.
func (s *Service) migrate(ctx context.Context, actor auth.Identity, rec *models.SharedPlaylist) models.MigrationItem {
	item := models.MigrationItem{LocalID: rec.ID}
	finish := func(outcome models.MigrationOutcome, err error) models.MigrationItem {
		item.Outcome = outcome
		if err != nil {
			item.Error = err.Error()
			logging.Ctx(ctx).Warn().Err(err).
				Str("op", "migrate").
				Str("playlist_id", rec.ID).
				Str("share_code", rec.ShareCode).
				Msg("Failed to migrate shared playlist")
		}
		metrics.MigrationItems.WithLabelValues(string(outcome)).Inc()
		return item
	}

	org := origin(rec)
	existing, err := s.remote.FindByOrigin(ctx, actor.ID, org)
	switch {
	case err == nil:
		if err := s.saver.AdoptRemote(ctx, rec.ID, existing); err != nil {
			return finish(models.MigrationFailed, err)
		}
		item.RemoteID, item.ShareCode = existing.ID, existing.ShareCode
		return finish(models.MigrationSkipped, nil)
	case !errors.Is(err, models.ErrNotFound):
		return finish(models.MigrationFailed, err)
	}

	// Claim the local copy for the account so the save path treats it as
	// the account's own record and keeps its id and share code.
	claimed := rec.Clone()
	claimed.CreatorID = actor.ID
	if actor.DisplayName != "" {
		claimed.CreatorDisplayName = actor.DisplayName
	}
	claimed.OriginalLocalID = org
	claimed.Source = models.SourceMigration
	if err := s.local.Put(ctx, claimed); err != nil {
		return finish(models.MigrationFailed, fmt.Errorf("claim local record: %w", err))
	}

	res, err := s.saver.Save(ctx, actor, claimed)
	if err != nil {
		return finish(models.MigrationFailed, err)
	}
	if res.RemoteStatus != models.RemoteSynced {
		return finish(models.MigrationFailed, fmt.Errorf("%w: %s", models.ErrRemoteRejected, res.RemoteError))
	}
	item.RemoteID, item.ShareCode = res.Playlist.ID, res.Playlist.ShareCode
	return finish(models.MigrationMigrated, nil)
}

func origin(r *models.SharedPlaylist) string {
	if r.OriginalLocalID != "" {
		return r.OriginalLocalID
	}
	return r.ID
}
