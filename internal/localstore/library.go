// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package localstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/powerhour/internal/models"
)

const (
	bucketProfile   = "user_profile"
	bucketPlaylists = "playlists"
)

// Profile returns the installation profile, or models.ErrNotFound.
func (s *Store) Profile(ctx context.Context) (*models.UserProfile, error) {
	c := &corruption{bucket: bucketProfile}
	var p *models.UserProfile
	err := s.db.View(func(txn *badger.Txn) error {
		v, ok, err := getJSON[models.UserProfile](txn, []byte(profileKey), c)
		if ok {
			p = v
		}
		return err
	})
	s.purge(c)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, models.ErrNotFound
	}
	return p, nil
}

// PutProfile overwrites the installation profile.
func (s *Store) PutProfile(ctx context.Context, p *models.UserProfile) error {
	if err := s.update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(profileKey), p)
	}); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// EnsureProfile returns the stored profile, creating it from newProfile when
// absent (or corrupt). created reports whether a new profile was written.
func (s *Store) EnsureProfile(ctx context.Context, newProfile func() *models.UserProfile) (p *models.UserProfile, created bool, err error) {
	c := &corruption{bucket: bucketProfile}
	err = s.readModifyWrite(func(txn *badger.Txn) error {
		existing, ok, err := getJSON[models.UserProfile](txn, []byte(profileKey), c)
		if err != nil {
			return err
		}
		if ok {
			p, created = existing, false
			return nil
		}
		p, created = newProfile(), true
		return setJSON(txn, []byte(profileKey), p)
	})
	if err != nil {
		return nil, false, fmt.Errorf("ensure profile: %w", err)
	}
	if created && len(c.keys) > 0 {
		// The corrupt value was overwritten in the same transaction.
		s.log.Error().Str("bucket", bucketProfile).Msg("Replaced unparseable profile")
	}
	return p, created, nil
}

// PutPlaylist upserts a library playlist.
func (s *Store) PutPlaylist(ctx context.Context, p *models.Playlist) error {
	if p == nil || p.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "playlist id is required"}
	}
	if err := s.update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(playlistPrefix+p.ID), p)
	}); err != nil {
		return fmt.Errorf("put playlist %s: %w", p.ID, err)
	}
	return nil
}

// GetPlaylist returns a library playlist, or models.ErrNotFound.
func (s *Store) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	c := &corruption{bucket: bucketPlaylists}
	var p *models.Playlist
	err := s.db.View(func(txn *badger.Txn) error {
		v, ok, err := getJSON[models.Playlist](txn, []byte(playlistPrefix+id), c)
		if ok {
			p = v
		}
		return err
	})
	s.purge(c)
	if err != nil {
		return nil, fmt.Errorf("get playlist %s: %w", id, err)
	}
	if p == nil {
		return nil, models.ErrNotFound
	}
	return p, nil
}

// Playlists returns the local library, newest first.
func (s *Store) Playlists(ctx context.Context) ([]*models.Playlist, error) {
	c := &corruption{bucket: bucketPlaylists}
	var ps []models.Playlist
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ps, err = scanJSON[models.Playlist](txn, []byte(playlistPrefix), c)
		return err
	})
	s.purge(c)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	out := make([]*models.Playlist, len(ps))
	for i := range ps {
		out[i] = &ps[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// PutAttachment records that the attachment's media is present locally.
func (s *Store) PutAttachment(ctx context.Context, a models.Attachment) error {
	if a.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "attachment id is required"}
	}
	if err := s.update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(attachmentPrefix+a.ID), a)
	}); err != nil {
		return fmt.Errorf("put attachment %s: %w", a.ID, err)
	}
	return nil
}

// HasAttachment reports whether the attachment's media is present locally.
func (s *Store) HasAttachment(ctx context.Context, id string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(attachmentPrefix + id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get attachment %s: %w", id, err)
	}
	return true, nil
}
