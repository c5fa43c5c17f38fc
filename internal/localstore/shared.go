// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package localstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/powerhour/internal/models"
)

const bucketShared = "shared_playlists"

func sharedKey(id string) []byte {
	return []byte(sharedPrefix + id)
}

// Put upserts rec by ID. Last write wins.
func (s *Store) Put(ctx context.Context, rec *models.SharedPlaylist) error {
	if rec == nil || rec.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "record id is required"}
	}
	if err := s.update(func(txn *badger.Txn) error {
		return setJSON(txn, sharedKey(rec.ID), rec)
	}); err != nil {
		return fmt.Errorf("put shared playlist %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record with id, or models.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.SharedPlaylist, error) {
	c := &corruption{bucket: bucketShared}
	var rec *models.SharedPlaylist
	err := s.db.View(func(txn *badger.Txn) error {
		v, ok, err := getJSON[models.SharedPlaylist](txn, sharedKey(id), c)
		if ok {
			rec = v
		}
		return err
	})
	s.purge(c)
	if err != nil {
		return nil, fmt.Errorf("get shared playlist %s: %w", id, err)
	}
	if rec == nil {
		return nil, models.ErrNotFound
	}
	return rec, nil
}

// GetAll returns every cached record ordered by creation time, newest first.
// Corrupt entries are dropped; an error means the database itself failed.
func (s *Store) GetAll(ctx context.Context) ([]*models.SharedPlaylist, error) {
	c := &corruption{bucket: bucketShared}
	var recs []models.SharedPlaylist
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		recs, err = scanJSON[models.SharedPlaylist](txn, []byte(sharedPrefix), c)
		return err
	})
	s.purge(c)
	if err != nil {
		return nil, fmt.Errorf("list shared playlists: %w", err)
	}

	out := make([]*models.SharedPlaylist, len(recs))
	for i := range recs {
		out[i] = &recs[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetByCode returns the first record whose share code equals code, or
// models.ErrNotFound. code must already be normalized.
func (s *Store) GetByCode(ctx context.Context, code string) (*models.SharedPlaylist, error) {
	return s.findOne(ctx, func(r *models.SharedPlaylist) bool { return r.ShareCode == code })
}

// FindByOrigin returns the record derived from originalLocalID by creatorID.
func (s *Store) FindByOrigin(ctx context.Context, creatorID, originalLocalID string) (*models.SharedPlaylist, error) {
	if originalLocalID == "" {
		return nil, models.ErrNotFound
	}
	return s.findOne(ctx, func(r *models.SharedPlaylist) bool {
		return r.CreatorID == creatorID && r.OriginalLocalID == originalLocalID
	})
}

// ListByCreator returns every cached record owned by creatorID.
func (s *Store) ListByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.SharedPlaylist
	for _, r := range all {
		if creatorID != "" && r.CreatorID == creatorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) findOne(ctx context.Context, match func(*models.SharedPlaylist) bool) (*models.SharedPlaylist, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	// GetAll is newest first; prefer the oldest match so lookups are stable
	for i := len(all) - 1; i >= 0; i-- {
		if match(all[i]) {
			return all[i], nil
		}
	}
	return nil, models.ErrNotFound
}

// Delete removes the record. Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.update(func(txn *badger.Txn) error {
		return txn.Delete(sharedKey(id))
	}); err != nil {
		return fmt.Errorf("delete shared playlist %s: %w", id, err)
	}
	return nil
}

// DeleteCascade removes the record with its rating entries and download
// receipts in one transaction.
func (s *Store) DeleteCascade(ctx context.Context, id string) error {
	if err := s.update(func(txn *badger.Txn) error {
		if err := txn.Delete(sharedKey(id)); err != nil {
			return err
		}
		if err := deletePrefix(txn, ratingKeyPrefix(id)); err != nil {
			return err
		}
		return deletePrefix(txn, downloadKeyPrefix(id))
	}); err != nil {
		return fmt.Errorf("delete shared playlist %s: %w", id, err)
	}
	return nil
}

// ReplaceID moves a record from oldID to rec.ID in one transaction, carrying
// its rating entries and download receipts along. This is how a local record
// switches to remote provenance without existing under two IDs.
func (s *Store) ReplaceID(ctx context.Context, oldID string, rec *models.SharedPlaylist) error {
	if rec == nil || rec.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "record id is required"}
	}
	c := &corruption{bucket: bucketShared}
	err := s.readModifyWrite(func(txn *badger.Txn) error {
		if oldID != rec.ID {
			ratings, err := scanJSON[models.RatingEntry](txn, ratingKeyPrefix(oldID), c)
			if err != nil {
				return err
			}
			for _, e := range ratings {
				e.PlaylistID = rec.ID
				if err := setJSON(txn, ratingKey(rec.ID, e.RaterID), e); err != nil {
					return err
				}
			}
			receipts, err := scanJSON[models.DownloadReceipt](txn, downloadKeyPrefix(oldID), c)
			if err != nil {
				return err
			}
			for _, r := range receipts {
				r.PlaylistID = rec.ID
				if err := setJSON(txn, downloadKey(rec.ID, r.DownloaderID), r); err != nil {
					return err
				}
			}
			if err := deletePrefix(txn, ratingKeyPrefix(oldID)); err != nil {
				return err
			}
			if err := deletePrefix(txn, downloadKeyPrefix(oldID)); err != nil {
				return err
			}
			if err := txn.Delete(sharedKey(oldID)); err != nil {
				return err
			}
		}
		return setJSON(txn, sharedKey(rec.ID), rec)
	})
	if err != nil {
		return fmt.Errorf("replace shared playlist %s -> %s: %w", oldID, rec.ID, err)
	}
	return nil
}

// SetAggregates writes rating and download count computed elsewhere (the
// remote tier) onto the cached record. Nil leaves a field unchanged. A
// missing record is not an error.
func (s *Store) SetAggregates(ctx context.Context, id string, rating *float64, downloads *int64) error {
	c := &corruption{bucket: bucketShared}
	err := s.readModifyWrite(func(txn *badger.Txn) error {
		rec, ok, err := getJSON[models.SharedPlaylist](txn, sharedKey(id), c)
		if err != nil || !ok {
			return err
		}
		if rating != nil {
			rec.Rating = *rating
		}
		if downloads != nil {
			rec.DownloadCount = *downloads
		}
		return setJSON(txn, sharedKey(id), rec)
	})
	s.purge(c)
	if err != nil {
		return fmt.Errorf("set aggregates on %s: %w", id, err)
	}
	return nil
}
