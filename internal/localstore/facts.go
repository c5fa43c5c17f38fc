// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/powerhour/internal/models"
)

const (
	bucketRatings   = "playlist_ratings"
	bucketDownloads = "user_downloads"
)

func ratingKeyPrefix(playlistID string) []byte {
	return []byte(ratingPrefix + playlistID + ":")
}

func ratingKey(playlistID, raterID string) []byte {
	return []byte(ratingPrefix + playlistID + ":" + raterID)
}

func downloadKeyPrefix(playlistID string) []byte {
	return []byte(downloadPrefix + playlistID + ":")
}

func downloadKey(playlistID, downloaderID string) []byte {
	return []byte(downloadPrefix + playlistID + ":" + downloaderID)
}

// RatingAggregate is the rating view derived from a playlist's entries.
type RatingAggregate struct {
	Rating float64
	Count  int
}

// UpsertRating replaces the rater's entry for the playlist and returns the
// aggregate over all local entries. With writeBack set, the aggregate is also
// stored on the cached record in the same transaction, so the displayed
// rating can never drift from the entry set.
func (s *Store) UpsertRating(ctx context.Context, entry models.RatingEntry, writeBack bool) (RatingAggregate, error) {
	var agg RatingAggregate
	c := &corruption{bucket: bucketRatings}
	err := s.readModifyWrite(func(txn *badger.Txn) error {
		if err := setJSON(txn, ratingKey(entry.PlaylistID, entry.RaterID), entry); err != nil {
			return err
		}
		entries, err := scanJSON[models.RatingEntry](txn, ratingKeyPrefix(entry.PlaylistID), c)
		if err != nil {
			return err
		}
		agg = RatingAggregate{Rating: models.MeanRating(entries), Count: len(entries)}
		if !writeBack {
			return nil
		}
		return writeRecordField(txn, entry.PlaylistID, func(r *models.SharedPlaylist) { r.Rating = agg.Rating })
	})
	s.purge(c)
	if err != nil {
		return RatingAggregate{}, fmt.Errorf("upsert rating on %s: %w", entry.PlaylistID, err)
	}
	return agg, nil
}

// Ratings returns every local rating entry for the playlist.
func (s *Store) Ratings(ctx context.Context, playlistID string) ([]models.RatingEntry, error) {
	c := &corruption{bucket: bucketRatings}
	var entries []models.RatingEntry
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		entries, err = scanJSON[models.RatingEntry](txn, ratingKeyPrefix(playlistID), c)
		return err
	})
	s.purge(c)
	if err != nil {
		return nil, fmt.Errorf("list ratings for %s: %w", playlistID, err)
	}
	return entries, nil
}

// InsertDownload stores the receipt unless one already exists for the same
// (playlist, downloader) pair, and returns the receipt count afterwards.
// inserted is false for a repeat download. With writeBack set, the count is
// stored on the cached record in the same transaction.
func (s *Store) InsertDownload(ctx context.Context, receipt models.DownloadReceipt, writeBack bool) (count int64, inserted bool, err error) {
	err = s.readModifyWrite(func(txn *badger.Txn) error {
		key := downloadKey(receipt.PlaylistID, receipt.DownloaderID)
		_, getErr := txn.Get(key)
		switch {
		case getErr == nil:
			inserted = false
		case errors.Is(getErr, badger.ErrKeyNotFound):
			if err := setJSON(txn, key, receipt); err != nil {
				return err
			}
			inserted = true
		default:
			return getErr
		}

		count = countPrefix(txn, downloadKeyPrefix(receipt.PlaylistID))
		if !writeBack {
			return nil
		}
		return writeRecordField(txn, receipt.PlaylistID, func(r *models.SharedPlaylist) { r.DownloadCount = count })
	})
	if err != nil {
		return 0, false, fmt.Errorf("insert download on %s: %w", receipt.PlaylistID, err)
	}
	return count, inserted, nil
}

// Downloads returns every local download receipt for the playlist.
func (s *Store) Downloads(ctx context.Context, playlistID string) ([]models.DownloadReceipt, error) {
	c := &corruption{bucket: bucketDownloads}
	var receipts []models.DownloadReceipt
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		receipts, err = scanJSON[models.DownloadReceipt](txn, downloadKeyPrefix(playlistID), c)
		return err
	})
	s.purge(c)
	if err != nil {
		return nil, fmt.Errorf("list downloads for %s: %w", playlistID, err)
	}
	return receipts, nil
}

// writeRecordField applies mutate to the cached record if it exists. A
// corrupt record is treated as missing here; the next read purges it.
func writeRecordField(txn *badger.Txn, id string, mutate func(*models.SharedPlaylist)) error {
	rec, ok, err := getJSON[models.SharedPlaylist](txn, sharedKey(id), &corruption{})
	if err != nil || !ok {
		return err
	}
	mutate(rec)
	return setJSON(txn, sharedKey(id), rec)
}
