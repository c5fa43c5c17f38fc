// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package localstore is the on-device cache of shared playlists, rating
// entries, download receipts, the installation profile and the local library.
//
// Every mutation is its own BadgerDB transaction and, with SyncWrites on, is
// fsynced before the call returns. Values that no longer decode are deleted
// and logged; reads carry on as if the key were absent.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
)

// Key prefixes. One logical table per prefix.
const (
	sharedPrefix     = "shared_playlists:"
	ratingPrefix     = "playlist_ratings:"
	downloadPrefix   = "user_downloads:"
	profileKey       = "user_profile"
	playlistPrefix   = "playlists:"
	attachmentPrefix = "attachments:"
)

// maxConflictRetries bounds retries of a read-modify-write transaction that
// lost to a concurrent writer.
const maxConflictRetries = 5

// Store is the BadgerDB-backed local cache.
type Store struct {
	db     *badger.DB
	ownsDB bool
	log    zerolog.Logger

	// rmw serializes read-modify-write transactions (aggregate recompute,
	// id replacement) so they do not spin on badger conflicts.
	rmw sync.Mutex
}

// Open opens (or creates) the store described by cfg.
func Open(cfg config.LocalConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	s := New(db)
	s.ownsDB = true
	return s, nil
}

// New wraps an already open database. The caller keeps ownership of db.
func New(db *badger.DB) *Store {
	return &Store{
		db:  db,
		log: logging.WithComponent("localstore"),
	}
}

// DB exposes the underlying database so other components (the outbox) can
// share it under their own key prefix.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Close closes the database if Open created it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// readModifyWrite is update for transactions that read before they write.
func (s *Store) readModifyWrite(fn func(txn *badger.Txn) error) error {
	s.rmw.Lock()
	defer s.rmw.Unlock()
	return s.update(fn)
}

// update runs fn in a read-write transaction, retrying when badger reports a
// conflict with a concurrent transaction.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// corruption collects keys whose values failed to decode during a read so
// they can be purged after the read transaction closes.
type corruption struct {
	bucket string
	keys   [][]byte
}

func (c *corruption) add(key []byte) {
	c.keys = append(c.keys, key)
}

// purge deletes corrupt keys. Failures are logged; the read that found them
// has already succeeded.
func (s *Store) purge(c *corruption) {
	if c == nil || len(c.keys) == 0 {
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range c.keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	for _, k := range c.keys {
		metrics.LocalCorruptionResets.WithLabelValues(c.bucket).Inc()
		s.log.Error().Str("bucket", c.bucket).Str("key", string(k)).Msg("Discarded unparseable local value")
	}
	if err != nil {
		s.log.Error().Err(err).Str("bucket", c.bucket).Msg("Failed to purge corrupt local values")
	}
}

// getJSON reads one value. Returns false when the key is absent or corrupt.
func getJSON[T any](txn *badger.Txn, key []byte, c *corruption) (*T, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v T
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
		c.add(item.KeyCopy(nil))
		return nil, false, nil
	}
	return &v, true, nil
}

// scanJSON decodes every value under prefix, skipping corrupt ones.
func scanJSON[T any](txn *badger.Txn, prefix []byte, c *corruption) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []T
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var v T
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &v) }); err != nil {
			c.add(item.KeyCopy(nil))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// countPrefix counts keys under prefix without reading values.
func countPrefix(txn *badger.Txn, prefix []byte) int64 {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		_ = it.Item() // registers the read for conflict detection
		n++
	}
	return n
}

// deletePrefix removes every key under prefix inside txn.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// Ping checks that the database accepts reads.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(profileKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
