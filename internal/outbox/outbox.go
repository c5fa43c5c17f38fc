// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package outbox keeps rating and download writes that could not reach the
// remote tier and replays them once it is back.
//
// Entries live in the local badger database under "outbox:<uuidv7>", so
// they survive restarts and replay in the order they were written. Both
// remote writes are upserts, which makes replaying an entry twice harmless.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
)

const prefix = "outbox:"

// Kind is the remote write an entry stands for.
type Kind string

const (
	KindRating   Kind = "rating"
	KindDownload Kind = "download"
)

// ErrEmptyEntry is returned when an entry carries no payload.
var ErrEmptyEntry = errors.New("outbox entry has no payload")

// Entry is one pending remote write.
type Entry struct {
	ID       string                  `json:"id"`
	Kind     Kind                    `json:"kind"`
	Rating   *models.RatingEntry     `json:"rating,omitempty"`
	Download *models.DownloadReceipt `json:"download,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// PlaylistID returns the playlist the entry touches.
func (e *Entry) PlaylistID() string {
	switch {
	case e.Rating != nil:
		return e.Rating.PlaylistID
	case e.Download != nil:
		return e.Download.PlaylistID
	}
	return ""
}

// Outbox is a durable FIFO of pending remote writes.
type Outbox struct {
	db *badger.DB
}

// New returns an outbox stored in db. The caller owns db.
func New(db *badger.DB) *Outbox {
	o := &Outbox{db: db}
	if n, err := o.Len(context.Background()); err == nil {
		metrics.OutboxPending.Set(float64(n))
	}
	return o
}

// EnqueueRating queues a rating upsert.
func (o *Outbox) EnqueueRating(ctx context.Context, entry models.RatingEntry) error {
	return o.write(ctx, &Entry{Kind: KindRating, Rating: &entry})
}

// EnqueueDownload queues a download receipt.
func (o *Outbox) EnqueueDownload(ctx context.Context, receipt models.DownloadReceipt) error {
	return o.write(ctx, &Entry{Kind: KindDownload, Download: &receipt})
}

func (o *Outbox) write(ctx context.Context, e *Entry) error {
	if e.Rating == nil && e.Download == nil {
		return ErrEmptyEntry
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("outbox entry id: %w", err)
	}
	e.ID = id.String()
	e.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal outbox entry: %w", err)
	}
	if err := o.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefix+e.ID), data)
	}); err != nil {
		return fmt.Errorf("write outbox entry: %w", err)
	}
	metrics.OutboxPending.Inc()

	logging.Ctx(ctx).Debug().
		Str("entry_id", e.ID).
		Str("kind", string(e.Kind)).
		Str("playlist_id", e.PlaylistID()).
		Msg("Queued remote write")
	return nil
}

// Pending returns every entry, oldest first. Entries that fail to decode
// are deleted and logged.
func (o *Outbox) Pending(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	var corrupt [][]byte

	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var e Entry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				corrupt = append(corrupt, item.KeyCopy(nil))
				continue
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}

	for _, key := range corrupt {
		logging.Error().Str("key", string(key)).Msg("Dropping unreadable outbox entry")
		if err := o.delete(key); err != nil {
			logging.Error().Err(err).Str("key", string(key)).Msg("Failed to drop outbox entry")
		}
		metrics.LocalCorruptionResets.WithLabelValues("outbox").Inc()
	}
	return entries, nil
}

// Len returns the number of pending entries.
func (o *Outbox) Len(ctx context.Context) (int, error) {
	n := 0
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// Remove deletes an entry after it was applied or given up on.
func (o *Outbox) Remove(_ context.Context, id string) error {
	if err := o.delete([]byte(prefix + id)); err != nil {
		return fmt.Errorf("remove outbox entry %s: %w", id, err)
	}
	metrics.OutboxPending.Dec()
	return nil
}

func (o *Outbox) delete(key []byte) error {
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// recordAttempt stores a failed attempt on the entry.
func (o *Outbox) recordAttempt(e *Entry, cause error) error {
	e.Attempts++
	e.LastAttemptAt = time.Now().UTC()
	e.LastError = cause.Error()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal outbox entry: %w", err)
	}
	return o.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefix + e.ID)
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}
