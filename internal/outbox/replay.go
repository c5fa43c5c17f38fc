// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package outbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
)

const maxBackoff = 5 * time.Minute

// Remote is the part of the remote tier replay needs.
type Remote interface {
	IsAvailable() bool
	UpsertRating(ctx context.Context, entry models.RatingEntry) (float64, int, error)
	InsertDownload(ctx context.Context, receipt models.DownloadReceipt) (int64, bool, error)
}

// AggregateWriter caches aggregates the remote tier computed.
type AggregateWriter interface {
	SetAggregates(ctx context.Context, id string, rating *float64, downloads *int64) error
}

// Result summarises one replay pass.
type Result struct {
	Replayed int
	Retried  int
	Dropped  int
	Skipped  int
}

// Replayer drains the outbox into the remote tier. It is a suture service.
type Replayer struct {
	outbox      *Outbox
	remote      Remote
	local       AggregateWriter
	interval    time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewReplayer returns a replayer using cfg's interval and attempt limit.
func NewReplayer(o *Outbox, remote Remote, local AggregateWriter, cfg config.OutboxConfig) *Replayer {
	interval := cfg.ReplayInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 10
	}
	return &Replayer{
		outbox:      o,
		remote:      remote,
		local:       local,
		interval:    interval,
		maxAttempts: attempts,
		now:         time.Now,
	}
}

// Serve replays on every tick until ctx is done.
func (r *Replayer) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", r.interval).
		Int("max_attempts", r.maxAttempts).
		Msg("Outbox replay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Outbox replay stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReplayOnce(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Err(err).Msg("Outbox replay pass failed")
			}
		}
	}
}

func (r *Replayer) String() string { return "outbox-replay" }

// ReplayOnce applies every entry that is due. It does nothing while the
// remote tier is unavailable.
func (r *Replayer) ReplayOnce(ctx context.Context) (Result, error) {
	var res Result
	if !r.remote.IsAvailable() {
		return res, nil
	}

	entries, err := r.outbox.Pending(ctx)
	if err != nil {
		return res, err
	}

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !r.remote.IsAvailable() {
			res.Skipped += len(entries) - i
			break
		}
		if !r.due(e) {
			res.Skipped++
			continue
		}

		switch r.process(ctx, e) {
		case outcomeReplayed:
			res.Replayed++
		case outcomeRetry:
			res.Retried++
		case outcomeDropped:
			res.Dropped++
		}
	}

	if n, err := r.outbox.Len(ctx); err == nil {
		metrics.OutboxPending.Set(float64(n))
	}
	if res.Replayed > 0 || res.Retried > 0 || res.Dropped > 0 {
		logging.Info().
			Int("replayed", res.Replayed).
			Int("retried", res.Retried).
			Int("dropped", res.Dropped).
			Msg("Outbox replay complete")
	}
	return res, nil
}

type outcome int

const (
	outcomeReplayed outcome = iota
	outcomeRetry
	outcomeDropped
)

func (r *Replayer) process(ctx context.Context, e *Entry) outcome {
	err := r.apply(ctx, e)
	switch {
	case err == nil:
		if rmErr := r.outbox.Remove(ctx, e.ID); rmErr != nil {
			logging.Error().Err(rmErr).Str("entry_id", e.ID).Msg("Failed to remove replayed outbox entry")
		}
		metrics.OutboxReplayed.WithLabelValues("ok").Inc()
		return outcomeReplayed

	case permanent(err) || e.Attempts+1 >= r.maxAttempts:
		logging.Warn().Err(err).
			Str("entry_id", e.ID).
			Str("kind", string(e.Kind)).
			Str("playlist_id", e.PlaylistID()).
			Int("attempts", e.Attempts+1).
			Msg("Dropping outbox entry")
		if rmErr := r.outbox.Remove(ctx, e.ID); rmErr != nil {
			logging.Error().Err(rmErr).Str("entry_id", e.ID).Msg("Failed to remove outbox entry")
		}
		metrics.OutboxReplayed.WithLabelValues("dropped").Inc()
		return outcomeDropped

	default:
		if upErr := r.outbox.recordAttempt(e, err); upErr != nil {
			logging.Error().Err(upErr).Str("entry_id", e.ID).Msg("Failed to record outbox attempt")
		}
		metrics.OutboxReplayed.WithLabelValues("retry").Inc()
		return outcomeRetry
	}
}

func (r *Replayer) apply(ctx context.Context, e *Entry) error {
	switch {
	case e.Rating != nil:
		rating, _, err := r.remote.UpsertRating(ctx, *e.Rating)
		if err != nil {
			return err
		}
		r.cache(ctx, e.Rating.PlaylistID, &rating, nil)
		return nil
	case e.Download != nil:
		count, _, err := r.remote.InsertDownload(ctx, *e.Download)
		if err != nil {
			return err
		}
		r.cache(ctx, e.Download.PlaylistID, nil, &count)
		return nil
	default:
		return ErrEmptyEntry
	}
}

// cache failures are logged only; the remote write already landed.
func (r *Replayer) cache(ctx context.Context, id string, rating *float64, downloads *int64) {
	if err := r.local.SetAggregates(ctx, id, rating, downloads); err != nil {
		logging.Warn().Err(err).Str("playlist_id", id).Msg("Failed to cache replayed aggregate")
	}
}

// permanent reports errors a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrRemoteRejected) ||
		errors.Is(err, models.ErrValidationFailed) ||
		errors.Is(err, ErrEmptyEntry)
}

// due reports whether the entry's backoff has elapsed.
func (r *Replayer) due(e *Entry) bool {
	if e.LastAttemptAt.IsZero() {
		return true
	}
	return r.now().Sub(e.LastAttemptAt) >= backoff(r.interval, e.Attempts)
}

// backoff is base * 2^(attempts-1), capped at five minutes.
func backoff(base time.Duration, attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	if attempts > 30 {
		return maxBackoff
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempts-1)))
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

var _ fmt.Stringer = (*Replayer)(nil)
