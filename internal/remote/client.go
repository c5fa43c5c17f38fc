// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package remote

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
	"github.com/tomtom215/powerhour/internal/models"
)

const breakerName = "remote-store"

// Tier is what the sync layer consumes: a Store plus the capability probe
// callers consult before every call.
type Tier interface {
	Store
	IsAvailable() bool
}

// Client guards a Store with a circuit breaker and per-call timeout.
//
// Every error it returns is either nil, part of the models error taxonomy,
// or wraps models.ErrRemoteUnavailable. Transport failures, timeouts and an
// open circuit all surface as ErrRemoteUnavailable.
//
// The breaker runs on wall-clock time. Tests that need an open circuit use
// a short OpenTimeout rather than faking time.
type Client struct {
	store     Store
	cb        *gobreaker.CircuitBreaker[any]
	timeout   time.Duration
	reachable atomic.Bool
}

// NewClient wraps store. A nil store yields a client that is never available.
func NewClient(store Store, cfg config.RemoteConfig) *Client {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.6
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	c := &Client{store: store, timeout: timeout}
	c.reachable.Store(store != nil)
	c.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= ratio {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening remote store circuit")
				return true
			}
			return false
		},

		// Misses and rejected writes mean the remote answered.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, models.ErrNotFound) ||
				errors.Is(err, models.ErrRemoteRejected) ||
				errors.Is(err, models.ErrValidationFailed)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			metrics.SetRemoteAvailable(to != gobreaker.StateOpen && c.reachable.Load())
		},
	})
	metrics.SetRemoteAvailable(c.IsAvailable())
	return c
}

// Disabled returns a client for installations without a remote store.
func Disabled() *Client {
	return NewClient(nil, config.RemoteConfig{})
}

// IsAvailable reports whether a remote call is worth attempting: a store is
// configured, the last probe succeeded and the circuit is not open.
func (c *Client) IsAvailable() bool {
	return c.store != nil && c.reachable.Load() && c.cb.State() != gobreaker.StateOpen
}

// Configured reports whether a store is attached at all.
func (c *Client) Configured() bool {
	return c.store != nil
}

// State returns the breaker state name.
func (c *Client) State() string {
	return stateToString(c.cb.State())
}

// Probe pings the store outside the breaker and updates reachability.
func (c *Client) Probe(ctx context.Context) error {
	if c.store == nil {
		return models.ErrRemoteUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.store.Ping(ctx)
	metrics.RecordRemoteCall("ping", time.Since(start), err)

	was := c.reachable.Swap(err == nil)
	if was != (err == nil) {
		if err != nil {
			logging.Warn().Err(err).Msg("Remote store unreachable")
		} else {
			logging.Info().Msg("Remote store reachable again")
		}
	}
	metrics.SetRemoteAvailable(c.IsAvailable())
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	return nil
}

// do runs fn through the breaker with the client's timeout.
func do[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !c.IsAvailable() {
		metrics.RecordRemoteCall(op, 0, models.ErrRemoteUnavailable)
		return zero, models.ErrRemoteUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err := c.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	err = classify(err)
	metrics.RecordRemoteCall(op, time.Since(start), err)
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok && result != nil {
		return zero, fmt.Errorf("remote %s: unexpected result type %T", op, result)
	}
	return typed, nil
}

// classify maps anything outside the taxonomy to ErrRemoteUnavailable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: circuit %v", models.ErrRemoteUnavailable, err)
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrRemoteRejected),
		errors.Is(err, models.ErrValidationFailed),
		errors.Is(err, models.ErrRemoteUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
}

type ratingResult struct {
	rating float64
	count  int
}

type downloadResult struct {
	count    int64
	inserted bool
}

func (c *Client) Create(ctx context.Context, rec *models.SharedPlaylist) (string, error) {
	return do(ctx, c, "create", func(ctx context.Context) (string, error) {
		return c.store.Create(ctx, rec)
	})
}

func (c *Client) UpdateFields(ctx context.Context, id, creatorID string, patch Patch) (bool, error) {
	return do(ctx, c, "update", func(ctx context.Context) (bool, error) {
		return c.store.UpdateFields(ctx, id, creatorID, patch)
	})
}

func (c *Client) Delete(ctx context.Context, id, creatorID string) (bool, error) {
	return do(ctx, c, "delete", func(ctx context.Context) (bool, error) {
		return c.store.Delete(ctx, id, creatorID)
	})
}

func (c *Client) GetByID(ctx context.Context, id string) (*models.SharedPlaylist, error) {
	return do(ctx, c, "get_by_id", func(ctx context.Context) (*models.SharedPlaylist, error) {
		return c.store.GetByID(ctx, id)
	})
}

func (c *Client) GetByShareCode(ctx context.Context, code string) (*models.SharedPlaylist, error) {
	return do(ctx, c, "get_by_code", func(ctx context.Context) (*models.SharedPlaylist, error) {
		return c.store.GetByShareCode(ctx, code)
	})
}

func (c *Client) QueryByCategory(ctx context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error) {
	return do(ctx, c, "query_category", func(ctx context.Context) ([]*models.SharedPlaylist, error) {
		return c.store.QueryByCategory(ctx, category, limit)
	})
}

func (c *Client) QueryByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error) {
	return do(ctx, c, "query_creator", func(ctx context.Context) ([]*models.SharedPlaylist, error) {
		return c.store.QueryByCreator(ctx, creatorID)
	})
}

func (c *Client) FindByOrigin(ctx context.Context, creatorID, originalLocalID string) (*models.SharedPlaylist, error) {
	return do(ctx, c, "find_origin", func(ctx context.Context) (*models.SharedPlaylist, error) {
		return c.store.FindByOrigin(ctx, creatorID, originalLocalID)
	})
}

func (c *Client) ShareCodeExists(ctx context.Context, code string) (bool, error) {
	return do(ctx, c, "code_exists", func(ctx context.Context) (bool, error) {
		return c.store.ShareCodeExists(ctx, code)
	})
}

func (c *Client) UpsertRating(ctx context.Context, entry models.RatingEntry) (float64, int, error) {
	r, err := do(ctx, c, "rate", func(ctx context.Context) (ratingResult, error) {
		rating, count, err := c.store.UpsertRating(ctx, entry)
		return ratingResult{rating, count}, err
	})
	return r.rating, r.count, err
}

func (c *Client) InsertDownload(ctx context.Context, receipt models.DownloadReceipt) (int64, bool, error) {
	r, err := do(ctx, c, "download", func(ctx context.Context) (downloadResult, error) {
		count, inserted, err := c.store.InsertDownload(ctx, receipt)
		return downloadResult{count, inserted}, err
	})
	return r.count, r.inserted, err
}

// Ping goes through the breaker, unlike Probe.
func (c *Client) Ping(ctx context.Context) error {
	_, err := do(ctx, c, "ping", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.Ping(ctx)
	})
	return err
}

var _ Tier = (*Client)(nil)

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
