// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package events publishes shared-playlist change notifications so other
// devices and services can refresh listings. Delivery is best effort: a
// failed publish is logged and counted but never fails the operation that
// caused it.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/metrics"
)

// Type names a change.
type Type string

const (
	PlaylistShared     Type = "playlist.shared"
	PlaylistUpdated    Type = "playlist.updated"
	PlaylistUnlisted   Type = "playlist.unlisted"
	PlaylistDeleted    Type = "playlist.deleted"
	PlaylistRated      Type = "playlist.rated"
	PlaylistDownloaded Type = "playlist.downloaded"
)

// Event is one change notification.
type Event struct {
	Type          Type      `json:"type"`
	PlaylistID    string    `json:"playlist_id"`
	ShareCode     string    `json:"share_code,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	Rating        *float64  `json:"rating,omitempty"`
	DownloadCount *int64    `json:"download_count,omitempty"`
	At            time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// RedisPublisher publishes JSON events on a redis pub/sub channel.
type RedisPublisher struct {
	rdb     redis.UniversalClient
	channel string
}

// NewRedisPublisher returns a publisher on channel.
func NewRedisPublisher(rdb redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// New builds the configured publisher. Disabled events yield Nop.
func New(cfg config.EventsConfig) Publisher {
	if !cfg.Enabled {
		return Nop{}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return NewRedisPublisher(rdb, cfg.Channel)
}

// Emit publishes ev and swallows the error after logging and counting it.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(string(ev.Type), "error").Inc()
		logging.Ctx(ctx).Warn().Err(err).
			Str("event", string(ev.Type)).
			Str("playlist_id", ev.PlaylistID).
			Msg("Failed to publish change event")
		return
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type), "ok").Inc()
}

// Recorder keeps published events in memory. Tests use it to assert on
// emitted notifications.
type Recorder struct {
	ch chan Event
}

// NewRecorder buffers up to size events; further events are dropped.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	select {
	case r.ch <- ev:
	default:
	}
	return nil
}

// Drain returns every buffered event.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-r.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
