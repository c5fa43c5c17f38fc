// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/metrics"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisPublisher_Publish(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "powerhour.test")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := NewRedisPublisher(rdb, "powerhour.test")
	rating := 3.5
	if err := p.Publish(ctx, Event{Type: PlaylistRated, PlaylistID: "r-1", Rating: &rating}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if ev.Type != PlaylistRated || ev.PlaylistID != "r-1" || ev.Rating == nil || *ev.Rating != 3.5 {
			t.Errorf("received %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("At should be stamped on publish")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()

	p := NewRedisPublisher(rdb, "powerhour.test")
	if err := p.Publish(context.Background(), Event{Type: PlaylistShared}); err == nil {
		t.Error("Publish() should fail with redis down")
	}
}

type failing struct{}

func (failing) Publish(context.Context, Event) error { return errors.New("boom") }

func TestEmitCountsOutcome(t *testing.T) {
	okBefore := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(string(PlaylistDeleted), "ok"))
	errBefore := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(string(PlaylistDeleted), "error"))

	Emit(context.Background(), Nop{}, Event{Type: PlaylistDeleted})
	Emit(context.Background(), failing{}, Event{Type: PlaylistDeleted})
	Emit(context.Background(), nil, Event{Type: PlaylistDeleted})

	if got := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(string(PlaylistDeleted), "ok")); got != okBefore+1 {
		t.Errorf("ok count = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(metrics.EventsPublished.WithLabelValues(string(PlaylistDeleted), "error")); got != errBefore+1 {
		t.Errorf("error count = %v, want %v", got, errBefore+1)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(config.EventsConfig{}).(Nop); !ok {
		t.Error("disabled events should yield Nop")
	}
	p, ok := New(config.EventsConfig{Enabled: true, RedisAddr: "localhost:0", Channel: "c"}).(*RedisPublisher)
	if !ok {
		t.Fatal("enabled events should yield RedisPublisher")
	}
	_ = p.Close()
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(1)
	_ = r.Publish(context.Background(), Event{Type: PlaylistShared})
	_ = r.Publish(context.Background(), Event{Type: PlaylistUpdated})
	got := r.Drain()
	if len(got) != 1 || got[0].Type != PlaylistShared {
		t.Errorf("Drain() = %+v", got)
	}
}
