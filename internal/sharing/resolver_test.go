// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package sharing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/powerhour/internal/models"
)

type stubResolver struct {
	tier    string
	records []*models.SharedPlaylist
	err     error
	calls   int
}

func (s *stubResolver) Tier() string { return s.tier }

func (s *stubResolver) ByCode(_ context.Context, code string) (*models.SharedPlaylist, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.records {
		if r.ShareCode == code {
			return r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *stubResolver) ByCategory(_ context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return models.ApplyCategory(s.records, category, limit), nil
}

func (s *stubResolver) ByCreator(_ context.Context, creatorID string) ([]*models.SharedPlaylist, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.SharedPlaylist
	for _, r := range s.records {
		if r.CreatorID == creatorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestFallback_ByCode(t *testing.T) {
	rec := &models.SharedPlaylist{ID: "r1", ShareCode: "AB12CD34", Provenance: models.ProvenanceRemote}
	cached := &models.SharedPlaylist{ID: "l1", ShareCode: "LOCAL123"}

	tests := []struct {
		name       string
		primaryErr error
		available  bool
		code       string
		wantID     string
		wantErr    error
		wantHooked int
	}{
		{"primary hit", nil, true, "AB12CD34", "r1", nil, 1},
		{"primary miss falls back", nil, true, "LOCAL123", "l1", nil, 0},
		{"primary error falls back", errors.New("boom"), true, "LOCAL123", "l1", nil, 0},
		{"primary skipped when unavailable", nil, false, "AB12CD34", "", models.ErrNotFound, 0},
		{"both miss", nil, true, "ZZZZZZZZ", "", models.ErrNotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &stubResolver{tier: "remote", records: []*models.SharedPlaylist{rec}, err: tt.primaryErr}
			secondary := &stubResolver{tier: "local", records: []*models.SharedPlaylist{cached}}
			hooked := 0
			f := &Fallback{
				Primary:      primary,
				Secondary:    secondary,
				Available:    func() bool { return tt.available },
				OnPrimaryHit: func(context.Context, *models.SharedPlaylist) { hooked++ },
			}

			got, err := f.ByCode(context.Background(), tt.code)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ByCode() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil || got.ID != tt.wantID {
				t.Fatalf("ByCode() = %v, %v; want %s", got, err, tt.wantID)
			}
			if hooked != tt.wantHooked {
				t.Errorf("OnPrimaryHit calls = %d, want %d", hooked, tt.wantHooked)
			}
			if !tt.available && primary.calls != 0 {
				t.Errorf("unavailable primary was called %d times", primary.calls)
			}
		})
	}
}

func TestFallback_ListPrefersRemoteCopies(t *testing.T) {
	now := time.Now()
	remoteCopy := &models.SharedPlaylist{ID: "r1", CreatorID: "u1", OriginalLocalID: "lib-1", IsPublic: true,
		Provenance: models.ProvenanceRemote, CreatedAt: now}
	// Same logical playlist cached under a stale local id.
	staleLocal := &models.SharedPlaylist{ID: "local_1", CreatorID: "u1", OriginalLocalID: "lib-1", IsPublic: true,
		Provenance: models.ProvenanceLocal, CreatedAt: now}
	unsynced := &models.SharedPlaylist{ID: "local_2", CreatorID: "u1", OriginalLocalID: "lib-2", IsPublic: true,
		Provenance: models.ProvenanceLocal, CreatedAt: now.Add(-time.Minute)}

	f := &Fallback{
		Primary:   &stubResolver{tier: "remote", records: []*models.SharedPlaylist{remoteCopy}},
		Secondary: &stubResolver{tier: "local", records: []*models.SharedPlaylist{remoteCopy, staleLocal, unsynced}},
	}
	listing, err := f.ByCategory(context.Background(), models.CategoryNew, 10)
	if err != nil {
		t.Fatalf("ByCategory() error = %v", err)
	}
	if len(listing.Playlists) != 2 {
		t.Fatalf("listed %d, want 2", len(listing.Playlists))
	}
	if listing.Playlists[0].ID != "r1" || listing.Playlists[1].ID != "local_2" {
		t.Errorf("listing = %s, %s", listing.Playlists[0].ID, listing.Playlists[1].ID)
	}

	mine, err := f.ByCreator(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ByCreator() error = %v", err)
	}
	if len(mine.Playlists) != 2 || mine.Source != "remote" {
		t.Errorf("ByCreator() = %d from %s", len(mine.Playlists), mine.Source)
	}
}

func TestFallback_LocalErrorIsHard(t *testing.T) {
	f := &Fallback{
		Primary:   &stubResolver{tier: "remote"},
		Secondary: &stubResolver{tier: "local", err: errors.New("disk gone")},
	}
	if _, err := f.ByCategory(context.Background(), models.CategoryNew, 10); err == nil {
		t.Error("ByCategory() error = nil, want local failure")
	}
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	if k.size() != 2 {
		t.Errorf("size = %d, want 2", k.size())
	}

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock(a) acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlockA()
	<-acquired
	<-released
	unlockB()

	if k.size() != 0 {
		t.Errorf("size = %d after unlock, want 0", k.size())
	}
}
