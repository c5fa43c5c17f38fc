// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package localstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/models"
)

// createTestStore opens an in-memory store closed at test end.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.LocalConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(id, code string) *models.SharedPlaylist {
	return &models.SharedPlaylist{
		ID:         id,
		Provenance: models.ProvenanceLocal,
		Name:       "Party Mix " + id,
		ShareCode:  code,
		Clips:      []models.Clip{{MediaRef: "yt:1", DurationMs: 60000}},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestStore_PutGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("local_1", "AB12CD34")
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "local_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != rec.Name || len(got.Clips) != 1 {
		t.Errorf("Get() = %+v", got)
	}

	rec.Name = "Renamed"
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
	got, _ = s.Get(ctx, "local_1")
	if got.Name != "Renamed" {
		t.Errorf("Put should overwrite, got name %q", got.Name)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, &models.SharedPlaylist{}); !errors.Is(err, models.ErrValidationFailed) {
		t.Errorf("Put without id error = %v, want validation failure", err)
	}
}

func TestStore_GetAllAndByCode(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("local_%d", i), fmt.Sprintf("CODE000%d", i))
		rec.CreatedAt = time.Date(2026, 1, 1, i, 0, 0, 0, time.UTC)
		if err := s.Put(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "local_2" {
		t.Errorf("GetAll() should return 3 records newest first, got %d (first %s)", len(all), all[0].ID)
	}

	got, err := s.GetByCode(ctx, "CODE0001")
	if err != nil || got.ID != "local_1" {
		t.Errorf("GetByCode() = %v, %v", got, err)
	}
	if _, err := s.GetByCode(ctx, "ZZZZZZZZ"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetByCode(unknown) error = %v", err)
	}
}

func TestStore_CorruptValueIsDiscarded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testRecord("local_ok", "AAAAAAAA")); err != nil {
		t.Fatal(err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sharedPrefix+"local_bad"), []byte("{not json"))
	}); err != nil {
		t.Fatal(err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 1 || all[0].ID != "local_ok" {
		t.Errorf("GetAll() = %d records, want only the valid one", len(all))
	}

	// The corrupt key is gone after the read.
	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(sharedPrefix + "local_bad"))
		return err
	})
	if !errors.Is(err, badger.ErrKeyNotFound) {
		t.Errorf("corrupt key should have been purged, got %v", err)
	}
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, testRecord("local_1", "AB12CD34")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "local_1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "local_1"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "local_1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("record should be gone, got %v", err)
	}
}

func TestStore_DeleteCascade(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_ = s.Put(ctx, testRecord("p1", "AB12CD34"))
	_ = s.Put(ctx, testRecord("p10", "AB12CD35"))
	_, _ = s.UpsertRating(ctx, models.RatingEntry{PlaylistID: "p1", RaterID: "u1", Value: 4}, true)
	_, _ = s.UpsertRating(ctx, models.RatingEntry{PlaylistID: "p10", RaterID: "u1", Value: 2}, true)
	_, _, _ = s.InsertDownload(ctx, models.DownloadReceipt{PlaylistID: "p1", DownloaderID: "u1"}, true)

	if err := s.DeleteCascade(ctx, "p1"); err != nil {
		t.Fatalf("DeleteCascade() error = %v", err)
	}

	if entries, _ := s.Ratings(ctx, "p1"); len(entries) != 0 {
		t.Errorf("ratings for p1 should be gone, got %d", len(entries))
	}
	if got, _ := s.Downloads(ctx, "p1"); len(got) != 0 {
		t.Errorf("downloads for p1 should be gone, got %d", len(got))
	}
	// A record whose id shares a prefix must be untouched.
	if entries, _ := s.Ratings(ctx, "p10"); len(entries) != 1 {
		t.Errorf("ratings for p10 = %d, want 1", len(entries))
	}
}

func TestStore_FindByOrigin(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("local_1", "AB12CD34")
	rec.CreatorID = "user-1"
	rec.OriginalLocalID = "lib-1"
	_ = s.Put(ctx, rec)

	got, err := s.FindByOrigin(ctx, "user-1", "lib-1")
	if err != nil || got.ID != "local_1" {
		t.Errorf("FindByOrigin() = %v, %v", got, err)
	}
	if _, err := s.FindByOrigin(ctx, "user-2", "lib-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("other creator should miss, got %v", err)
	}
	if _, err := s.FindByOrigin(ctx, "user-1", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("empty origin should miss, got %v", err)
	}

	mine, err := s.ListByCreator(ctx, "user-1")
	if err != nil || len(mine) != 1 {
		t.Errorf("ListByCreator() = %d, %v", len(mine), err)
	}
}

func TestStore_ReplaceID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("local_1", "AB12CD34")
	_ = s.Put(ctx, rec)
	_, _ = s.UpsertRating(ctx, models.RatingEntry{PlaylistID: "local_1", RaterID: "u1", Value: 5}, true)
	_, _, _ = s.InsertDownload(ctx, models.DownloadReceipt{PlaylistID: "local_1", DownloaderID: "u1"}, true)

	remote := rec.Clone()
	remote.ID = "remote-9"
	remote.Provenance = models.ProvenanceRemote
	if err := s.ReplaceID(ctx, "local_1", remote); err != nil {
		t.Fatalf("ReplaceID() error = %v", err)
	}

	if _, err := s.Get(ctx, "local_1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("old id should be gone, got %v", err)
	}
	got, err := s.Get(ctx, "remote-9")
	if err != nil || got.Provenance != models.ProvenanceRemote {
		t.Fatalf("Get(remote-9) = %+v, %v", got, err)
	}
	all, _ := s.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("record should exist under exactly one id, found %d", len(all))
	}

	entries, _ := s.Ratings(ctx, "remote-9")
	if len(entries) != 1 || entries[0].PlaylistID != "remote-9" {
		t.Errorf("ratings should follow the record: %+v", entries)
	}
	if got, _ := s.Downloads(ctx, "remote-9"); len(got) != 1 || got[0].PlaylistID != "remote-9" {
		t.Errorf("downloads should follow the record: %+v", got)
	}
}

func TestStore_UpsertRating(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_ = s.Put(ctx, testRecord("p1", "AB12CD34"))

	steps := []struct {
		rater string
		value int
		want  float64
		count int
	}{
		{"u1", 5, 5.0, 1},
		{"u1", 3, 3.0, 1}, // replaces, does not append
		{"u2", 4, 3.5, 2},
	}
	for _, st := range steps {
		agg, err := s.UpsertRating(ctx, models.RatingEntry{PlaylistID: "p1", RaterID: st.rater, Value: st.value}, true)
		if err != nil {
			t.Fatalf("UpsertRating() error = %v", err)
		}
		if agg.Rating != st.want || agg.Count != st.count {
			t.Errorf("after %s=%d aggregate = %+v, want %v/%d", st.rater, st.value, agg, st.want, st.count)
		}
	}

	rec, _ := s.Get(ctx, "p1")
	if rec.Rating != 3.5 {
		t.Errorf("record rating = %v, want 3.5", rec.Rating)
	}
}

func TestStore_UpsertRatingWithoutWriteBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := testRecord("p1", "AB12CD34")
	rec.Rating = 4.2
	_ = s.Put(ctx, rec)

	if _, err := s.UpsertRating(ctx, models.RatingEntry{PlaylistID: "p1", RaterID: "u1", Value: 1}, false); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Get(ctx, "p1")
	if got.Rating != 4.2 {
		t.Errorf("rating should be untouched without write-back, got %v", got.Rating)
	}
}

func TestStore_InsertDownloadDedup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_ = s.Put(ctx, testRecord("p1", "AB12CD34"))

	r := models.DownloadReceipt{PlaylistID: "p1", DownloaderID: "u1", DownloadedAt: time.Now()}
	count, inserted, err := s.InsertDownload(ctx, r, true)
	if err != nil || !inserted || count != 1 {
		t.Fatalf("first InsertDownload() = %d, %v, %v", count, inserted, err)
	}
	count, inserted, err = s.InsertDownload(ctx, r, true)
	if err != nil || inserted || count != 1 {
		t.Fatalf("repeat InsertDownload() = %d, %v, %v", count, inserted, err)
	}

	rec, _ := s.Get(ctx, "p1")
	if rec.DownloadCount != 1 {
		t.Errorf("DownloadCount = %d, want 1", rec.DownloadCount)
	}
}

func TestStore_ConcurrentDownloads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_ = s.Put(ctx, testRecord("p1", "AB12CD34"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := models.DownloadReceipt{PlaylistID: "p1", DownloaderID: fmt.Sprintf("u%d", i%10)}
			if _, _, err := s.InsertDownload(ctx, r, true); err != nil {
				t.Errorf("InsertDownload() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	receipts, _ := s.Downloads(ctx, "p1")
	if len(receipts) != 10 {
		t.Errorf("Downloads() = %d, want 10 distinct downloaders", len(receipts))
	}
	rec, _ := s.Get(ctx, "p1")
	if rec.DownloadCount != 10 {
		t.Errorf("cached DownloadCount = %d, want 10", rec.DownloadCount)
	}
}

func TestStore_SetAggregates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_ = s.Put(ctx, testRecord("p1", "AB12CD34"))

	rating := 4.5
	if err := s.SetAggregates(ctx, "p1", &rating, nil); err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Get(ctx, "p1")
	if rec.Rating != 4.5 || rec.DownloadCount != 0 {
		t.Errorf("SetAggregates() left %+v", rec)
	}
	if err := s.SetAggregates(ctx, "missing", &rating, nil); err != nil {
		t.Errorf("missing record should be ignored, got %v", err)
	}
}

func TestStore_Profile(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Profile(ctx); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Profile() on empty store error = %v", err)
	}

	calls := 0
	mk := func() *models.UserProfile {
		calls++
		return &models.UserProfile{ID: "local_profile", DisplayName: "Player"}
	}
	p, created, err := s.EnsureProfile(ctx, mk)
	if err != nil || !created || p.ID != "local_profile" {
		t.Fatalf("EnsureProfile() = %+v, %v, %v", p, created, err)
	}
	p, created, err = s.EnsureProfile(ctx, mk)
	if err != nil || created || p.ID != "local_profile" {
		t.Fatalf("second EnsureProfile() = %+v, %v, %v", p, created, err)
	}
	if calls != 1 {
		t.Errorf("profile factory called %d times, want 1", calls)
	}
}

func TestStore_LibraryAndAttachments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	p := &models.Playlist{ID: "lib-1", Name: "Mine", CreatedAt: time.Now()}
	if err := s.PutPlaylist(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetPlaylist(ctx, "lib-1")
	if err != nil || got.Name != "Mine" {
		t.Errorf("GetPlaylist() = %+v, %v", got, err)
	}
	list, _ := s.Playlists(ctx)
	if len(list) != 1 {
		t.Errorf("Playlists() = %d, want 1", len(list))
	}

	has, err := s.HasAttachment(ctx, "img1")
	if err != nil || has {
		t.Errorf("HasAttachment before put = %v, %v", has, err)
	}
	_ = s.PutAttachment(ctx, models.Attachment{ID: "img1", Kind: models.AttachmentImage})
	if has, _ := s.HasAttachment(ctx, "img1"); !has {
		t.Error("HasAttachment after put should be true")
	}
}

func TestStore_DurableAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "local")
	ctx := context.Background()

	s, err := Open(config.LocalConfig{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, testRecord("local_1", "AB12CD34")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(config.LocalConfig{Path: dir, SyncWrites: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.GetByCode(ctx, "AB12CD34"); err != nil {
		t.Errorf("record should survive reopen: %v", err)
	}
}
