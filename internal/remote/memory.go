// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package remote

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/powerhour/internal/models"
)

// ErrSimulatedOutage is returned by a MemoryStore switched offline.
var ErrSimulatedOutage = errors.New("remote store offline")

// MemoryStore is an in-process Store with the same constraints as the
// Postgres schema. It backs tests and the server's demo mode.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[string]*models.SharedPlaylist
	ratings   map[string]map[string]models.RatingEntry
	downloads map[string]map[string]time.Time
	offline   bool
	calls     map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]*models.SharedPlaylist),
		ratings:   make(map[string]map[string]models.RatingEntry),
		downloads: make(map[string]map[string]time.Time),
		calls:     make(map[string]int),
	}
}

// SetOffline makes every call fail with ErrSimulatedOutage until reset.
func (m *MemoryStore) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Calls returns how many times op was invoked.
func (m *MemoryStore) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Len returns the number of records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Seed inserts rec as-is, keeping its ID and timestamps.
func (m *MemoryStore) Seed(rec *models.SharedPlaylist) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := rec.Clone()
	c.Provenance = models.ProvenanceRemote
	m.records[c.ID] = c
}

// enter locks the store and records the call. Callers must unlock.
func (m *MemoryStore) enter(op string) error {
	m.mu.Lock()
	m.calls[op]++
	if m.offline {
		return ErrSimulatedOutage
	}
	return nil
}

func (m *MemoryStore) Create(_ context.Context, rec *models.SharedPlaylist) (string, error) {
	defer m.mu.Unlock()
	if err := m.enter("create"); err != nil {
		return "", err
	}
	if rec.Name == "" {
		return "", &models.ValidationError{Field: "name", Reason: "is required"}
	}
	for _, r := range m.records {
		if r.ShareCode == rec.ShareCode {
			return "", ErrShareCodeTaken
		}
		if rec.CreatorID != "" && rec.OriginalLocalID != "" &&
			r.CreatorID == rec.CreatorID && r.OriginalLocalID == rec.OriginalLocalID {
			return "", ErrOriginExists
		}
	}

	c := rec.Clone()
	c.ID = uuid.NewString()
	c.Provenance = models.ProvenanceRemote
	c.Rating = 0
	c.DownloadCount = 0
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Version < 1 {
		c.Version = 1
	}
	if c.Source == "" {
		c.Source = models.SourceShare
	}
	m.records[c.ID] = c
	return c.ID, nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, id, creatorID string, patch Patch) (bool, error) {
	defer m.mu.Unlock()
	if err := m.enter("update"); err != nil {
		return false, err
	}
	r, ok := m.records[id]
	if !ok || creatorID == "" || r.CreatorID != creatorID {
		return false, nil
	}
	patch.Apply(r)
	r.UpdatedAt = time.Now().UTC()
	if patch.touchesContent() {
		r.Version++
	}
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, id, creatorID string) (bool, error) {
	defer m.mu.Unlock()
	if err := m.enter("delete"); err != nil {
		return false, err
	}
	r, ok := m.records[id]
	if !ok || creatorID == "" || r.CreatorID != creatorID {
		return false, nil
	}
	delete(m.records, id)
	delete(m.ratings, id)
	delete(m.downloads, id)
	return true, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*models.SharedPlaylist, error) {
	defer m.mu.Unlock()
	if err := m.enter("get_by_id"); err != nil {
		return nil, err
	}
	r, ok := m.records[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryStore) GetByShareCode(_ context.Context, code string) (*models.SharedPlaylist, error) {
	defer m.mu.Unlock()
	if err := m.enter("get_by_code"); err != nil {
		return nil, err
	}
	var found *models.SharedPlaylist
	for _, r := range m.records {
		if r.ShareCode != code {
			continue
		}
		if found == nil || (r.IsPublic && !found.IsPublic) {
			found = r
		}
	}
	if found == nil {
		return nil, models.ErrNotFound
	}
	return found.Clone(), nil
}

func (m *MemoryStore) QueryByCategory(_ context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error) {
	defer m.mu.Unlock()
	if err := m.enter("query_category"); err != nil {
		return nil, err
	}
	return cloneAll(models.ApplyCategory(m.snapshot(), category, limit)), nil
}

func (m *MemoryStore) QueryByCreator(_ context.Context, creatorID string) ([]*models.SharedPlaylist, error) {
	defer m.mu.Unlock()
	if err := m.enter("query_creator"); err != nil {
		return nil, err
	}
	var out []*models.SharedPlaylist
	for _, r := range m.snapshot() {
		if creatorID != "" && r.CreatorID == creatorID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *MemoryStore) FindByOrigin(_ context.Context, creatorID, originalLocalID string) (*models.SharedPlaylist, error) {
	defer m.mu.Unlock()
	if err := m.enter("find_origin"); err != nil {
		return nil, err
	}
	if creatorID == "" || originalLocalID == "" {
		return nil, models.ErrNotFound
	}
	for _, r := range m.records {
		if r.CreatorID == creatorID && r.OriginalLocalID == originalLocalID {
			return r.Clone(), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) ShareCodeExists(_ context.Context, code string) (bool, error) {
	defer m.mu.Unlock()
	if err := m.enter("code_exists"); err != nil {
		return false, err
	}
	for _, r := range m.records {
		if r.ShareCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) UpsertRating(_ context.Context, entry models.RatingEntry) (float64, int, error) {
	defer m.mu.Unlock()
	if err := m.enter("rate"); err != nil {
		return 0, 0, err
	}
	r, ok := m.records[entry.PlaylistID]
	if !ok {
		return 0, 0, models.ErrNotFound
	}
	if entry.Value < models.MinRatingValue || entry.Value > models.MaxRatingValue {
		return 0, 0, &models.ValidationError{Field: "value", Reason: "must be between 1 and 5"}
	}
	byRater := m.ratings[entry.PlaylistID]
	if byRater == nil {
		byRater = make(map[string]models.RatingEntry)
		m.ratings[entry.PlaylistID] = byRater
	}
	byRater[entry.RaterID] = entry

	entries := make([]models.RatingEntry, 0, len(byRater))
	for _, e := range byRater {
		entries = append(entries, e)
	}
	r.Rating = models.MeanRating(entries)
	return r.Rating, len(entries), nil
}

func (m *MemoryStore) InsertDownload(_ context.Context, receipt models.DownloadReceipt) (int64, bool, error) {
	defer m.mu.Unlock()
	if err := m.enter("download"); err != nil {
		return 0, false, err
	}
	r, ok := m.records[receipt.PlaylistID]
	if !ok {
		return 0, false, models.ErrNotFound
	}
	byUser := m.downloads[receipt.PlaylistID]
	if byUser == nil {
		byUser = make(map[string]time.Time)
		m.downloads[receipt.PlaylistID] = byUser
	}
	_, seen := byUser[receipt.DownloaderID]
	if !seen {
		byUser[receipt.DownloaderID] = receipt.DownloadedAt
	}
	r.DownloadCount = int64(len(byUser))
	return r.DownloadCount, !seen, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	defer m.mu.Unlock()
	return m.enter("ping")
}

// snapshot returns records newest first. Caller holds mu.
func (m *MemoryStore) snapshot() []*models.SharedPlaylist {
	out := make([]*models.SharedPlaylist, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneAll(in []*models.SharedPlaylist) []*models.SharedPlaylist {
	out := make([]*models.SharedPlaylist, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
