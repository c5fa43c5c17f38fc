// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSharedPlaylist_Ref(t *testing.T) {
	t.Parallel()

	local := &SharedPlaylist{ID: "local_1", Provenance: ProvenanceLocal}
	if ref, ok := local.Ref().(LocalRef); !ok || ref.RecordID() != "local_1" {
		t.Errorf("local record Ref() = %#v, want LocalRef{local_1}", local.Ref())
	}

	remote := &SharedPlaylist{ID: "r-9", OriginalLocalID: "lib-3", Provenance: ProvenanceRemote}
	ref, ok := remote.Ref().(RemoteRef)
	if !ok {
		t.Fatalf("remote record Ref() = %#v, want RemoteRef", remote.Ref())
	}
	if ref.ID != "r-9" || ref.OriginalLocalID != "lib-3" {
		t.Errorf("RemoteRef = %+v", ref)
	}

	unset := &SharedPlaylist{ID: "x"}
	if _, ok := unset.Ref().(LocalRef); !ok {
		t.Error("record without provenance should be treated as local")
	}
}

func TestSharedPlaylist_Attachments(t *testing.T) {
	t.Parallel()

	p := &SharedPlaylist{Clips: []Clip{
		{MediaRef: "a", Attachments: []Attachment{{ID: "img1", Kind: AttachmentImage}, {ID: "snd1", Kind: AttachmentSound}}},
		{MediaRef: "b"},
		{MediaRef: "c", Attachments: []Attachment{{ID: "img1", Kind: AttachmentImage}}},
	}}

	got := p.Attachments()
	if len(got) != 2 {
		t.Fatalf("Attachments() returned %d items, want 2", len(got))
	}
	if got[0].ID != "img1" || got[1].ID != "snd1" {
		t.Errorf("Attachments() order = %v", got)
	}
}

func TestSharedPlaylist_Clone(t *testing.T) {
	t.Parallel()

	orig := &SharedPlaylist{
		ID:    "p1",
		Tags:  []string{"party"},
		Clips: []Clip{{MediaRef: "m", Attachments: []Attachment{{ID: "a"}}}},
	}
	c := orig.Clone()
	c.Tags[0] = "changed"
	c.Clips[0].MediaRef = "changed"
	c.Clips[0].Attachments[0].ID = "changed"

	if orig.Tags[0] != "party" || orig.Clips[0].MediaRef != "m" || orig.Clips[0].Attachments[0].ID != "a" {
		t.Errorf("Clone shares memory with original: %+v", orig)
	}

	var nilP *SharedPlaylist
	if nilP.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestNormalizeTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"trims and drops empty", []string{" rock ", "", "  "}, []string{"rock"}},
		{"case-insensitive dedupe keeps first", []string{"Party", "party", "PARTY", "90s"}, []string{"Party", "90s"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeTags(tt.in)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("NormalizeTags(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMeanRating(t *testing.T) {
	t.Parallel()

	if got := MeanRating(nil); got != 0 {
		t.Errorf("MeanRating(nil) = %v, want 0", got)
	}

	entries := []RatingEntry{{Value: 3}, {Value: 4}}
	if got := MeanRating(entries); got != 3.5 {
		t.Errorf("MeanRating(3,4) = %v, want 3.5", got)
	}

	entries = []RatingEntry{{Value: 5}, {Value: 4}, {Value: 4}}
	if got := MeanRating(entries); got != 4.3 {
		t.Errorf("MeanRating(5,4,4) = %v, want 4.3", got)
	}
}

func TestRoundRating(t *testing.T) {
	t.Parallel()

	cases := map[float64]float64{
		3.0:     3.0,
		3.25:    3.3,
		3.24:    3.2,
		4.66666: 4.7,
		1.05:    1.1,
	}
	for in, want := range cases {
		if got := RoundRating(in); got != want {
			t.Errorf("RoundRating(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	verr := &ValidationError{Field: "name", Reason: "required"}
	if !errors.Is(verr, ErrValidationFailed) {
		t.Error("ValidationError should match ErrValidationFailed")
	}
	wrapped := fmt.Errorf("save: %w", verr)
	if !errors.Is(wrapped, ErrValidationFailed) {
		t.Error("wrapped ValidationError should match ErrValidationFailed")
	}
	var target *ValidationError
	if !errors.As(wrapped, &target) || target.Field != "name" {
		t.Errorf("errors.As did not recover field: %+v", target)
	}

	if !errors.Is(ErrAnonymousIdentity, ErrOwnershipDenied) {
		t.Error("ErrAnonymousIdentity should match ErrOwnershipDenied")
	}
	if errors.Is(ErrNotFound, ErrOwnershipDenied) {
		t.Error("unrelated sentinels must not match")
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"new", CategoryNew, false},
		{"", CategoryNew, false},
		{"Trending", CategoryTrending, false},
		{"highly-rated", CategoryHighlyRated, false},
		{"highly_rated", CategoryHighlyRated, false},
		{"featured", CategoryFeatured, false},
		{"hot", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrValidationFailed) {
			t.Errorf("ParseCategory(%q) error should be a validation error", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApplyCategory(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []*SharedPlaylist{
		{ID: "a", IsPublic: true, Rating: 4.5, DownloadCount: 2, CreatedAt: base},
		{ID: "b", IsPublic: true, Rating: 3.0, DownloadCount: 10, CreatedAt: base.Add(time.Hour)},
		{ID: "c", IsPublic: false, Rating: 5.0, DownloadCount: 50, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", IsPublic: true, Rating: 4.0, IsFeatured: true, CreatedAt: base.Add(3 * time.Hour)},
	}

	ids := func(rs []*SharedPlaylist) string {
		out := ""
		for _, r := range rs {
			out += r.ID
		}
		return out
	}

	if got := ids(ApplyCategory(records, CategoryNew, 0)); got != "dba" {
		t.Errorf("new = %s, want dba", got)
	}
	if got := ids(ApplyCategory(records, CategoryTrending, 0)); got != "bad" {
		t.Errorf("trending = %s, want bad", got)
	}
	if got := ids(ApplyCategory(records, CategoryHighlyRated, 0)); got != "ad" {
		t.Errorf("highly_rated = %s, want ad", got)
	}
	if got := ids(ApplyCategory(records, CategoryFeatured, 0)); got != "d" {
		t.Errorf("featured = %s, want d", got)
	}
	if got := ids(ApplyCategory(records, CategoryNew, 1)); got != "d" {
		t.Errorf("limit 1 = %s, want d", got)
	}
}

func TestDedupeByID(t *testing.T) {
	t.Parallel()

	in := []*SharedPlaylist{{ID: "a", Name: "first"}, {ID: "b"}, {ID: "a", Name: "second"}}
	out := DedupeByID(in)
	if len(out) != 2 || out[0].Name != "first" {
		t.Errorf("DedupeByID = %+v", out)
	}
}

func TestMigrationReport_Add(t *testing.T) {
	t.Parallel()

	var r MigrationReport
	r.Add(MigrationItem{LocalID: "1", Outcome: MigrationMigrated})
	r.Add(MigrationItem{LocalID: "2", Outcome: MigrationFailed})
	r.Add(MigrationItem{LocalID: "3", Outcome: MigrationSkipped})
	r.Add(MigrationItem{LocalID: "4", Outcome: MigrationMigrated})

	if r.Migrated != 2 || r.Failed != 1 || r.Skipped != 1 || len(r.Items) != 4 {
		t.Errorf("report = %+v", r)
	}
}
