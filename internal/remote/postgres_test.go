// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package remote

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/powerhour/internal/models"
)

var recordColumns = []string{
	"id", "original_playlist_id", "name", "description", "tags", "clips",
	"creator_id", "creator_display_name", "share_code", "is_public",
	"is_featured", "source", "rating", "download_count", "created_at", "updated_at", "version",
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresStore(mock)
}

func TestPostgresStore_Create(t *testing.T) {
	mock, store := newMockStore(t)

	rec := &models.SharedPlaylist{
		OriginalLocalID:    "lib-1",
		Name:               "Party Mix",
		Tags:               []string{"party"},
		Clips:              []models.Clip{{MediaRef: "song-a", DurationMs: 60000}},
		CreatorID:          "user-1",
		CreatorDisplayName: "Ann",
		ShareCode:          "AB12CD34",
		IsPublic:           true,
	}

	mock.ExpectQuery("INSERT INTO shared_playlists").
		WithArgs("lib-1", "Party Mix", "", []string{"party"}, pgxmock.AnyArg(),
			"user-1", "Ann", "AB12CD34", true, false, "share", pgxmock.AnyArg(), pgxmock.AnyArg(), 1).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("r-1"))

	id, err := store.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "r-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateConflicts(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"share code", shareCodeConstraint, ErrShareCodeTaken},
		{"origin", originConstraint, ErrOriginExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, store := newMockStore(t)
			mock.ExpectQuery("INSERT INTO shared_playlists").
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			_, err := store.Create(context.Background(), &models.SharedPlaylist{Name: "x", ShareCode: "AB12CD34"})
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, models.ErrRemoteRejected)
		})
	}
}

func TestPostgresStore_GetByShareCode(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("(?s)SELECT .* FROM shared_playlists\\s+WHERE share_code = \\$1").
		WithArgs("AB12CD34").
		WillReturnRows(pgxmock.NewRows(recordColumns).AddRow(
			"r-1", "lib-1", "Party Mix", "Friday night", []string{"party"},
			[]byte(`[{"media_ref":"a","start_ms":0,"duration_ms":60000},{"media_ref":"b","start_ms":1000,"duration_ms":60000},{"media_ref":"c","start_ms":0,"duration_ms":60000}]`),
			"user-1", "Ann", "AB12CD34", true,
			false, "share", 4.5, int64(3), now, now, 2,
		))

	rec, err := store.GetByShareCode(context.Background(), "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, "r-1", rec.ID)
	assert.Equal(t, models.ProvenanceRemote, rec.Provenance)
	assert.Equal(t, models.RemoteRef{ID: "r-1", OriginalLocalID: "lib-1"}, rec.Ref())
	assert.Len(t, rec.Clips, 3)
	assert.Equal(t, "b", rec.Clips[1].MediaRef)
	assert.Equal(t, 4.5, rec.Rating)
	assert.Equal(t, int64(3), rec.DownloadCount)
	assert.Equal(t, models.SourceShare, rec.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByIDMissing(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("(?s)SELECT .* FROM shared_playlists WHERE id = \\$1").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgresStore_UpdateFields(t *testing.T) {
	t.Run("content change bumps version", func(t *testing.T) {
		mock, store := newMockStore(t)
		name := "Renamed"
		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE shared_playlists SET name = $1, updated_at = now(), version = version + 1 WHERE id = $2 AND creator_id = $3")).
			WithArgs("Renamed", "r-1", "user-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		ok, err := store.UpdateFields(context.Background(), "r-1", "user-1", Patch{Name: &name})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("visibility only", func(t *testing.T) {
		mock, store := newMockStore(t)
		public := false
		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE shared_playlists SET is_public = $1, updated_at = now() WHERE id = $2 AND creator_id = $3")).
			WithArgs(false, "r-1", "user-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		ok, err := store.UpdateFields(context.Background(), "r-1", "user-1", Patch{IsPublic: &public})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("other creator matches nothing", func(t *testing.T) {
		mock, store := newMockStore(t)
		name := "Hijack"
		mock.ExpectExec("UPDATE shared_playlists").
			WithArgs("Hijack", "r-1", "intruder").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		ok, err := store.UpdateFields(context.Background(), "r-1", "intruder", Patch{Name: &name})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty creator never touches the database", func(t *testing.T) {
		mock, store := newMockStore(t)
		name := "x"
		ok, err := store.UpdateFields(context.Background(), "r-1", "", Patch{Name: &name})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_Delete(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectExec("DELETE FROM shared_playlists").
		WithArgs("r-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ok, err := store.Delete(context.Background(), "r-1", "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgresStore_QueryByCategory(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("WHERE is_public = true ORDER BY download_count DESC").
		WithArgs(models.DefaultListLimit).
		WillReturnRows(pgxmock.NewRows(recordColumns).
			AddRow("r-2", "", "Hot", "", []string{}, []byte(`[]`), "", "", "ZZ99YY88", true,
				false, "share", 0.0, int64(9), now, now, 1).
			AddRow("r-1", "", "Warm", "", []string{}, []byte(`[]`), "", "", "AB12CD34", true,
				false, "migration", 0.0, int64(2), now, now, 1))

	recs, err := store.QueryByCategory(context.Background(), models.CategoryTrending, 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r-2", recs[0].ID)
	assert.Equal(t, models.SourceMigration, recs[1].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRating(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM shared_playlists WHERE id = \\$1 FOR UPDATE").
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("r-1"))
	mock.ExpectExec("INSERT INTO playlist_ratings").
		WithArgs("r-1", "user-2", 4, "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE shared_playlists").
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows([]string{"rating", "count"}).AddRow(3.5, int64(2)))
	mock.ExpectCommit()

	rating, count, err := store.UpsertRating(context.Background(), models.RatingEntry{
		PlaylistID: "r-1", RaterID: "user-2", Value: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 3.5, rating)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertRatingMissingRecord(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM shared_playlists").
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := store.UpsertRating(context.Background(), models.RatingEntry{PlaylistID: "gone", RaterID: "u", Value: 3})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDownloadDuplicate(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM shared_playlists").
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("r-1"))
	mock.ExpectExec("INSERT INTO playlist_downloads").
		WithArgs("r-1", "user-3", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("UPDATE shared_playlists").
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows([]string{"download_count"}).AddRow(int64(3)))
	mock.ExpectCommit()

	count, inserted, err := store.InsertDownload(context.Background(), models.DownloadReceipt{
		PlaylistID: "r-1", DownloaderID: "user-3",
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	assert.Nil(t, mapError(nil))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), models.ErrNotFound)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23503"}), models.ErrNotFound)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "23514", Message: "tags_max"}), models.ErrRemoteRejected)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: "22001"}), models.ErrRemoteRejected)
	assert.Same(t, other, mapError(other))
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/ph", migrateURL("postgres://u:p@db:5432/ph"))
	assert.Equal(t, "pgx5://db/ph", migrateURL("postgresql://db/ph"))
	assert.Equal(t, "pgx5://db/ph", migrateURL("pgx5://db/ph"))
}
