// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/models"
)

// DB is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// NewPool opens a connection pool for cfg.DSN.
func NewPool(ctx context.Context, cfg config.RemoteConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse remote dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// Constraint names from the schema migration.
const (
	shareCodeConstraint = "shared_playlists_share_code_key"
	originConstraint    = "shared_playlists_origin_key"
)

const selectColumns = `id, COALESCE(original_playlist_id, ''), name, description, tags, clips,
	COALESCE(creator_id, ''), creator_display_name, share_code, COALESCE(is_public, false),
	is_featured, source, rating::float8, download_count, created_at, updated_at, version`

// PostgresStore implements Store on the shared Postgres collection.
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.SharedPlaylist) (string, error) {
	clips, err := encodeClips(rec.Clips)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	version := rec.Version
	if version < 1 {
		version = 1
	}
	source := rec.Source
	if source == "" {
		source = models.SourceShare
	}

	var id string
	err = s.db.QueryRow(ctx, `
		INSERT INTO shared_playlists (original_playlist_id, name, description, tags, clips,
			creator_id, creator_display_name, share_code, is_public, is_featured, source,
			created_at, updated_at, version)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		rec.OriginalLocalID, rec.Name, rec.Description, nonNilTags(rec.Tags), clips,
		rec.CreatorID, rec.CreatorDisplayName, rec.ShareCode, rec.IsPublic, rec.IsFeatured,
		string(source), createdAt, now, version,
	).Scan(&id)
	if err != nil {
		return "", mapError(err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id, creatorID string, patch Patch) (bool, error) {
	if id == "" || creatorID == "" {
		return false, nil
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Tags != nil {
		add("tags", nonNilTags(*patch.Tags))
	}
	if patch.Clips != nil {
		clips, err := encodeClips(*patch.Clips)
		if err != nil {
			return false, err
		}
		add("clips", clips)
	}
	if patch.CreatorDisplayName != nil {
		add("creator_display_name", *patch.CreatorDisplayName)
	}
	if patch.IsPublic != nil {
		add("is_public", *patch.IsPublic)
	}
	sets = append(sets, "updated_at = now()")
	if patch.touchesContent() {
		sets = append(sets, "version = version + 1")
	}

	args = append(args, id, creatorID)
	query := fmt.Sprintf("UPDATE shared_playlists SET %s WHERE id = $%d AND creator_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args))

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id, creatorID string) (bool, error) {
	if id == "" || creatorID == "" {
		return false, nil
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM shared_playlists WHERE id = $1 AND creator_id = $2`, id, creatorID)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.SharedPlaylist, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM shared_playlists WHERE id = $1`, id)
	return scanRecord(row)
}

func (s *PostgresStore) GetByShareCode(ctx context.Context, code string) (*models.SharedPlaylist, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM shared_playlists
		WHERE share_code = $1
		ORDER BY (is_public IS TRUE) DESC, created_at ASC
		LIMIT 1`, code)
	return scanRecord(row)
}

func (s *PostgresStore) QueryByCategory(ctx context.Context, category models.Category, limit int) ([]*models.SharedPlaylist, error) {
	where := "is_public = true"
	order := "created_at DESC"
	switch category {
	case models.CategoryTrending:
		order = "download_count DESC, created_at DESC"
	case models.CategoryHighlyRated:
		where += fmt.Sprintf(" AND rating >= %.1f", models.HighlyRatedThreshold)
		order = "rating DESC, created_at DESC"
	case models.CategoryFeatured:
		where += " AND is_featured = true"
	}
	query := fmt.Sprintf(`SELECT %s FROM shared_playlists WHERE %s ORDER BY %s LIMIT $1`,
		selectColumns, where, order)
	return s.queryRecords(ctx, query, models.ClampLimit(limit))
}

func (s *PostgresStore) QueryByCreator(ctx context.Context, creatorID string) ([]*models.SharedPlaylist, error) {
	if creatorID == "" {
		return nil, nil
	}
	return s.queryRecords(ctx, `SELECT `+selectColumns+` FROM shared_playlists
		WHERE creator_id = $1 ORDER BY created_at DESC`, creatorID)
}

func (s *PostgresStore) FindByOrigin(ctx context.Context, creatorID, originalLocalID string) (*models.SharedPlaylist, error) {
	if creatorID == "" || originalLocalID == "" {
		return nil, models.ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM shared_playlists
		WHERE creator_id = $1 AND original_playlist_id = $2
		ORDER BY created_at ASC LIMIT 1`, creatorID, originalLocalID)
	return scanRecord(row)
}

func (s *PostgresStore) ShareCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM shared_playlists WHERE share_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, mapError(err)
	}
	return exists, nil
}

func (s *PostgresStore) UpsertRating(ctx context.Context, entry models.RatingEntry) (float64, int, error) {
	var (
		rating float64
		count  int64
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockRecord(ctx, tx, entry.PlaylistID); err != nil {
			return err
		}
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO playlist_ratings (playlist_id, rater_id, value, review, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (playlist_id, rater_id)
			DO UPDATE SET value = EXCLUDED.value, review = EXCLUDED.review, created_at = EXCLUDED.created_at`,
			entry.PlaylistID, entry.RaterID, entry.Value, entry.Review, createdAt); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			UPDATE shared_playlists
			SET rating = COALESCE((SELECT round(avg(value)::numeric, 1) FROM playlist_ratings WHERE playlist_id = $1), 0)
			WHERE id = $1
			RETURNING rating::float8, (SELECT count(*) FROM playlist_ratings WHERE playlist_id = $1)`,
			entry.PlaylistID).Scan(&rating, &count)
	})
	if err != nil {
		return 0, 0, mapError(err)
	}
	return rating, int(count), nil
}

func (s *PostgresStore) InsertDownload(ctx context.Context, receipt models.DownloadReceipt) (int64, bool, error) {
	var (
		count    int64
		inserted bool
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockRecord(ctx, tx, receipt.PlaylistID); err != nil {
			return err
		}
		at := receipt.DownloadedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO playlist_downloads (playlist_id, downloader_id, downloaded_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (playlist_id, downloader_id) DO NOTHING`,
			receipt.PlaylistID, receipt.DownloaderID, at)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() > 0
		return tx.QueryRow(ctx, `
			UPDATE shared_playlists
			SET download_count = (SELECT count(*) FROM playlist_downloads WHERE playlist_id = $1)
			WHERE id = $1
			RETURNING download_count`,
			receipt.PlaylistID).Scan(&count)
	})
	if err != nil {
		return 0, false, mapError(err)
	}
	return count, inserted, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...any) ([]*models.SharedPlaylist, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*models.SharedPlaylist
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// inTx runs fn in a transaction, committing on success.
func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// lockRecord takes a row lock so concurrent aggregate recomputes serialize.
func lockRecord(ctx context.Context, tx pgx.Tx, id string) error {
	var locked string
	return tx.QueryRow(ctx, `SELECT id FROM shared_playlists WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.SharedPlaylist, error) {
	var (
		rec    models.SharedPlaylist
		clips  []byte
		source string
	)
	err := row.Scan(&rec.ID, &rec.OriginalLocalID, &rec.Name, &rec.Description, &rec.Tags, &clips,
		&rec.CreatorID, &rec.CreatorDisplayName, &rec.ShareCode, &rec.IsPublic,
		&rec.IsFeatured, &source, &rec.Rating, &rec.DownloadCount, &rec.CreatedAt, &rec.UpdatedAt, &rec.Version)
	if err != nil {
		return nil, mapError(err)
	}
	if len(clips) > 0 {
		if err := json.Unmarshal(clips, &rec.Clips); err != nil {
			return nil, fmt.Errorf("decode clips for %s: %w", rec.ID, err)
		}
	}
	rec.ShareCode = strings.TrimSpace(rec.ShareCode)
	rec.Source = models.Source(source)
	rec.Provenance = models.ProvenanceRemote
	return &rec, nil
}

func encodeClips(clips []models.Clip) ([]byte, error) {
	if clips == nil {
		clips = []models.Clip{}
	}
	b, err := json.Marshal(clips)
	if err != nil {
		return nil, fmt.Errorf("encode clips: %w", err)
	}
	return b, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// mapError translates driver errors into the shared error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == shareCodeConstraint:
			return ErrShareCodeTaken
		case pgErr.Code == "23505" && pgErr.ConstraintName == originConstraint:
			return ErrOriginExists
		case pgErr.Code == "23503":
			return models.ErrNotFound
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			return fmt.Errorf("%w: %s", models.ErrRemoteRejected, pgErr.Message)
		}
	}
	return err
}
