// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/models"
	"github.com/tomtom215/powerhour/internal/sharing"
)

// Sharing is the sync coordinator as the handlers use it.
type Sharing interface {
	Save(ctx context.Context, actor auth.Identity, rec *models.SharedPlaylist) (*models.SaveResult, error)
	Share(ctx context.Context, actor auth.Identity, req models.ShareRequest) (*models.SaveResult, error)
	ResolveByCode(ctx context.Context, code string) (*models.SharedPlaylist, error)
	List(ctx context.Context, category models.Category, limit int) (*sharing.Listing, error)
	ListMine(ctx context.Context, actor auth.Identity) (*sharing.Listing, error)
	Import(ctx context.Context, actor auth.Identity, code string) (*models.ImportResult, error)
	Rename(ctx context.Context, actor auth.Identity, id string, req models.RenameRequest) (*models.SaveResult, error)
	RemoveFromCommunity(ctx context.Context, actor auth.Identity, id string) (*models.SaveResult, error)
	Delete(ctx context.Context, actor auth.Identity, id string) (*models.SaveResult, error)
}

// Ratings records ratings and downloads.
type Ratings interface {
	Rate(ctx context.Context, actor auth.Identity, playlistID string, req models.RateRequest) (*models.RatingResult, error)
	RecordDownload(ctx context.Context, actor auth.Identity, playlistID string) (*models.DownloadResult, error)
}

// Migrations moves local-only records to the signed-in account.
type Migrations interface {
	Status(ctx context.Context, actor auth.Identity) (*models.MigrationStatus, error)
	MigrateAll(ctx context.Context, actor auth.Identity) (*models.MigrationReport, error)
	MigrateOne(ctx context.Context, actor auth.Identity, localID string) (*models.MigrationItem, error)
}

// Identities resolves and signs in identities.
type Identities interface {
	auth.Provider
	IssueToken(id auth.Identity) (string, error)
}

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RemoteState reports on the remote tier client.
type RemoteState interface {
	IsAvailable() bool
	Configured() bool
	State() string
}

// Deps holds the handler's collaborators.
type Deps struct {
	Sharing    Sharing
	Ratings    Ratings
	Migrations Migrations
	Identities Identities
	Local      Pinger
	Remote     RemoteState
	Version    string
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_shared.go: shared playlist endpoints
//   - handlers_rating.go: rating and download endpoints
//   - handlers_migration.go: migration endpoints
//   - handlers_auth.go: sign-in endpoints
//   - handlers_health.go: health endpoints
type Handler struct {
	sharing    Sharing
	ratings    Ratings
	migrations Migrations
	identities Identities
	local      Pinger
	remote     RemoteState
	version    string
	startTime  time.Time
}

// NewHandler creates a handler. Every dependency in d is required.
func NewHandler(d Deps) *Handler {
	version := d.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		sharing:    d.Sharing,
		ratings:    d.Ratings,
		migrations: d.Migrations,
		identities: d.Identities,
		local:      d.Local,
		remote:     d.Remote,
		version:    version,
		startTime:  time.Now(),
	}
}

// actor returns the identity the Identify middleware resolved.
func actor(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
