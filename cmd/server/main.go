// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomtom215/powerhour/internal/api"
	"github.com/tomtom215/powerhour/internal/auth"
	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/events"
	"github.com/tomtom215/powerhour/internal/localstore"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/migration"
	"github.com/tomtom215/powerhour/internal/outbox"
	"github.com/tomtom215/powerhour/internal/rating"
	"github.com/tomtom215/powerhour/internal/remote"
	"github.com/tomtom215/powerhour/internal/sharing"
	"github.com/tomtom215/powerhour/internal/supervisor"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("Starting Powerhour")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local, err := localstore.Open(cfg.Local)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer func() {
		if err := local.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing local store")
		}
	}()
	logging.Info().Str("path", cfg.Local.Path).Bool("in_memory", cfg.Local.InMemory).Msg("Local store opened")

	client, pool := initRemote(ctx, cfg.Remote)
	if pool != nil {
		defer pool.Close()
	}

	identities, err := auth.NewProfileProvider(ctx, local, cfg.Auth)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize identity provider")
	}

	publisher := events.New(cfg.Events)
	if c, ok := publisher.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	if cfg.Events.Enabled {
		logging.Info().Str("addr", cfg.Events.RedisAddr).Str("channel", cfg.Events.Channel).Msg("Change notifications enabled")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddSyncService(remote.NewProber(client, cfg.Remote.ProbeInterval))

	aggOpts := []rating.Option{rating.WithPublisher(publisher)}
	coordOpts := []sharing.Option{sharing.WithPublisher(publisher)}
	if cfg.Outbox.Enabled {
		box := outbox.New(local.DB())
		aggOpts = append(aggOpts, rating.WithQueue(box))
		coordOpts = append(coordOpts, sharing.WithQueue(box))
		tree.AddSyncService(outbox.NewReplayer(box, client, local, cfg.Outbox))
		logging.Info().Dur("interval", cfg.Outbox.ReplayInterval).Msg("Outbox replay enabled")
	}
	aggregator := rating.NewAggregator(local, client, aggOpts...)

	coordOpts = append(coordOpts, sharing.WithDownloadRecorder(aggregator))
	coordinator := sharing.NewCoordinator(local, client, cfg.Remote, coordOpts...)
	migrations := migration.NewService(coordinator, local, client, identities.Profile().ID)
	coordinator.SetBeforeShare(migrations.MigrateOrigin)

	handler := api.NewHandler(api.Deps{
		Sharing:    coordinator,
		Ratings:    aggregator,
		Migrations: migrations,
		Identities: identities,
		Local:      local,
		Remote:     client,
		Version:    version,
	})
	router := api.NewRouter(handler, api.NewChiMiddlewareFromServer(cfg.Server))

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	tree.AddAPIService(supervisor.NewHTTPService(server, addr, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)
	if err := supervisor.Wait(errCh); err != nil {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}
	cancel()

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	logging.Info().Msg("Powerhour stopped")
}

// initRemote connects the shared collection. Any failure leaves Powerhour
// running on the local cache alone.
func initRemote(ctx context.Context, cfg config.RemoteConfig) (*remote.Client, *pgxpool.Pool) {
	if !cfg.Enabled {
		logging.Info().Msg("Remote store disabled; running local-only")
		return remote.Disabled(), nil
	}

	if cfg.MigrateOnStart {
		if err := remote.Migrate(cfg.DSN); err != nil {
			logging.Error().Err(err).Msg("Remote schema migration failed; running local-only")
			return remote.Disabled(), nil
		}
	}

	pool, err := remote.NewPool(ctx, cfg)
	if err != nil {
		logging.Error().Err(fmt.Errorf("connect remote store: %w", err)).Msg("Running local-only")
		return remote.Disabled(), nil
	}
	logging.Info().Int32("max_conns", cfg.MaxConns).Msg("Remote store connected")
	return remote.NewClient(remote.NewPostgresStore(pool), cfg), pool
}
