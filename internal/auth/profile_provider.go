// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/powerhour/internal/config"
	"github.com/tomtom215/powerhour/internal/logging"
	"github.com/tomtom215/powerhour/internal/models"
)

// ProfileStore persists the installation profile.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, newProfile func() *models.UserProfile) (*models.UserProfile, bool, error)
}

// ProfileProvider backs the default identity with the persisted local
// profile and verifies bearer tokens when a secret is configured.
type ProfileProvider struct {
	profile models.UserProfile
	jwt     *JWTManager

	mu       sync.RWMutex
	signedIn bool
}

// NewProfileProvider loads the local profile, creating it on first run.
func NewProfileProvider(ctx context.Context, store ProfileStore, cfg config.AuthConfig) (*ProfileProvider, error) {
	profile, created, err := store.EnsureProfile(ctx, func() *models.UserProfile {
		return &models.UserProfile{
			ID:          uuid.NewString(),
			DisplayName: cfg.ProfileDisplayName,
			CreatedAt:   time.Now().UTC(),
		}
	})
	if err != nil {
		return nil, fmt.Errorf("load local profile: %w", err)
	}
	if created {
		logging.Info().Str("profile_id", profile.ID).Msg("Created local profile")
	}

	p := &ProfileProvider{profile: *profile, signedIn: cfg.AutoAnonymousSignIn}
	if cfg.JWTSecret != "" {
		if p.jwt, err = NewJWTManager(cfg); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Profile returns the local profile.
func (p *ProfileProvider) Profile() models.UserProfile {
	return p.profile
}

// Current returns the local profile identity, authenticated only after an
// anonymous sign-in.
func (p *ProfileProvider) Current(context.Context) (Identity, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity(), nil
}

func (p *ProfileProvider) SignInAnonymously(context.Context) (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.signedIn {
		p.signedIn = true
		logging.Info().Str("profile_id", p.profile.ID).Msg("Signed in anonymously")
	}
	return p.identity(), nil
}

func (p *ProfileProvider) Authenticate(_ context.Context, token string) (Identity, error) {
	if p.jwt == nil {
		return Identity{}, ErrBearerDisabled
	}
	return p.jwt.ValidateToken(token)
}

// IssueToken mints a token for id. It fails when bearer auth is disabled.
func (p *ProfileProvider) IssueToken(id Identity) (string, error) {
	if p.jwt == nil {
		return "", ErrBearerDisabled
	}
	return p.jwt.GenerateToken(id)
}

func (p *ProfileProvider) identity() Identity {
	return Identity{
		ID:            p.profile.ID,
		DisplayName:   p.profile.DisplayName,
		Anonymous:     true,
		Authenticated: p.signedIn,
	}
}

var _ Provider = (*ProfileProvider)(nil)
