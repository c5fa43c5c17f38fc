// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package auth

import (
	"context"
	"errors"
)

// Identity is the acting user of an operation.
//
// Every identity has an ID, even before sign-in: the local profile ID
// attributes downloads and local records. Authenticated is false until the
// identity has signed in (anonymously or with an account). Anonymous is true
// for the local profile and for guest sessions.
type Identity struct {
	ID            string `json:"id"`
	DisplayName   string `json:"display_name,omitempty"`
	Anonymous     bool   `json:"anonymous"`
	Authenticated bool   `json:"authenticated"`
}

// IsZero reports whether no identity was resolved.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// CanWriteRemote reports whether the identity may create or update remote
// records. Anonymous sessions qualify once signed in.
func (i Identity) CanWriteRemote() bool {
	return i.ID != "" && i.Authenticated
}

// IsAccount reports whether the identity is a signed-in, non-anonymous
// account. Rating and migration require it.
func (i Identity) IsAccount() bool {
	return i.ID != "" && i.Authenticated && !i.Anonymous
}

// Authentication errors.
var (
	// ErrInvalidToken means a bearer token failed verification.
	ErrInvalidToken = errors.New("invalid bearer token")

	// ErrBearerDisabled means no JWT secret is configured.
	ErrBearerDisabled = errors.New("bearer authentication is not configured")
)

// Provider resolves who is acting. It is constructed explicitly and injected;
// there is no package-level current user.
type Provider interface {
	// Current returns the default identity for requests without credentials.
	Current(ctx context.Context) (Identity, error)

	// SignInAnonymously marks the default identity as signed in and returns it.
	SignInAnonymously(ctx context.Context) (Identity, error)

	// Authenticate verifies a bearer token and returns its identity.
	Authenticate(ctx context.Context, token string) (Identity, error)
}

type identityKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
