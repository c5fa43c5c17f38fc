// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/powerhour/internal/config"
)

// Claims are the bearer token claims. The subject is the identity ID.
type Claims struct {
	Name      string `json:"name,omitempty"`
	Anonymous bool   `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 tokens.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTManager returns a manager for cfg.JWTSecret. The secret must be set.
func NewJWTManager(cfg config.AuthConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{secret: []byte(cfg.JWTSecret), ttl: ttl}, nil
}

// GenerateToken signs a token for id.
func (m *JWTManager) GenerateToken(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:      id.DisplayName,
		Anonymous: id.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, algorithm and expiry and returns the
// identity the token names.
func (m *JWTManager) ValidateToken(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return Identity{
		ID:            claims.Subject,
		DisplayName:   claims.Name,
		Anonymous:     claims.Anonymous,
		Authenticated: true,
	}, nil
}
