// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package config loads Powerhour configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence (lowest
// first).
package config

import "time"

// Config is the complete application configuration.
type Config struct {
	Local   LocalConfig   `koanf:"local"`
	Remote  RemoteConfig  `koanf:"remote"`
	Events  EventsConfig  `koanf:"events"`
	Auth    AuthConfig    `koanf:"auth"`
	Outbox  OutboxConfig  `koanf:"outbox"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// LocalConfig configures the on-device BadgerDB cache.
//
// Environment Variables:
//   - LOCAL_STORE_PATH: directory for the badger files (default: /data/powerhour)
//   - LOCAL_STORE_IN_MEMORY: keep everything in memory, for tests and demos
//   - LOCAL_STORE_SYNC_WRITES: fsync every commit (default: true)
type LocalConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// RemoteConfig configures the shared Postgres collection and the client
// guarding it. Leaving it disabled runs Powerhour fully offline.
type RemoteConfig struct {
	Enabled        bool          `koanf:"enabled"`
	DSN            string        `koanf:"dsn"`
	MaxConns       int32         `koanf:"max_conns"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ProbeInterval  time.Duration `koanf:"probe_interval"`
	MigrateOnStart bool          `koanf:"migrate_on_start"`

	// Circuit breaker
	FailureRatio float64       `koanf:"failure_ratio"`
	MinRequests  uint32        `koanf:"min_requests"`
	OpenTimeout  time.Duration `koanf:"open_timeout"`

	// ShareCodeAttempts bounds regeneration when a fresh code is taken.
	ShareCodeAttempts int `koanf:"share_code_attempts"`

	// (creator, original playlist) -> remote id lookups
	IndexCacheSize int           `koanf:"index_cache_size"`
	IndexCacheTTL  time.Duration `koanf:"index_cache_ttl"`
}

// EventsConfig configures change notifications over Redis pub/sub.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	Channel       string `koanf:"channel"`
}

// AuthConfig configures identity resolution.
type AuthConfig struct {
	// JWTSecret verifies bearer tokens issued by the account service. Empty
	// disables bearer authentication; only the local profile is available.
	JWTSecret string `koanf:"jwt_secret"`

	// AutoAnonymousSignIn signs the local profile in anonymously when no
	// bearer token is presented, so downloads can be attributed.
	AutoAnonymousSignIn bool `koanf:"auto_anonymous_sign_in"`

	// ProfileDisplayName labels the local profile when it is first created.
	ProfileDisplayName string `koanf:"profile_display_name"`

	// TokenTTL bounds the lifetime of tokens minted for the local profile.
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// OutboxConfig configures replay of rating and download writes that could
// not reach the remote tier.
type OutboxConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ReplayInterval time.Duration `koanf:"replay_interval"`
	MaxAttempts    int           `koanf:"max_attempts"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration using the layered koanf loader.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
