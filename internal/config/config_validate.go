// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/powerhour/internal/logging"
)

// Validate checks that required configuration is present and within bounds.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateLocal,
		c.validateRemote,
		c.validateEvents,
		c.validateAuth,
		c.validateOutbox,
		c.validateServer,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLocal() error {
	if !c.Local.InMemory && c.Local.Path == "" {
		return fmt.Errorf("LOCAL_STORE_PATH is required unless LOCAL_STORE_IN_MEMORY=true")
	}
	return nil
}

// validateRemote only checks the remote section when it is enabled; an
// offline deployment needs none of it.
func (c *Config) validateRemote() error {
	r := c.Remote
	if !r.Enabled {
		return nil
	}
	if r.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required when REMOTE_ENABLED=true")
	}
	if r.MaxConns < 1 {
		return fmt.Errorf("REMOTE_MAX_CONNS must be at least 1")
	}
	if r.RequestTimeout <= 0 || r.RequestTimeout > time.Minute {
		return fmt.Errorf("REMOTE_REQUEST_TIMEOUT must be between 1ns and 1m, got %v", r.RequestTimeout)
	}
	if r.ProbeInterval < time.Second {
		return fmt.Errorf("REMOTE_PROBE_INTERVAL must be at least 1s")
	}
	if r.FailureRatio <= 0 || r.FailureRatio > 1 {
		return fmt.Errorf("REMOTE_FAILURE_RATIO must be in (0, 1]")
	}
	if r.OpenTimeout <= 0 {
		return fmt.Errorf("REMOTE_OPEN_TIMEOUT must be positive")
	}
	if r.ShareCodeAttempts < 1 || r.ShareCodeAttempts > 20 {
		return fmt.Errorf("REMOTE_SHARE_CODE_ATTEMPTS must be between 1 and 20")
	}
	if r.IndexCacheSize < 0 {
		return fmt.Errorf("REMOTE_INDEX_CACHE_SIZE must not be negative")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.Enabled && c.Events.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when EVENTS_ENABLED=true")
	}
	if c.Events.Enabled && c.Events.Channel == "" {
		return fmt.Errorf("EVENTS_CHANNEL must not be empty")
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) validateOutbox() error {
	if !c.Outbox.Enabled {
		return nil
	}
	if c.Outbox.ReplayInterval < 100*time.Millisecond {
		return fmt.Errorf("OUTBOX_REPLAY_INTERVAL must be at least 100ms")
	}
	if c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("OUTBOX_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Rate limit bounds
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateServer() error {
	s := c.Server
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if s.RateLimitRequests < minRateLimitRequests || s.RateLimitRequests > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if s.RateLimitWindow < minRateLimitWindow || s.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic, disabled")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// ShouldWarnAboutCORS reports a wildcard origin combined with bearer auth.
func (c *Config) ShouldWarnAboutCORS() bool {
	if c.Auth.JWTSecret == "" {
		return false
	}
	for _, o := range c.Server.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// LoggingOptions converts the logging section for logging.Init.
func (c *Config) LoggingOptions() logging.Config {
	return logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Caller: c.Logging.Caller,
	}
}
