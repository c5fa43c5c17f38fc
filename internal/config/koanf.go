// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/powerhour/config.yaml",
	"/etc/powerhour/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Local: LocalConfig{
			Path:       "/data/powerhour",
			SyncWrites: true,
		},
		Remote: RemoteConfig{
			Enabled:           false, // offline unless a DSN is configured
			MaxConns:          10,
			RequestTimeout:    5 * time.Second,
			ProbeInterval:     30 * time.Second,
			MigrateOnStart:    true,
			FailureRatio:      0.6,
			MinRequests:       5,
			OpenTimeout:       30 * time.Second,
			ShareCodeAttempts: 5,
			IndexCacheSize:    1024,
			IndexCacheTTL:     10 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:   false,
			RedisAddr: "localhost:6379",
			Channel:   "powerhour.playlists",
		},
		Auth: AuthConfig{
			AutoAnonymousSignIn: true,
			ProfileDisplayName:  "Powerhour Player",
			TokenTTL:            24 * time.Hour,
		},
		Outbox: OutboxConfig{
			Enabled:        true,
			ReplayInterval: 15 * time.Second,
			MaxAttempts:    20,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3857,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers:
//
//  1. Defaults from defaultConfig()
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Mapped environment variables
//
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices. YAML
// lists are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config paths.
// Unmapped variables are ignored so unrelated environment cannot leak in.
var envMappings = map[string]string{
	"local_store_path":        "local.path",
	"local_store_in_memory":   "local.in_memory",
	"local_store_sync_writes": "local.sync_writes",

	"remote_enabled":             "remote.enabled",
	"database_url":               "remote.dsn",
	"remote_dsn":                 "remote.dsn",
	"remote_max_conns":           "remote.max_conns",
	"remote_request_timeout":     "remote.request_timeout",
	"remote_probe_interval":      "remote.probe_interval",
	"remote_migrate_on_start":    "remote.migrate_on_start",
	"remote_failure_ratio":       "remote.failure_ratio",
	"remote_min_requests":        "remote.min_requests",
	"remote_open_timeout":        "remote.open_timeout",
	"remote_share_code_attempts": "remote.share_code_attempts",
	"remote_index_cache_size":    "remote.index_cache_size",
	"remote_index_cache_ttl":     "remote.index_cache_ttl",

	"events_enabled": "events.enabled",
	"redis_addr":     "events.redis_addr",
	"redis_password": "events.redis_password",
	"redis_db":       "events.redis_db",
	"events_channel": "events.channel",

	"jwt_secret":             "auth.jwt_secret",
	"auto_anonymous_sign_in": "auth.auto_anonymous_sign_in",
	"profile_display_name":   "auth.profile_display_name",
	"jwt_token_ttl":          "auth.token_ttl",

	"outbox_enabled":         "outbox.enabled",
	"outbox_replay_interval": "outbox.replay_interval",
	"outbox_max_attempts":    "outbox.max_attempts",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its config path, or
// "" to skip it.
//
// Examples:
//   - DATABASE_URL -> remote.dsn
//   - HTTP_PORT -> server.port
//   - OUTBOX_MAX_ATTEMPTS -> outbox.max_attempts
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
