// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

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

// DefaultConfigPaths lists where config files are searched, in priority
// order. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/viewtrack/config.yaml",
	"/etc/viewtrack/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are loaded first and
// then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8460,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:         "/data/viewtrack.duckdb",
			MaxMemory:    "2GB",
			Threads:      0, // 0 = runtime.NumCPU()
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 5 * time.Second,
			SeedMockData: false,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			QueueGroup:     "ingestors",
			DurableName:    "view-ingestor",
			RetryCount:     3,
			RetryInterval:  time.Second,
			CloseTimeout:   30 * time.Second,
			MaxQueueDepth:  10000,
		},
		Dedup: DedupConfig{
			Path:              "/data/dedup",
			Window:            24 * time.Hour,
			AuthenticatedOnly: false,
		},
		Identity: IdentityConfig{
			FingerprintSecret:   "",
			FingerprintRotation: 48 * time.Hour,
			GeoTablePath:        "",
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			ViewRatePerMin:  30,
			ViewRateBurst:   10,
			CORSOrigins:     []string{"*"},
		},
		Stats: StatsConfig{
			CacheTTL:        60 * time.Second,
			DefaultPageSize: 12,
			MaxPageSize:     50,
		},
		Aggregate: AggregateConfig{
			ReconcileInterval: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
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

// sliceConfigPaths lists paths parsed as comma-separated slices when they
// arrive as strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
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
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("setting %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so random environment noise cannot
// pollute the configuration.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - DEDUP_WINDOW -> dedup.window
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Database
		"duckdb_path":          "database.path",
		"duckdb_max_memory":    "database.max_memory",
		"duckdb_threads":       "database.threads",
		"duckdb_read_timeout":  "database.read_timeout",
		"duckdb_write_timeout": "database.write_timeout",
		"seed_mock_data":       "database.seed_mock_data",

		// NATS
		"nats_url":             "nats.url",
		"nats_embedded":        "nats.embedded_server",
		"nats_store_dir":       "nats.store_dir",
		"nats_max_memory":      "nats.max_memory",
		"nats_max_store":       "nats.max_store",
		"nats_queue_group":     "nats.queue_group",
		"nats_durable_name":    "nats.durable_name",
		"nats_retry_count":     "nats.retry_count",
		"nats_retry_interval":  "nats.retry_interval",
		"nats_close_timeout":   "nats.close_timeout",
		"nats_max_queue_depth": "nats.max_queue_depth",

		// Dedup
		"dedup_path":               "dedup.path",
		"dedup_window":             "dedup.window",
		"dedup_authenticated_only": "dedup.authenticated_only",

		// Identity
		"fingerprint_secret":   "identity.fingerprint_secret",
		"fingerprint_rotation": "identity.fingerprint_rotation",
		"geo_table_path":       "identity.geo_table_path",

		// Security
		"jwt_secret":          "security.jwt_secret",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"view_rate_per_min":   "security.view_rate_per_min",
		"view_rate_burst":     "security.view_rate_burst",
		"cors_origins":        "security.cors_origins",

		// Stats
		"stats_cache_ttl":       "stats.cache_ttl",
		"api_default_page_size": "stats.default_page_size",
		"api_max_page_size":     "stats.max_page_size",

		// Aggregation
		"reconcile_interval": "aggregate.reconcile_interval",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
