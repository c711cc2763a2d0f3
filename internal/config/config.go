// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package config loads and validates server configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables, in ascending priority.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	NATS      NATSConfig      `koanf:"nats"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Identity  IdentityConfig  `koanf:"identity"`
	Security  SecurityConfig  `koanf:"security"`
	Stats     StatsConfig     `koanf:"stats"`
	Aggregate AggregateConfig `koanf:"aggregate"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig configures the DuckDB analytics store.
type DatabaseConfig struct {
	Path         string        `koanf:"path"`
	MaxMemory    string        `koanf:"max_memory"`
	Threads      int           `koanf:"threads"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	SeedMockData bool          `koanf:"seed_mock_data"`
}

// NATSConfig configures the embedded NATS server and the Watermill router
// that carries view events from the API to the ingestor.
type NATSConfig struct {
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	StoreDir       string        `koanf:"store_dir"`
	MaxMemory      int64         `koanf:"max_memory"`
	MaxStore       int64         `koanf:"max_store"`
	QueueGroup     string        `koanf:"queue_group"`
	DurableName    string        `koanf:"durable_name"`
	RetryCount     int           `koanf:"retry_count"`
	RetryInterval  time.Duration `koanf:"retry_interval"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
	MaxQueueDepth  int64         `koanf:"max_queue_depth"`
}

// DedupConfig configures the 24h unique-view window.
type DedupConfig struct {
	Path              string        `koanf:"path"`
	Window            time.Duration `koanf:"window"`
	AuthenticatedOnly bool          `koanf:"authenticated_only"`
}

// IdentityConfig configures anonymous viewer fingerprinting and
// geography resolution.
type IdentityConfig struct {
	FingerprintSecret   string        `koanf:"fingerprint_secret"`
	FingerprintRotation time.Duration `koanf:"fingerprint_rotation"`
	GeoTablePath        string        `koanf:"geo_table_path"`
}

// SecurityConfig configures authentication and rate limiting.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	ViewRatePerMin  int           `koanf:"view_rate_per_min"`
	ViewRateBurst   int           `koanf:"view_rate_burst"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StatsConfig configures the analytics query service.
type StatsConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
}

// AggregateConfig configures the aggregator's reconciliation sweep.
type AggregateConfig struct {
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port the HTTP server binds.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for values that would break the server
// at runtime rather than at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive")
	}
	if c.Identity.FingerprintSecret == "" {
		return fmt.Errorf("identity.fingerprint_secret must be set")
	}
	if c.Security.JWTSecret == "" && c.Server.Environment == "production" {
		return fmt.Errorf("security.jwt_secret must be set in production")
	}
	if c.Security.ViewRatePerMin <= 0 {
		return fmt.Errorf("security.view_rate_per_min must be positive")
	}
	if c.Stats.MaxPageSize < c.Stats.DefaultPageSize {
		return fmt.Errorf("stats.max_page_size %d below default %d",
			c.Stats.MaxPageSize, c.Stats.DefaultPageSize)
	}
	if c.NATS.RetryCount < 0 {
		return fmt.Errorf("nats.retry_count must not be negative")
	}
	return nil
}
