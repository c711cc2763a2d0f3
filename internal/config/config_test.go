// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("FINGERPRINT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8460 {
		t.Errorf("server.port = %d, want 8460", cfg.Server.Port)
	}
	if cfg.Dedup.Window != 24*time.Hour {
		t.Errorf("dedup.window = %v, want 24h", cfg.Dedup.Window)
	}
	if cfg.Security.ViewRatePerMin != 30 {
		t.Errorf("security.view_rate_per_min = %d, want 30", cfg.Security.ViewRatePerMin)
	}
	if cfg.Stats.CacheTTL != 60*time.Second {
		t.Errorf("stats.cache_ttl = %v, want 60s", cfg.Stats.CacheTTL)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FINGERPRINT_SECRET", "test-secret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEDUP_AUTHENTICATED_ONLY", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Dedup.AuthenticatedOnly {
		t.Error("dedup.authenticated_only should be true")
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Security.CORSOrigins) != len(want) {
		t.Fatalf("cors_origins = %v, want %v", cfg.Security.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Security.CORSOrigins[i] != want[i] {
			t.Errorf("cors_origins[%d] = %q, want %q", i, cfg.Security.CORSOrigins[i], want[i])
		}
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7777\nidentity:\n  fingerprint_secret: file-secret\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("server.port = %d, want 7777 from file", cfg.Server.Port)
	}
	if cfg.Identity.FingerprintSecret != "file-secret" {
		t.Errorf("fingerprint_secret = %q, want file-secret", cfg.Identity.FingerprintSecret)
	}
}

func TestEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 7777\nidentity:\n  fingerprint_secret: file-secret\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "8888")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("server.port = %d, want env override 8888", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero dedup window", func(c *Config) { c.Dedup.Window = 0 }},
		{"missing fingerprint secret", func(c *Config) { c.Identity.FingerprintSecret = "" }},
		{"zero view rate", func(c *Config) { c.Security.ViewRatePerMin = 0 }},
		{"max page below default", func(c *Config) { c.Stats.MaxPageSize = 1 }},
		{"negative retry count", func(c *Config) { c.NATS.RetryCount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Identity.FingerprintSecret = "secret"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestProductionRequiresJWTSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Identity.FingerprintSecret = "secret"
	cfg.Server.Environment = "production"

	if err := cfg.Validate(); err == nil {
		t.Error("production config without jwt_secret should fail validation")
	}

	cfg.Security.JWTSecret = "jwt-secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8460}
	if got := s.Addr(); got != "127.0.0.1:8460" {
		t.Errorf("Addr() = %q", got)
	}
}
