// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPARKPIT_AUTH_APP_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if !cfg.Events.Enabled {
		t.Error("events should default to enabled")
	}
	if cfg.Events.AuditRetention != 90*24*time.Hour {
		t.Errorf("audit retention = %v", cfg.Events.AuditRetention)
	}
	if cfg.PaymentsConfigured() {
		t.Error("payments should be unconfigured without credentials")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %q", cfg.Logging.Format)
	}
}

func TestLoadRequiresAppSecret(t *testing.T) {
	_, err := Load()
	if err == nil {
		t.Fatal("expected an error without an app secret")
	}
	if !strings.Contains(err.Error(), "app_secret") {
		t.Fatalf("error = %v, want app_secret mention", err)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SPARKPIT_AUTH_APP_SECRET", testSecret)
	t.Setenv("SPARKPIT_SERVER_PORT", "9090")
	t.Setenv("SPARKPIT_SERVER_REQUESTS_PER_MINUTE", "60")
	t.Setenv("SPARKPIT_EVENTS_ENABLED", "false")
	t.Setenv("SPARKPIT_DATABASE_PATH", "/tmp/store")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.RequestsPerMinute != 60 {
		t.Errorf("requests_per_minute = %d, want 60", cfg.Server.RequestsPerMinute)
	}
	if cfg.Events.Enabled {
		t.Error("events should be disabled via env")
	}
	if cfg.Database.Path != "/tmp/store" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
}

func TestCORSOriginsFromCommaSeparatedEnv(t *testing.T) {
	t.Setenv("SPARKPIT_AUTH_APP_SECRET", testSecret)
	t.Setenv("SPARKPIT_SERVER_CORS_ORIGINS", "https://app.sparkpit.dev, https://staging.sparkpit.dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"https://app.sparkpit.dev", "https://staging.sparkpit.dev"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Fatalf("origins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestConfigFileLayer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sparkpit.yaml")
	content := []byte("server:\n  port: 7000\npayments:\n  secret_key: sk_test_abc\n  webhook_secret: whsec_abc\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SPARKPIT_CONFIG", path)
	t.Setenv("SPARKPIT_AUTH_APP_SECRET", testSecret)
	// Env still beats the file.
	t.Setenv("SPARKPIT_SERVER_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("port = %d, env should override the file", cfg.Server.Port)
	}
	if !cfg.PaymentsConfigured() {
		t.Error("payments should be configured from the file")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short secret", func(c *Config) { c.Auth.AppSecret = "short" }, "app_secret"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero rate", func(c *Config) { c.Server.RequestsPerMinute = 0 }, "requests_per_minute"},
		{"bad nats port", func(c *Config) { c.Events.NATSPort = -1 }, "nats_port"},
		{"secret key without webhook secret", func(c *Config) {
			c.Payments.SecretKey = "sk_test"
			c.Payments.WebhookSecret = ""
		}, "webhook_secret"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Auth.AppSecret = testSecret
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want %q mention", err, tc.want)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	cases := map[string]string{
		"SPARKPIT_SERVER_PORT":                "server.port",
		"SPARKPIT_SERVER_REQUESTS_PER_MINUTE": "server.requests_per_minute",
		"SPARKPIT_AUTH_APP_SECRET":            "auth.app_secret",
		"SPARKPIT_EVENTS_HEARTBEAT_INTERVAL":  "events.heartbeat_interval",
		"SPARKPIT_PAYMENTS_WEBHOOK_TOLERANCE": "payments.webhook_tolerance",
	}
	for in, want := range cases {
		if got := envTransform(in); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", in, got, want)
		}
	}
}
