// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package config loads layered configuration: built-in defaults, an
// optional YAML file, then SPARKPIT_-prefixed environment variables,
// each layer overriding the previous one.
package config

import (
	"fmt"
	"time"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Database DatabaseConfig `koanf:"database"`
	Events   EventsConfig   `koanf:"events"`
	Payments PaymentsConfig `koanf:"payments"`
	Audit    AuditConfig    `koanf:"audit"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                  string        `koanf:"host"`
	Port                  int           `koanf:"port"`
	CORSOrigins           []string      `koanf:"cors_origins"`
	RequestsPerMinute     int           `koanf:"requests_per_minute"`
	AuthRequestsPerMinute int           `koanf:"auth_requests_per_minute"`
	ReadTimeout           time.Duration `koanf:"read_timeout"`
	WriteTimeout          time.Duration `koanf:"write_timeout"`
	ShutdownTimeout       time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds token and login settings. AppSecret signs JWTs and
// derives the bot-secret encryption key; it must be at least 32
// characters.
type AuthConfig struct {
	AppSecret   string        `koanf:"app_secret"`
	LoginBurst  int           `koanf:"login_burst"`
	LoginWindow time.Duration `koanf:"login_window"`
}

// DatabaseConfig holds document store settings. An empty path selects
// an in-memory store, which exists for tests and throwaway instances.
type DatabaseConfig struct {
	Path       string `koanf:"path"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// EventsConfig holds the background event pipeline settings.
type EventsConfig struct {
	Enabled           bool          `koanf:"enabled"`
	NATSHost          string        `koanf:"nats_host"`
	NATSPort          int           `koanf:"nats_port"`
	StoreDir          string        `koanf:"store_dir"`
	DurableName       string        `koanf:"durable_name"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
	CleanupInterval   time.Duration `koanf:"cleanup_interval"`
	StalePaymentAge   time.Duration `koanf:"stale_payment_age"`
	AuditRetention    time.Duration `koanf:"audit_retention"`
}

// NATSURL returns the client URL for the embedded NATS server.
func (e EventsConfig) NATSURL() string {
	return fmt.Sprintf("nats://%s:%d", e.NATSHost, e.NATSPort)
}

// PaymentsConfig holds checkout provider credentials. Empty SecretKey
// or WebhookSecret leaves payments unconfigured; the checkout endpoints
// then answer 503 while the rest of the platform works.
type PaymentsConfig struct {
	APIBaseURL       string        `koanf:"api_base_url"`
	SecretKey        string        `koanf:"secret_key"`
	WebhookSecret    string        `koanf:"webhook_secret"`
	WebhookTolerance time.Duration `koanf:"webhook_tolerance"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	QueueSize int `koanf:"queue_size"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// defaultConfig returns the built-in defaults, applied before the file
// and environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8080,
			CORSOrigins:           []string{"*"},
			RequestsPerMinute:     300,
			AuthRequestsPerMinute: 30,
			ReadTimeout:           15 * time.Second,
			WriteTimeout:          30 * time.Second,
			ShutdownTimeout:       15 * time.Second,
		},
		Auth: AuthConfig{
			LoginBurst:  10,
			LoginWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:       "/data/sparkpit",
			SyncWrites: true,
		},
		Events: EventsConfig{
			Enabled:           true,
			NATSHost:          "127.0.0.1",
			NATSPort:          4222,
			StoreDir:          "/data/nats/jetstream",
			DurableName:       "feed-indexer",
			HeartbeatInterval: 30 * time.Second,
			CleanupInterval:   time.Hour,
			StalePaymentAge:   24 * time.Hour,
			AuditRetention:    90 * 24 * time.Hour,
		},
		Payments: PaymentsConfig{
			WebhookTolerance: 5 * time.Minute,
		},
		Audit: AuditConfig{
			QueueSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if len(c.Auth.AppSecret) < 32 {
		return fmt.Errorf("auth.app_secret must be at least 32 characters (got %d)", len(c.Auth.AppSecret))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RequestsPerMinute < 1 {
		return fmt.Errorf("server.requests_per_minute must be positive")
	}
	if c.Server.AuthRequestsPerMinute < 1 {
		return fmt.Errorf("server.auth_requests_per_minute must be positive")
	}
	if c.Events.Enabled {
		if c.Events.NATSPort < 1 || c.Events.NATSPort > 65535 {
			return fmt.Errorf("events.nats_port %d out of range", c.Events.NATSPort)
		}
		if c.Events.HeartbeatInterval <= 0 {
			return fmt.Errorf("events.heartbeat_interval must be positive")
		}
	}
	if c.Payments.SecretKey != "" && c.Payments.WebhookSecret == "" {
		return fmt.Errorf("payments.webhook_secret is required when payments.secret_key is set")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// PaymentsConfigured reports whether checkout credentials are present.
func (c *Config) PaymentsConfigured() bool {
	return c.Payments.SecretKey != "" && c.Payments.WebhookSecret != ""
}
