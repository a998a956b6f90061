// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package eventprocessor

import (
	"time"
)

// StreamName is the JetStream stream holding all platform events.
const StreamName = "SPARKPIT_EVENTS"

// TopicAudit is the subject all audit-derived events ride. The stream
// captures the whole sparkpit.events.> hierarchy so future subjects can
// be added without re-provisioning.
const TopicAudit = "sparkpit.events.audit"

// Config gathers the full pipeline configuration. When Enabled is
// false no NATS machinery is started and audit events are indexed
// inline on the caller's goroutine.
type Config struct {
	Enabled bool

	Server     ServerConfig
	Publisher  PublisherConfig
	Subscriber SubscriberConfig
	Stream     StreamConfig
	Breaker    CircuitBreakerConfig

	// HeartbeatInterval is how often the worker records liveness.
	HeartbeatInterval time.Duration

	// CleanupInterval is how often expired challenges, stale payment
	// sessions, and aged audit events are swept.
	CleanupInterval time.Duration

	// StalePaymentAge is how old a pending payment session must be
	// before the sweep marks it expired.
	StalePaymentAge time.Duration

	// AuditRetention is how long audit events are kept on disk.
	AuditRetention time.Duration
}

// DefaultConfig returns production defaults for the event pipeline.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		Server:            DefaultServerConfig(),
		Publisher:         DefaultPublisherConfig("nats://127.0.0.1:4222"),
		Subscriber:        DefaultSubscriberConfig("nats://127.0.0.1:4222"),
		Stream:            DefaultStreamConfig(),
		Breaker:           DefaultCircuitBreakerConfig("event-publish"),
		HeartbeatInterval: 30 * time.Second,
		CleanupInterval:   time.Hour,
		StalePaymentAge:   24 * time.Hour,
		AuditRetention:    90 * 24 * time.Hour,
	}
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   512 << 20, // 512MB
		JetStreamMaxStore: 4 << 30,  // 4GB
	}
}

// PublisherConfig holds publisher connection settings.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool //nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns defaults for the publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds durable consumer settings.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName binds the consumer to a pre-created stream. Required
	// because sparkpit.events.> is a wildcard hierarchy and NATS stream
	// names cannot contain wildcards.
	StreamName string
}

// DefaultSubscriberConfig returns defaults for the subscriber.
// SubscribersCount is 1 so feed entries land in append order.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "sparkpit-indexer",
		QueueGroup:       "indexers",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       StreamName,
	}
}

// StreamConfig defines platform event stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            StreamName,
		Subjects:        []string{"sparkpit.events.>"},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        2 << 30, // 2GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Consecutive failures before opening
}

// DefaultCircuitBreakerConfig returns defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
