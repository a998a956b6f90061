// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package main is the entry point for the Sparkpit server.
//
// Sparkpit is a self-hosted gated community platform: membership is
// granted by invite or a one-time join payment, members talk in room
// channels over REST and WebSocket, registered bots post through a
// scoped token API, and bounties track community work.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (file, then environment)
//  2. Store: BadgerDB document store (in-memory when no path is set)
//  3. Auth: JWT manager, bot secret box, login rate limiter
//  4. WebSocket hub: channel fan-out for real-time message delivery
//  5. Audit: async logger persisted in the Badger store
//  6. Event pipeline: embedded NATS JetStream feeding the activity feed
//  7. Payments: Stripe-compatible checkout provider and webhook verifier
//  8. HTTP server: chi router with the full REST surface
//
// All long-lived components run under a suture supervisor tree.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables with the SPARKPIT_ prefix
//   - Config file (sparkpit.yaml, or SPARKPIT_CONFIG)
//   - Built-in defaults
//
// The only required setting is the signing secret:
//
//	export SPARKPIT_AUTH_APP_SECRET=$(openssl rand -hex 32)
//	./sparkpit
//
// Payments stay disabled until provider credentials are set:
//
//	export SPARKPIT_PAYMENTS_SECRET_KEY=sk_live_...
//	export SPARKPIT_PAYMENTS_WEBHOOK_SECRET=whsec_...
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Drains the audit buffer and closes the store
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sparkpit/sparkpit/internal/api"
	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/authz"
	"github.com/sparkpit/sparkpit/internal/config"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/eventprocessor"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/payments"
	"github.com/sparkpit/sparkpit/internal/supervisor"
	"github.com/sparkpit/sparkpit/internal/supervisor/services"
	ws "github.com/sparkpit/sparkpit/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Bool("events_enabled", cfg.Events.Enabled).
		Bool("payments_configured", cfg.PaymentsConfigured()).
		Msg("Starting Sparkpit")

	store, err := database.Open(database.Options{
		Path:       cfg.Database.Path,
		SyncWrites: cfg.Database.SyncWrites,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	jwtManager, err := auth.NewJWTManager(cfg.Auth.AppSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}

	secrets, err := auth.NewSecretBox(cfg.Auth.AppSecret)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize secret box")
	}

	loginLimiter := auth.NewRateLimiter(cfg.Auth.LoginBurst, cfg.Auth.LoginWindow)
	authMW := auth.NewMiddleware(jwtManager, store, loginLimiter)

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}
	authzMW := authz.NewMiddleware(enforcer)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := ws.NewHub()

	// Audit events live in their own key space inside the main store.
	auditConfig := audit.DefaultConfig()
	if cfg.Audit.QueueSize > 0 {
		auditConfig.BufferSize = cfg.Audit.QueueSize
	}
	auditLogger := audit.NewLogger(audit.NewBadgerStore(store.DB()), auditConfig)
	defer func() {
		if err := auditLogger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()
	auditLogger.StartCleanupRoutine(ctx)

	pipeline := eventprocessor.NewPipeline(pipelineConfig(cfg), store)
	auditLogger.SetSink(pipeline.Sink())

	var paymentSvc *payments.Service
	if cfg.PaymentsConfigured() {
		provider := payments.NewHTTPProvider(payments.HTTPProviderConfig{
			BaseURL:   cfg.Payments.APIBaseURL,
			SecretKey: cfg.Payments.SecretKey,
		})
		verifier := payments.NewWebhookVerifier(cfg.Payments.WebhookSecret, cfg.Payments.WebhookTolerance)
		paymentSvc = payments.NewService(store, provider, verifier, auditLogger)
		logging.Info().Msg("Payment provider configured")
	} else {
		logging.Warn().Msg("Payments not configured - checkout endpoints will refuse requests")
	}

	handler := api.NewHandler(api.Options{
		Store:      store,
		JWTManager: jwtManager,
		Secrets:    secrets,
		Hub:        wsHub,
		Auditor:    auditLogger,
		Payments:   paymentSvc,
		Pipeline:   pipeline,
		AuthMW:     authMW,
		AuthzMW:    authzMW,
	})

	server := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: handler.Routes(api.RouterConfig{
			AllowedOrigins:        cfg.Server.CORSOrigins,
			RequestsPerMinute:     cfg.Server.RequestsPerMinute,
			AuthRequestsPerMinute: cfg.Server.AuthRequestsPerMinute,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Bridge zerolog to slog for sutureslog
	slogLogger := logging.NewSlogLogger()

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Data layer services
	tree.AddDataService(services.NewStoreGCService(store, 10*time.Minute))
	tree.AddDataService(eventprocessor.NewCleanupService(store, audit.NewBadgerStore(store.DB()), pipelineConfig(cfg)))

	// Messaging layer services
	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddMessagingService(pipeline)
	tree.AddMessagingService(eventprocessor.NewHeartbeatService(store, cfg.Events.HeartbeatInterval))

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}

// pipelineConfig maps the application configuration onto the event
// pipeline's own config type.
func pipelineConfig(cfg *config.Config) eventprocessor.Config {
	pc := eventprocessor.DefaultConfig()
	pc.Enabled = cfg.Events.Enabled
	pc.Server.Host = cfg.Events.NATSHost
	pc.Server.Port = cfg.Events.NATSPort
	pc.Server.StoreDir = cfg.Events.StoreDir

	url := cfg.Events.NATSURL()
	pc.Publisher = eventprocessor.DefaultPublisherConfig(url)
	pc.Subscriber = eventprocessor.DefaultSubscriberConfig(url)
	if cfg.Events.DurableName != "" {
		pc.Subscriber.DurableName = cfg.Events.DurableName
	}

	pc.HeartbeatInterval = cfg.Events.HeartbeatInterval
	pc.CleanupInterval = cfg.Events.CleanupInterval
	pc.StalePaymentAge = cfg.Events.StalePaymentAge
	pc.AuditRetention = cfg.Events.AuditRetention
	return pc
}
