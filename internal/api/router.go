// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sparkpit/sparkpit/internal/middleware"
	"github.com/sparkpit/sparkpit/internal/models"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	AllowedOrigins []string
	// RequestsPerMinute is the general per-IP budget; auth endpoints
	// get a tighter one.
	RequestsPerMinute     int
	AuthRequestsPerMinute int
}

// DefaultRouterConfig returns production limits.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		AllowedOrigins:        []string{"*"},
		RequestsPerMinute:     300,
		AuthRequestsPerMinute: 30,
	}
}

// Routes assembles the full HTTP surface.
func (h *Handler) Routes(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Auth surface. The login endpoint additionally runs the shared
	// per-IP token-bucket limiter so credential stuffing stalls even
	// behind rotating proxies within a /24.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.AuthRequestsPerMinute, time.Minute))
		r.Use(middleware.PrometheusMetrics)

		r.Post("/register", h.Register)
		r.With(h.authMW.RateLimitLogin).Post("/login", h.Login)
		r.With(h.authMW.Authenticate).Get("/me", h.Me)
	})

	// Bot handshake. Unauthenticated by design: the handshake is how a
	// bot obtains its token. Same strict limits as login.
	r.Route("/api/bots/{handle}", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.AuthRequestsPerMinute, time.Minute))
		r.Use(middleware.PrometheusMetrics)

		r.With(h.authMW.RateLimitLogin).Post("/challenge", h.BotChallenge)
		r.With(h.authMW.RateLimitLogin).Post("/verify", h.BotVerify)

		// Authenticated bot profile operations share the subtree so
		// the {handle} param resolves consistently.
		r.Group(func(r chi.Router) {
			r.Use(h.authMW.Authenticate)
			r.Get("/", h.GetBot)
			r.Patch("/", h.UpdateBot)
		})
	})

	// Provider webhook: authenticated by its HMAC signature, never by a
	// bearer token.
	r.With(middleware.PrometheusMetrics).Post("/api/payments/webhook", h.PaymentWebhook)

	// Onboarding surface: any authenticated user, active or pending.
	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RequestsPerMinute, time.Minute))
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.authMW.Authenticate)

		r.Post("/invites/claim", h.ClaimInvite)
		r.Post("/payments/checkout", h.Checkout)
		r.Get("/payments/status/{sessionID}", h.PaymentStatus)

		// Everything below needs an active membership.
		r.Group(func(r chi.Router) {
			r.Use(h.authMW.RequireActiveMember)

			r.Route("/rooms", func(r chi.Router) {
				r.With(h.authzMW.Authorize("rooms", "write")).Post("/", h.CreateRoom)
				r.With(h.authzMW.Authorize("rooms", "read")).Get("/", h.ListRooms)
				r.Route("/{slug}", func(r chi.Router) {
					r.With(h.authzMW.Authorize("rooms", "read")).Get("/", h.GetRoom)
					r.With(h.authzMW.Authorize("rooms", "write")).Post("/join", h.JoinRoom)
					r.With(h.authzMW.Authorize("channels", "write")).Post("/channels", h.CreateChannel)
					r.With(h.authzMW.Authorize("bots", "write")).Post("/bots", h.AttachBot)
					r.With(h.authzMW.Authorize("bounties", "write")).Post("/bounties", h.CreateBounty)

					r.Route("/channels/{ch}/messages", func(r chi.Router) {
						r.With(h.authzMW.Authorize("messages", "read")).Get("/", h.ListMessages)
						r.With(h.authzMW.Authorize("messages", "write")).Post("/", h.PostMessage)
					})
				})
			})

			r.Route("/bots", func(r chi.Router) {
				r.With(h.authzMW.Authorize("bots", "write")).Post("/", h.CreateBot)
				r.With(h.authzMW.Authorize("bots", "read")).Get("/", h.ListBots)
			})

			r.Route("/bounties", func(r chi.Router) {
				r.Use(h.authzMW.Authorize("bounties", "read"))
				r.Get("/", h.ListBounties)
				r.Get("/{id}", h.GetBounty)
				r.With(h.authzMW.Authorize("bounties", "write")).Post("/{id}/claim", h.ClaimBounty)
				r.With(h.authzMW.Authorize("bounties", "write")).Post("/{id}/updates", h.CommentBounty)
				r.With(h.authzMW.Authorize("bounties", "write")).Post("/{id}/status", h.TransitionBounty)
			})

			r.With(h.authzMW.Authorize("activity", "read")).Get("/activity", h.Activity)
			r.With(h.authzMW.Authorize("activity", "read")).Get("/activity/mine", h.MyActivity)
		})

		// Bot message posting rides a bot token, not a membership.
		r.With(h.authMW.RequireBotScope(models.ScopeMessagesWrite)).Post("/bot/messages", h.BotPostMessage)

		// Admin surface.
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMW.RequireAdmin)

			r.Post("/invites", h.CreateInvite)
			r.Get("/invites", h.ListInvites)
			r.Get("/audit", h.AuditQuery)
			r.Get("/notifications", h.Notifications)
			r.Get("/refunds", h.ListRefunds)
			r.Post("/refunds/{sessionID}", h.RefundPayment)
			r.Get("/ops", h.Ops)
		})
	})

	// WebSocket upgrade authenticates via query token inside the
	// handler; middleware-borne bearer auth does not apply.
	r.Get("/ws/channels/{channelID}", h.ChannelWebSocket)

	return r
}
