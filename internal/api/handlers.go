// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package api exposes the HTTP surface: REST handlers, the WebSocket
// upgrade endpoint, and the chi router wiring them together.
package api

import (
	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/authz"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/eventprocessor"
	"github.com/sparkpit/sparkpit/internal/payments"
	"github.com/sparkpit/sparkpit/internal/websocket"
)

// Handler bundles the dependencies every endpoint reaches for.
type Handler struct {
	store    *database.Store
	jwt      *auth.JWTManager
	secrets  *auth.SecretBox
	hub      *websocket.Hub
	auditor  *audit.Logger
	payments *payments.Service
	pipeline *eventprocessor.Pipeline
	authMW   *auth.Middleware
	authzMW  *authz.Middleware
}

// Options carries the handler dependencies. Auditor, payments, and
// pipeline may be nil in tests that exercise unrelated endpoints.
type Options struct {
	Store      *database.Store
	JWTManager *auth.JWTManager
	Secrets    *auth.SecretBox
	Hub        *websocket.Hub
	Auditor    *audit.Logger
	Payments   *payments.Service
	Pipeline   *eventprocessor.Pipeline
	AuthMW     *auth.Middleware
	AuthzMW    *authz.Middleware
}

// NewHandler creates the API handler set.
func NewHandler(opts Options) *Handler {
	return &Handler{
		store:    opts.Store,
		jwt:      opts.JWTManager,
		secrets:  opts.Secrets,
		hub:      opts.Hub,
		auditor:  opts.Auditor,
		payments: opts.Payments,
		pipeline: opts.Pipeline,
		authMW:   opts.AuthMW,
		authzMW:  opts.AuthzMW,
	}
}
