// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package authz

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/models"
)

// Middleware enforces site-level permissions after authentication.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware creates authorization middleware around an enforcer.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Authorize enforces that the caller's role allows action on object.
// Bot tokens carry no site role and are denied; bot routes use scope
// middleware instead.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.ClaimsFromContext(r.Context())
			if !ok {
				denyJSON(w, http.StatusForbidden, "no authentication context")
				return
			}

			allowed, err := m.enforcer.EnforceRole(claims.Role, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(models.NewErrorResponse(models.ErrCodeInternal, "authorization error", nil))
				return
			}
			if !allowed {
				denyJSON(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func denyJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.NewErrorResponse(models.ErrCodeForbidden, message, nil))
}
