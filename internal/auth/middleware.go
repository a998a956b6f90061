// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/models"
)

type contextKey string

// ClaimsContextKey carries the validated *Claims for the request.
const ClaimsContextKey contextKey = "claims"

// ClaimsFromContext returns the claims stored by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}

// Middleware enforces authentication and membership requirements on
// HTTP routes.
type Middleware struct {
	jwtManager   *JWTManager
	store        *database.Store
	loginLimiter *RateLimiter
}

// NewMiddleware builds the middleware. The login limiter is shared with
// the login handler and cleaned up in the background.
func NewMiddleware(jwtManager *JWTManager, store *database.Store, loginLimiter *RateLimiter) *Middleware {
	return &Middleware{
		jwtManager:   jwtManager,
		store:        store,
		loginLimiter: loginLimiter,
	}
}

// LoginLimiter exposes the shared limiter for the login handler.
func (m *Middleware) LoginLimiter() *RateLimiter {
	return m.loginLimiter
}

// Authenticate validates the bearer token and stores its claims in the
// request context. Both user and bot tokens pass; downstream
// middleware narrows further.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "missing bearer token")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Token validation failed")
			writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActiveMember rejects bot tokens and users whose membership is
// not active. Membership is read fresh from the store so refunds and
// deactivations take effect immediately rather than at token expiry.
func (m *Middleware) RequireActiveMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.TokenType != TokenTypeUser {
			writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "user token required")
			return
		}

		user, err := m.store.GetUser(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "unknown user")
				return
			}
			writeError(w, http.StatusInternalServerError, models.ErrCodeInternal, "failed to load user")
			return
		}
		if user.MembershipStatus != models.MembershipActive {
			writeError(w, http.StatusForbidden, models.ErrCodeMembershipInactive, "membership is not active")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only users with the admin role.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || claims.TokenType != TokenTypeUser || claims.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, models.ErrCodeForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireBotScope allows bot tokens carrying the scope, and any user
// token.
func (m *Middleware) RequireBotScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "authentication required")
				return
			}
			if !claims.HasScope(scope) {
				writeError(w, http.StatusForbidden, models.ErrCodeForbidden, "token missing scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitLogin guards the login and bot handshake endpoints per
// client IP.
func (m *Middleware) RateLimitLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !m.loginLimiter.Allow(ip) {
			logging.Ctx(r.Context()).Warn().Str("ip", ip).Msg("Login rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, models.ErrCodeRateLimited, "too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// clientIP strips the port from RemoteAddr. Proxy headers are not
// trusted here; deployments behind a proxy terminate them upstream.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := models.NewErrorResponse(code, message, nil)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode error response")
	}
}
