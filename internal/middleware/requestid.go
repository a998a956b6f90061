// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package middleware holds HTTP middleware shared across the router:
// request IDs and Prometheus instrumentation. Authentication and
// authorization middleware live with their packages.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/logging"
)

type contextKey string

// RequestIDKey carries the request ID in the context.
const RequestIDKey contextKey = "request_id"

// RequestID assigns each request a unique ID, honoring X-Request-ID
// from upstream proxies, and threads it plus a fresh correlation ID
// into the logging context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = logging.ContextWithRequestID(ctx, requestID)
		ctx = logging.ContextWithNewCorrelationID(ctx)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
