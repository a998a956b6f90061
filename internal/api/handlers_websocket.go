// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	gorillaws "github.com/gorilla/websocket"

	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/models"
	"github.com/sparkpit/sparkpit/internal/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set Authorization headers on WebSocket dials, so
	// the token rides in the query string and origin enforcement is
	// delegated to the CORS layer in front of the API.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChannelWebSocket upgrades an authenticated, channel-member connection
// into the fan-out hub.
func (h *Handler) ChannelWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "token query parameter required", nil)
		return
	}

	claims, err := h.jwt.ValidateToken(token)
	if err != nil || claims.TokenType != auth.TokenTypeUser {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid or expired token", nil)
		return
	}

	user, err := h.store.GetUser(r.Context(), claims.Subject)
	if err != nil {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "unknown user", nil)
		return
	}
	if !user.IsActive() {
		respondError(w, http.StatusForbidden, models.ErrCodeMembershipInactive, "membership is not active", nil)
		return
	}

	channelID := chi.URLParam(r, "channelID")
	channel, err := h.store.GetChannelByID(r.Context(), channelID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if !user.IsAdmin() {
		if _, err := h.store.GetMembership(r.Context(), channel.RoomID, user.ID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "not a member of this room", nil)
				return
			}
			respondStoreError(w, r, err)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, channel.ID, user.ID, user.Handle)
	h.hub.Register <- client
	client.Start()
}
