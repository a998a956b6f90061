// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/models"
)

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 100
)

// ListMessages returns a newest-first page of channel messages. The
// cursor is the created_at of the last message on the previous page.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	room, channel, ok := h.resolveChannel(w, r)
	if !ok {
		return
	}
	if !h.requireRoomMember(w, r, room, user) {
		return
	}

	before := time.Now().UTC()
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "before must be RFC3339Nano", nil)
			return
		}
		before = parsed
	}
	limit := clampLimit(queryInt(r, "limit", defaultMessagePageSize), defaultMessagePageSize, maxMessagePageSize)

	page, err := h.store.ListMessages(r.Context(), channel.ID, before, limit)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondCached(w, r, page, started)
}

// PostMessage persists a message and fans it out to the channel's
// WebSocket clients.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	room, channel, ok := h.resolveChannel(w, r)
	if !ok {
		return
	}
	if !h.requireRoomMember(w, r, room, user) {
		return
	}

	var req PostMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	msg := &models.Message{
		ID:           uuid.NewString(),
		ChannelID:    channel.ID,
		RoomID:       room.ID,
		AuthorType:   models.AuthorUser,
		AuthorID:     user.ID,
		AuthorHandle: user.Handle,
		Body:         req.Body,
		CreatedAt:    time.Now().UTC(),
	}
	h.deliverMessage(w, r, msg, audit.UserActor(user.ID, user.Handle, user.Role), started)
}

// BotPostMessage lets an authenticated bot post into a room it has been
// attached to. The messages:write scope is enforced as route middleware.
func (h *Handler) BotPostMessage(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.TokenType != auth.TokenTypeBot {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "bot token required", nil)
		return
	}

	var req BotMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	room, err := h.store.GetRoomBySlug(r.Context(), req.RoomSlug)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	member, err := h.store.IsBotMember(r.Context(), room.ID, claims.Subject)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !member {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "bot is not attached to this room", nil)
		return
	}

	channel, err := h.store.GetChannel(r.Context(), room.ID, req.ChannelSlug)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if err := h.store.MarkBotOnline(r.Context(), claims.Subject); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("bot_id", claims.Subject).Msg("Failed to refresh bot last-seen")
	}

	msg := &models.Message{
		ID:           uuid.NewString(),
		ChannelID:    channel.ID,
		RoomID:       room.ID,
		AuthorType:   models.AuthorBot,
		AuthorID:     claims.Subject,
		AuthorHandle: claims.Handle,
		Body:         req.Body,
		CreatedAt:    time.Now().UTC(),
	}
	h.deliverMessage(w, r, msg, audit.BotActor(claims.Subject, claims.Handle), started)
}

// deliverMessage persists, broadcasts, and audits a message.
func (h *Handler) deliverMessage(w http.ResponseWriter, r *http.Request, msg *models.Message, actor audit.Actor, started time.Time) {
	if err := h.store.CreateMessage(r.Context(), msg); err != nil {
		respondStoreError(w, r, err)
		return
	}

	if h.hub != nil {
		h.hub.BroadcastMessageCreated(msg)
	}
	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeMessagePosted, actor,
			&audit.Target{Type: "channel", ID: msg.ChannelID}, msg.RoomID, "message posted")
	}

	respondSuccess(w, http.StatusCreated, msg, started)
}

// resolveChannel loads the room and channel named by the route params.
func (h *Handler) resolveChannel(w http.ResponseWriter, r *http.Request) (*models.Room, *models.Channel, bool) {
	room, err := h.store.GetRoomBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondStoreError(w, r, err)
		return nil, nil, false
	}
	channel, err := h.store.GetChannel(r.Context(), room.ID, chi.URLParam(r, "ch"))
	if err != nil {
		respondStoreError(w, r, err)
		return nil, nil, false
	}
	return room, channel, true
}

// requireRoomMember enforces room membership for channel access. Global
// admins pass.
func (h *Handler) requireRoomMember(w http.ResponseWriter, r *http.Request, room *models.Room, user *models.User) bool {
	if user.IsAdmin() {
		return true
	}
	_, err := h.store.GetMembership(r.Context(), room.ID, user.ID)
	if err == nil {
		return true
	}
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "not a member of this room", nil)
		return false
	}
	respondStoreError(w, r, err)
	return false
}
