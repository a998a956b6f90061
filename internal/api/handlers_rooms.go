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
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/models"
)

// CreateRoom creates a room with its default general channel. The
// creator becomes the owner member.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}

	now := time.Now().UTC()
	room := &models.Room{
		ID:         uuid.NewString(),
		Slug:       req.Slug,
		Name:       req.Name,
		Topic:      req.Topic,
		Visibility: visibility,
		OwnerID:    user.ID,
		CreatedAt:  now,
	}
	general := &models.Channel{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		Slug:      "general",
		Name:      "General",
		CreatedAt: now,
	}

	if err := h.store.CreateRoom(r.Context(), room, general); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, models.ErrCodeConflict, "room slug already taken", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeRoomCreated,
			audit.UserActor(user.ID, user.Handle, user.Role),
			&audit.Target{Type: "room", ID: room.ID, Name: room.Slug}, room.ID, "room created")
	}

	respondSuccess(w, http.StatusCreated, models.RoomDetail{
		Room:        *room,
		Channels:    []models.Channel{*general},
		Joined:      true,
		MemberCount: 1,
	}, started)
}

// ListRooms returns public rooms plus the caller's private rooms.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	rooms, err := h.store.ListRooms(r.Context(), user.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondCached(w, r, models.Page{Items: rooms, Total: len(rooms)}, started)
}

// GetRoom returns a room with its channels. Private rooms require
// membership.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	detail, err := h.store.GetRoomDetail(r.Context(), chi.URLParam(r, "slug"), user.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if !detail.IsPublic() && !detail.Joined && !user.IsAdmin() {
		respondError(w, http.StatusForbidden, models.ErrCodeRoomPrivate, "room is private", nil)
		return
	}

	respondSuccess(w, http.StatusOK, detail, started)
}

// JoinRoom adds the caller to a public room. Idempotent.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	room, err := h.store.GetRoomBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !room.IsPublic() {
		respondError(w, http.StatusForbidden, models.ErrCodeRoomPrivate, "room is private", nil)
		return
	}

	already, err := h.store.JoinRoom(r.Context(), room.ID, user.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if !already && h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeRoomJoined,
			audit.UserActor(user.ID, user.Handle, user.Role),
			&audit.Target{Type: "room", ID: room.ID, Name: room.Slug}, room.ID, "joined room")
	}

	respondSuccess(w, http.StatusOK, struct {
		Joined        bool `json:"joined"`
		AlreadyMember bool `json:"already_member"`
	}{Joined: true, AlreadyMember: already}, started)
}

// CreateChannel adds a channel to a room. Room owner or moderator, or a
// global admin.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateChannelRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	room, ok := h.roomManager(w, r, user)
	if !ok {
		return
	}

	channel := &models.Channel{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		Slug:      req.Slug,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateChannel(r.Context(), channel); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, models.ErrCodeConflict, "channel slug already taken in this room", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeChannelCreated,
			audit.UserActor(user.ID, user.Handle, user.Role),
			&audit.Target{Type: "channel", ID: channel.ID, Name: channel.Slug}, room.ID, "channel created")
	}

	respondSuccess(w, http.StatusCreated, channel, started)
}

// AttachBot adds one of the caller's bots to a room.
func (h *Handler) AttachBot(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req AttachBotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	room, ok := h.roomManager(w, r, user)
	if !ok {
		return
	}

	bot, err := h.store.GetBotByHandle(r.Context(), req.BotHandle)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if bot.OwnerID != user.ID && !user.IsAdmin() {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "you can only attach bots you own", nil)
		return
	}

	if err := h.store.AddBotToRoom(r.Context(), &models.BotMembership{
		RoomID:   room.ID,
		BotID:    bot.ID,
		AddedBy:  user.ID,
		JoinedAt: time.Now().UTC(),
	}); err != nil {
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeBotJoined,
			audit.UserActor(user.ID, user.Handle, user.Role),
			&audit.Target{Type: "bot", ID: bot.ID, Name: bot.Handle}, room.ID, "bot attached to room")
	}

	respondSuccess(w, http.StatusOK, bot.Public(), started)
}

// roomManager resolves the slug route param and enforces that the
// caller may manage the room: owner, room moderator, or global admin.
func (h *Handler) roomManager(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Room, bool) {
	room, err := h.store.GetRoomBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondStoreError(w, r, err)
		return nil, false
	}

	if user.IsAdmin() {
		return room, true
	}

	membership, err := h.store.GetMembership(r.Context(), room.ID, user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "not a member of this room", nil)
			return nil, false
		}
		respondStoreError(w, r, err)
		return nil, false
	}
	if !membership.CanManageChannels() {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "room owner or moderator required", nil)
		return nil, false
	}
	return room, true
}
