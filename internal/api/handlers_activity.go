// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"net/http"
	"time"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/models"
)

const (
	defaultFeedPageSize  = 50
	maxFeedPageSize      = 200
	defaultAuditPageSize = 200
)

// Activity returns the worker-built activity feed, globally or for one
// room. Entries only exist for whitelisted community actions.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	q := r.URL.Query()
	var since time.Time
	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "since must be RFC3339", nil)
			return
		}
		since = parsed
	}
	limit := clampLimit(queryInt(r, "limit", defaultFeedPageSize), defaultFeedPageSize, maxFeedPageSize)

	entries, err := h.store.ListActivity(r.Context(), q.Get("room_id"), since, limit)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondCached(w, r, models.Page{Items: entries, Total: len(entries)}, started)
}

// MyActivity returns the caller's personal feed.
func (h *Handler) MyActivity(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	limit := clampLimit(queryInt(r, "limit", defaultFeedPageSize), defaultFeedPageSize, maxFeedPageSize)

	entries, err := h.store.ListUserActivity(r.Context(), user.ID, limit)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.Page{Items: entries, Total: len(entries)}, started)
}

// Notifications returns the admin notification list built from
// warning and critical audit events.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	limit := clampLimit(queryInt(r, "limit", defaultFeedPageSize), defaultFeedPageSize, maxFeedPageSize)
	notifications, err := h.store.ListNotifications(r.Context(), limit)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.Page{Items: notifications, Total: len(notifications)}, started)
}

// AuditQuery exposes the raw audit trail to admins.
func (h *Handler) AuditQuery(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	if h.auditor == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "audit trail not configured", nil)
		return
	}

	filter := audit.QueryFilter{
		RoomID: r.URL.Query().Get("room_id"),
		Limit:  clampLimit(queryInt(r, "limit", defaultAuditPageSize), defaultAuditPageSize, 1000),
	}
	if raw := r.URL.Query().Get("actor_id"); raw != "" {
		filter.ActorID = raw
	}

	events, err := h.auditor.Query(r.Context(), filter)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.Page{Items: events, Total: len(events)}, started)
}
