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
	"github.com/sparkpit/sparkpit/internal/metrics"
	"github.com/sparkpit/sparkpit/internal/models"
)

const maxBountyPageSize = 200

// CreateBounty posts a bounty into a room the caller belongs to.
func (h *Handler) CreateBounty(w http.ResponseWriter, r *http.Request) {
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
	if !h.requireRoomMember(w, r, room, user) {
		return
	}

	var req CreateBountyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	now := time.Now().UTC()
	bounty := &models.Bounty{
		ID:          uuid.NewString(),
		RoomID:      room.ID,
		CreatorID:   user.ID,
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Tags:        req.Tags,
		Status:      models.BountyOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.CreateBounty(r.Context(), bounty); err != nil {
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeBountyCreated,
			audit.UserActor(user.ID, user.Handle, user.Role),
			&audit.Target{Type: "bounty", ID: bounty.ID, Name: bounty.Title}, room.ID, "bounty created")
	}

	respondSuccess(w, http.StatusCreated, bounty, started)
}

// ListBounties returns bounties filtered by status, tag, and room.
func (h *Handler) ListBounties(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	q := r.URL.Query()
	filter := models.BountyFilter{
		Status: q.Get("status"),
		Tag:    q.Get("tag"),
		Sort:   q.Get("sort"),
		Limit:  clampLimit(queryInt(r, "limit", maxBountyPageSize), maxBountyPageSize, maxBountyPageSize),
	}

	if slug := q.Get("room"); slug != "" {
		room, err := h.store.GetRoomBySlug(r.Context(), slug)
		if err != nil {
			respondStoreError(w, r, err)
			return
		}
		filter.RoomID = room.ID
	}

	bounties, err := h.store.ListBounties(r.Context(), filter)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondCached(w, r, models.Page{Items: bounties, Total: len(bounties)}, started)
}

// GetBounty returns a bounty with its update trail.
func (h *Handler) GetBounty(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	id := chi.URLParam(r, "id")
	bounty, err := h.store.GetBounty(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	updates, err := h.store.ListBountyUpdates(r.Context(), id)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, models.BountyDetail{Bounty: *bounty, Updates: updates}, started)
}

// ClaimBounty moves an open bounty to claimed by the caller.
func (h *Handler) ClaimBounty(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	bounty, err := h.store.ClaimBounty(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	metrics.BountyTransitions.WithLabelValues(models.BountyClaimed).Inc()
	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeBountyClaimed,
			audit.UserActor(user.ID, user.Handle, user.Role),
			&audit.Target{Type: "bounty", ID: bounty.ID, Name: bounty.Title}, bounty.RoomID, "bounty claimed")
	}

	respondSuccess(w, http.StatusOK, bounty, started)
}

// CommentBounty appends a comment. Creator, claimant, or admin.
func (h *Handler) CommentBounty(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	bounty, err := h.store.GetBounty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if user.ID != bounty.CreatorID && user.ID != bounty.ClaimantID && !user.IsAdmin() {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "only the creator, claimant, or an admin may comment", nil)
		return
	}

	var req BountyCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	update := &models.BountyUpdate{
		ID:        uuid.NewString(),
		BountyID:  bounty.ID,
		AuthorID:  user.ID,
		Kind:      models.UpdateComment,
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AddBountyUpdate(r.Context(), update); err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusCreated, update, started)
}

// bountyStatusEvents maps a destination status to its audit event type.
var bountyStatusEvents = map[string]audit.EventType{
	models.BountySubmitted: audit.EventTypeBountySubmitted,
	models.BountyApproved:  audit.EventTypeBountyApproved,
	models.BountyRejected:  audit.EventTypeBountyRejected,
	models.BountyCancelled: audit.EventTypeBountyCancelled,
}

// TransitionBounty drives the bounty lifecycle. Who may request which
// move:
//   - claimed -> submitted: the claimant
//   - submitted -> approved|rejected: the creator or an admin
//   - open|claimed -> cancelled: the creator or an admin
func (h *Handler) TransitionBounty(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req BountyStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	bounty, err := h.store.GetBounty(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if !bountyActorAllowed(bounty, user, req.Status) {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "you may not move this bounty to "+req.Status, nil)
		return
	}

	updated, err := h.store.TransitionBounty(r.Context(), bounty.ID, user.ID, req.Status)
	if err != nil {
		if errors.Is(err, database.ErrInvalidTransition) {
			respondError(w, http.StatusConflict, models.ErrCodeConflict,
				"cannot move a "+bounty.Status+" bounty to "+req.Status, nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}

	metrics.BountyTransitions.WithLabelValues(req.Status).Inc()
	if h.auditor != nil {
		if eventType, known := bountyStatusEvents[req.Status]; known {
			h.auditor.LogDomainEvent(r.Context(), eventType,
				audit.UserActor(user.ID, user.Handle, user.Role),
				&audit.Target{Type: "bounty", ID: updated.ID, Name: updated.Title}, updated.RoomID,
				"bounty "+req.Status)
		}
	}

	respondSuccess(w, http.StatusOK, updated, started)
}

// bountyActorAllowed checks the lifecycle permission matrix.
func bountyActorAllowed(bounty *models.Bounty, user *models.User, to string) bool {
	switch to {
	case models.BountySubmitted:
		return user.ID == bounty.ClaimantID
	case models.BountyApproved, models.BountyRejected, models.BountyCancelled:
		return user.ID == bounty.CreatorID || user.IsAdmin()
	default:
		return false
	}
}
