// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"net/http"
	"time"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/models"
)

// CreateInvite mints an invite code. Admin only.
func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	admin, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	code, err := database.GenerateInviteCode()
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	invite := &models.Invite{
		Code:      code,
		CreatedBy: admin.ID,
		MaxUses:   req.MaxUses,
		CreatedAt: time.Now().UTC(),
	}
	if req.ExpiresInHours > 0 {
		expires := invite.CreatedAt.Add(time.Duration(req.ExpiresInHours) * time.Hour)
		invite.ExpiresAt = &expires
	}

	if err := h.store.CreateInvite(r.Context(), invite); err != nil {
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeInviteCreated,
			audit.UserActor(admin.ID, admin.Handle, admin.Role),
			&audit.Target{Type: "invite", ID: invite.Code}, "", "invite created")
	}

	respondSuccess(w, http.StatusCreated, invite, started)
}

// inviteView decorates an invite with its remaining uses.
type inviteView struct {
	models.Invite
	RemainingUses int  `json:"remaining_uses"`
	Usable        bool `json:"usable"`
}

// ListInvites returns every invite with remaining uses. Admin only.
func (h *Handler) ListInvites(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	invites, err := h.store.ListInvites(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	now := time.Now().UTC()
	views := make([]inviteView, 0, len(invites))
	for _, inv := range invites {
		remaining := 0
		if inv.MaxUses > 0 {
			remaining = inv.MaxUses - inv.Uses
			if remaining < 0 {
				remaining = 0
			}
		}
		views = append(views, inviteView{Invite: inv, RemainingUses: remaining, Usable: inv.Usable(now)})
	}

	respondSuccess(w, http.StatusOK, models.Page{Items: views, Total: len(views)}, started)
}
