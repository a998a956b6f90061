// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/models"
)

// AuthResponse is the login and registration payload.
type AuthResponse struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

// Register creates an account. The first account on a fresh install
// becomes the active admin; everyone after starts as a pending member
// unless a valid invite code comes with the request.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	// Reject a dead invite before creating the account so the caller
	// can retry with a good code.
	if req.InviteCode != "" {
		invite, err := h.store.GetInvite(r.Context(), req.InviteCode)
		if err != nil || !invite.Usable(time.Now().UTC()) {
			respondError(w, http.StatusBadRequest, models.ErrCodeInviteInvalid, "invite expired or exhausted", nil)
			return
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), nil)
		return
	}

	count, err := h.store.CountUsers(r.Context())
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	user := &models.User{
		ID:               uuid.NewString(),
		Email:            req.Email,
		Handle:           req.Handle,
		DisplayName:      req.DisplayName,
		PasswordHash:     hash,
		Role:             models.RoleMember,
		MembershipStatus: models.MembershipPending,
		CreatedAt:        time.Now().UTC(),
	}
	if count == 0 {
		user.Role = models.RoleAdmin
		user.MembershipStatus = models.MembershipActive
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, models.ErrCodeConflict, "email or handle already registered", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}

	if req.InviteCode != "" && user.MembershipStatus == models.MembershipPending {
		if err := h.store.ClaimInvite(r.Context(), req.InviteCode, user.ID); err != nil {
			// Lost the race for the last use; the account stays
			// pending and can claim another code later.
			logging.Ctx(r.Context()).Warn().Err(err).Str("user_id", user.ID).Msg("Invite claim at signup failed")
		} else {
			user.MembershipStatus = models.MembershipActive
			if h.auditor != nil {
				h.auditor.LogDomainEvent(r.Context(), audit.EventTypeInviteClaimed,
					audit.UserActor(user.ID, user.Handle, user.Role), nil, "", "invite claimed at signup")
			}
		}
	}

	token, err := h.jwt.GenerateUserToken(user)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeSignup,
			audit.UserActor(user.ID, user.Handle, user.Role), nil, "", "account registered")
	}

	respondSuccess(w, http.StatusCreated, AuthResponse{Token: token, User: user.Public()}, started)
}

// Login verifies credentials and issues a user token. The per-IP
// limiter runs as route middleware before this handler.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.logLoginFailed(r, req.Email)
			respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid credentials", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.logLoginFailed(r, req.Email)
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid credentials", nil)
		return
	}

	token, err := h.jwt.GenerateUserToken(user)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogLogin(r.Context(), audit.UserActor(user.ID, user.Handle, user.Role), audit.SourceFromRequest(r))
	}

	respondSuccess(w, http.StatusOK, AuthResponse{Token: token, User: user.Public()}, started)
}

func (h *Handler) logLoginFailed(r *http.Request, email string) {
	if h.auditor != nil {
		h.auditor.LogLoginFailed(r.Context(), email, audit.SourceFromRequest(r))
	}
}

// Me returns the authenticated user's account and reputation.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	rep, err := h.store.GetReputation(r.Context(), user.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		respondStoreError(w, r, err)
		return
	}

	payload := struct {
		User       models.PublicUser  `json:"user"`
		Reputation *models.Reputation `json:"reputation,omitempty"`
	}{User: user.Public(), Reputation: rep}

	respondSuccess(w, http.StatusOK, payload, started)
}

// ClaimInvite flips a pending member to active via an invite code.
func (h *Handler) ClaimInvite(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if user.MembershipStatus == models.MembershipActive {
		respondError(w, http.StatusConflict, models.ErrCodeConflict, "membership is already active", nil)
		return
	}

	var req ClaimInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	if err := h.store.ClaimInvite(r.Context(), req.Code, user.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusBadRequest, models.ErrCodeInviteInvalid, "invite expired or exhausted", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeInviteClaimed,
			audit.UserActor(user.ID, user.Handle, user.Role), nil, "", "invite claimed")
	}

	user.MembershipStatus = models.MembershipActive
	respondSuccess(w, http.StatusOK, user.Public(), started)
}

// currentUser loads the authenticated user behind the request claims,
// writing the error response itself on failure.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.TokenType != auth.TokenTypeUser {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "user token required", nil)
		return nil, false
	}

	user, err := h.store.GetUser(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "unknown user", nil)
			return nil, false
		}
		respondStoreError(w, r, err)
		return nil, false
	}
	return user, true
}
