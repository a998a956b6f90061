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
	"github.com/sparkpit/sparkpit/internal/models"
)

// CreatedBotResponse carries the one-time plaintext secret. It is never
// retrievable again; owners must re-create the bot if they lose it.
type CreatedBotResponse struct {
	Bot    models.PublicBot `json:"bot"`
	Secret string           `json:"secret"`
}

// CreateBot registers a machine account owned by the caller.
func (h *Handler) CreateBot(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateBotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	secret, err := auth.GenerateBotSecret()
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	encrypted, err := h.secrets.Encrypt(secret)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	bot := &models.Bot{
		ID:              uuid.NewString(),
		Handle:          req.Handle,
		DisplayName:     req.DisplayName,
		Description:     req.Description,
		OwnerID:         user.ID,
		EncryptedSecret: encrypted,
		Scopes:          req.Scopes,
		Status:          models.BotOffline,
		CreatedAt:       time.Now().UTC(),
	}

	if err := h.store.CreateBot(r.Context(), bot); err != nil {
		if errors.Is(err, database.ErrConflict) {
			respondError(w, http.StatusConflict, models.ErrCodeConflict, "bot handle already taken", nil)
			return
		}
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeBotCreated,
			audit.UserActor(user.ID, user.Handle, user.Role),
			&audit.Target{Type: "bot", ID: bot.ID, Name: bot.Handle}, "", "bot registered")
	}

	respondSuccess(w, http.StatusCreated, CreatedBotResponse{Bot: bot.Public(), Secret: secret}, started)
}

// GetBot returns a bot's public profile.
func (h *Handler) GetBot(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	bot, err := h.store.GetBotByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondCached(w, r, bot.Public(), started)
}

// ListBots returns the caller's bots.
func (h *Handler) ListBots(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	bots, err := h.store.ListBotsByOwner(r.Context(), user.ID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	views := make([]models.PublicBot, 0, len(bots))
	for i := range bots {
		views = append(views, bots[i].Public())
	}
	respondSuccess(w, http.StatusOK, models.Page{Items: views, Total: len(views)}, started)
}

// UpdateBot patches display name, description, or scopes. Owner or
// admin.
func (h *Handler) UpdateBot(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	bot, err := h.store.GetBotByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if bot.OwnerID != user.ID && !user.IsAdmin() {
		respondError(w, http.StatusForbidden, models.ErrCodeForbidden, "only the owner can modify this bot", nil)
		return
	}

	var req UpdateBotRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	if req.DisplayName != nil {
		bot.DisplayName = *req.DisplayName
	}
	if req.Description != nil {
		bot.Description = *req.Description
	}
	if req.Scopes != nil {
		bot.Scopes = *req.Scopes
	}

	if err := h.store.UpdateBot(r.Context(), bot); err != nil {
		respondStoreError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, bot.Public(), started)
}

// ChallengeResponse is the first half of the bot handshake.
type ChallengeResponse struct {
	ChallengeID string    `json:"challenge_id"`
	Nonce       string    `json:"nonce"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// BotChallenge starts the handshake: the bot fetches a nonce to sign
// with its shared secret.
func (h *Handler) BotChallenge(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	bot, err := h.store.GetBotByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	nonce, err := auth.GenerateChallengeNonce()
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	challenge := &models.BotChallenge{
		ID:        uuid.NewString(),
		BotID:     bot.ID,
		Nonce:     nonce,
		ExpiresAt: time.Now().UTC().Add(auth.ChallengeTTL),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateChallenge(r.Context(), challenge); err != nil {
		respondStoreError(w, r, err)
		return
	}

	respondSuccess(w, http.StatusOK, ChallengeResponse{
		ChallengeID: challenge.ID,
		Nonce:       challenge.Nonce,
		ExpiresAt:   challenge.ExpiresAt,
	}, started)
}

// BotTokenResponse completes the handshake with a scoped bot token.
type BotTokenResponse struct {
	Token string           `json:"token"`
	Bot   models.PublicBot `json:"bot"`
}

// BotVerify completes the handshake: the signature must be
// hex(HMAC-SHA256(secret, nonce)).
func (h *Handler) BotVerify(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	bot, err := h.store.GetBotByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	var req VerifyChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "invalid JSON body", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	challenge, err := h.store.ConsumeChallenge(r.Context(), req.ChallengeID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if challenge.BotID != bot.ID {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "challenge does not belong to this bot", nil)
		return
	}

	secret, err := h.secrets.Decrypt(bot.EncryptedSecret)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if !auth.VerifyChallenge(secret, challenge.Nonce, req.Signature) {
		respondError(w, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid signature", nil)
		return
	}

	token, err := h.jwt.GenerateBotToken(bot)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}
	if err := h.store.MarkBotOnline(r.Context(), bot.ID); err != nil {
		respondStoreError(w, r, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogDomainEvent(r.Context(), audit.EventTypeBotHandshake,
			audit.BotActor(bot.ID, bot.Handle),
			&audit.Target{Type: "bot", ID: bot.ID, Name: bot.Handle}, "", "bot handshake completed")
	}

	bot.Status = models.BotOnline
	respondSuccess(w, http.StatusOK, BotTokenResponse{Token: token, Bot: bot.Public()}, started)
}
