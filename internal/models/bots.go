// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package models

import (
	"time"
)

// Bot token scopes. A bot token carries a subset of these; handlers check
// the scope relevant to the operation.
const (
	ScopeMessagesWrite = "messages:write"
	ScopeBountiesRead  = "bounties:read"
	ScopeBountiesWrite = "bounties:write"
)

// ValidBotScopes is the closed set of grantable scopes.
var ValidBotScopes = map[string]bool{
	ScopeMessagesWrite: true,
	ScopeBountiesRead:  true,
	ScopeBountiesWrite: true,
}

// Bot status values.
const (
	BotOffline = "offline"
	BotOnline  = "online"
)

// Bot is a machine account owned by a member. The shared secret is stored
// AES-GCM encrypted and only ever returned in plaintext at creation time.
type Bot struct {
	ID              string     `json:"id"`
	Handle          string     `json:"handle"`
	DisplayName     string     `json:"display_name"`
	Description     string     `json:"description,omitempty"`
	OwnerID         string     `json:"owner_id"`
	EncryptedSecret string     `json:"encrypted_secret"`
	Scopes          []string   `json:"scopes"`
	Status          string     `json:"status"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// HasScope reports whether the bot was granted the given scope.
func (b *Bot) HasScope(scope string) bool {
	for _, s := range b.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// PublicBot is the API projection of a Bot; the secret never leaves the
// store after creation.
type PublicBot struct {
	ID          string     `json:"id"`
	Handle      string     `json:"handle"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	OwnerID     string     `json:"owner_id"`
	Scopes      []string   `json:"scopes"`
	Status      string     `json:"status"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Public returns the API-safe projection of b.
func (b *Bot) Public() PublicBot {
	return PublicBot{
		ID:          b.ID,
		Handle:      b.Handle,
		DisplayName: b.DisplayName,
		Description: b.Description,
		OwnerID:     b.OwnerID,
		Scopes:      b.Scopes,
		Status:      b.Status,
		LastSeenAt:  b.LastSeenAt,
		CreatedAt:   b.CreatedAt,
	}
}

// BotChallenge is a single-use handshake nonce. The bot proves possession
// of its secret by returning hex(HMAC-SHA256(secret, nonce)).
type BotChallenge struct {
	ID        string    `json:"id"`
	BotID     string    `json:"bot_id"`
	Nonce     string    `json:"nonce"`
	Used      bool      `json:"used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the challenge has passed its expiry at now.
func (c *BotChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
