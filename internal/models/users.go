// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package models

import (
	"time"
)

// Global roles. Room-level roles live on Membership.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// Membership status values. Pending members can authenticate but only
// reach onboarding endpoints (profile, invite claim, checkout).
const (
	MembershipPending = "pending"
	MembershipActive  = "active"
)

// User is a registered account. PasswordHash never crosses the API
// boundary; handlers return PublicUser.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Handle           string    `json:"handle"`
	DisplayName      string    `json:"display_name"`
	PasswordHash     string    `json:"password_hash"`
	Role             string    `json:"role"`
	MembershipStatus string    `json:"membership_status"`
	CreatedAt        time.Time `json:"created_at"`
}

// PublicUser is the API projection of a User.
type PublicUser struct {
	ID               string    `json:"id"`
	Handle           string    `json:"handle"`
	DisplayName      string    `json:"display_name"`
	Role             string    `json:"role"`
	MembershipStatus string    `json:"membership_status"`
	CreatedAt        time.Time `json:"created_at"`
}

// Public returns the API-safe projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:               u.ID,
		Handle:           u.Handle,
		DisplayName:      u.DisplayName,
		Role:             u.Role,
		MembershipStatus: u.MembershipStatus,
		CreatedAt:        u.CreatedAt,
	}
}

// IsActive reports whether the user has an active membership.
func (u *User) IsActive() bool {
	return u.MembershipStatus == MembershipActive
}

// IsAdmin reports whether the user holds the global admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Invite is an admin-issued invite code. Claiming a valid code flips a
// pending membership to active.
type Invite struct {
	Code      string     `json:"code"`
	CreatedBy string     `json:"created_by"`
	MaxUses   int        `json:"max_uses"`
	Uses      int        `json:"uses"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the invite can still be claimed at now.
func (i *Invite) Usable(now time.Time) bool {
	if i.MaxUses > 0 && i.Uses >= i.MaxUses {
		return false
	}
	if i.ExpiresAt != nil && now.After(*i.ExpiresAt) {
		return false
	}
	return true
}

// Reputation tracks a user's bounty track record. CompletionRate is
// approved/claimed, zero when nothing has been claimed.
type Reputation struct {
	UserID            string    `json:"user_id"`
	BountiesClaimed   int       `json:"bounties_claimed"`
	BountiesSubmitted int       `json:"bounties_submitted"`
	BountiesApproved  int       `json:"bounties_approved"`
	CompletionRate    float64   `json:"completion_rate"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Recompute refreshes the derived CompletionRate.
func (r *Reputation) Recompute() {
	if r.BountiesClaimed == 0 {
		r.CompletionRate = 0
		return
	}
	r.CompletionRate = float64(r.BountiesApproved) / float64(r.BountiesClaimed)
}
