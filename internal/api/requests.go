// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

// Request bodies validated with go-playground/validator before any
// store work. Custom tags (handle, slug, invitecode) are registered in
// internal/validation.

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Handle      string `json:"handle" validate:"required,handle"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=80"`
	InviteCode  string `json:"invite_code" validate:"omitempty,invitecode"`
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// CreateInviteRequest is the body for POST /api/admin/invites.
type CreateInviteRequest struct {
	MaxUses        int `json:"max_uses" validate:"min=0,max=10000"`
	ExpiresInHours int `json:"expires_in_hours" validate:"min=0,max=8760"`
}

// ClaimInviteRequest is the body for POST /api/invites/claim.
type ClaimInviteRequest struct {
	Code string `json:"code" validate:"required,invitecode"`
}

// CreateRoomRequest is the body for POST /api/rooms.
type CreateRoomRequest struct {
	Slug       string `json:"slug" validate:"required,slug,max=64"`
	Name       string `json:"name" validate:"required,min=1,max=80"`
	Topic      string `json:"topic" validate:"omitempty,max=250"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public private"`
}

// CreateChannelRequest is the body for POST /api/rooms/{slug}/channels.
type CreateChannelRequest struct {
	Slug string `json:"slug" validate:"required,slug,max=64"`
	Name string `json:"name" validate:"required,min=1,max=80"`
}

// AttachBotRequest is the body for POST /api/rooms/{slug}/bots.
type AttachBotRequest struct {
	BotHandle string `json:"bot_handle" validate:"required,handle"`
}

// PostMessageRequest is the body for channel message posts.
type PostMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

// BotMessageRequest is the body for POST /api/bot/messages.
type BotMessageRequest struct {
	RoomSlug    string `json:"room_slug" validate:"required,slug"`
	ChannelSlug string `json:"channel_slug" validate:"required,slug"`
	Body        string `json:"body" validate:"required,min=1,max=4000"`
}

// CreateBotRequest is the body for POST /api/bots.
type CreateBotRequest struct {
	Handle      string   `json:"handle" validate:"required,handle"`
	DisplayName string   `json:"display_name" validate:"required,min=1,max=80"`
	Description string   `json:"description" validate:"omitempty,max=500"`
	Scopes      []string `json:"scopes" validate:"required,min=1,dive,botscope"`
}

// UpdateBotRequest is the body for PATCH /api/bots/{handle}. Nil fields
// are left unchanged.
type UpdateBotRequest struct {
	DisplayName *string   `json:"display_name" validate:"omitempty,min=1,max=80"`
	Description *string   `json:"description" validate:"omitempty,max=500"`
	Scopes      *[]string `json:"scopes" validate:"omitempty,min=1,dive,botscope"`
}

// VerifyChallengeRequest is the body for POST /api/bots/{handle}/verify.
type VerifyChallengeRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required,uuid4"`
	Signature   string `json:"signature" validate:"required,hexadecimal,len=64"`
}

// CreateBountyRequest is the body for POST /api/rooms/{slug}/bounties.
type CreateBountyRequest struct {
	Title       string   `json:"title" validate:"required,min=1,max=140"`
	Description string   `json:"description" validate:"omitempty,max=4000"`
	Reward      int      `json:"reward" validate:"min=0"`
	Tags        []string `json:"tags" validate:"omitempty,max=10,dive,min=1,max=32"`
}

// BountyCommentRequest is the body for POST /api/bounties/{id}/updates.
type BountyCommentRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

// BountyStatusRequest is the body for POST /api/bounties/{id}/status.
type BountyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=submitted approved rejected cancelled"`
}

// RefundRequest is the body for POST /api/admin/refunds/{sessionID}.
type RefundRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}
