// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package models

import (
	"time"
)

// Room visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Room-level membership roles.
const (
	RoomRoleOwner     = "owner"
	RoomRoleModerator = "moderator"
	RoomRoleMember    = "member"
)

// Room is a top-level conversation space. Every room owns at least one
// channel; creation seeds a default "general" channel.
type Room struct {
	ID         string    `json:"id"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	Topic      string    `json:"topic,omitempty"`
	Visibility string    `json:"visibility"`
	OwnerID    string    `json:"owner_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsPublic reports whether the room can be joined without an invite.
func (r *Room) IsPublic() bool {
	return r.Visibility == VisibilityPublic
}

// Channel is a named message stream inside a room. Slug is unique per room.
type Channel struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to a room with a room-level role.
type Membership struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// CanManageChannels reports whether this membership may create channels
// or attach bots. Global admins bypass this via authz.
func (m *Membership) CanManageChannels() bool {
	return m.Role == RoomRoleOwner || m.Role == RoomRoleModerator
}

// BotMembership links a bot to a room it may post into.
type BotMembership struct {
	RoomID   string    `json:"room_id"`
	BotID    string    `json:"bot_id"`
	AddedBy  string    `json:"added_by"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomSummary is the list-endpoint projection: room plus caller-relative
// fields.
type RoomSummary struct {
	Room
	Joined      bool `json:"joined"`
	MemberCount int  `json:"member_count"`
}

// RoomDetail is the get-endpoint projection: room plus its channels.
type RoomDetail struct {
	Room
	Channels    []Channel `json:"channels"`
	Joined      bool      `json:"joined"`
	MemberCount int       `json:"member_count"`
}
