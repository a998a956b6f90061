// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package models

import (
	"time"
)

// Message author types.
const (
	AuthorUser = "user"
	AuthorBot  = "bot"
)

// MessageBodyMaxLen bounds message bodies at the API boundary.
const MessageBodyMaxLen = 4000

// Message is a single post in a channel. AuthorHandle is denormalized so
// pages render without a join.
type Message struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	RoomID       string    `json:"room_id"`
	AuthorType   string    `json:"author_type"`
	AuthorID     string    `json:"author_id"`
	AuthorHandle string    `json:"author_handle"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessagePage is a newest-first page of messages. NextCursor is the
// RFC3339Nano created_at of the oldest message returned, empty when the
// page is the last one.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
