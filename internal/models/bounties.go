// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package models

import (
	"time"
)

// Bounty lifecycle states.
//
//	open -> claimed -> submitted -> approved | rejected
//	open | claimed -> cancelled
const (
	BountyOpen      = "open"
	BountyClaimed   = "claimed"
	BountySubmitted = "submitted"
	BountyApproved  = "approved"
	BountyRejected  = "rejected"
	BountyCancelled = "cancelled"
)

// bountyTransitions maps each state to the states reachable from it.
var bountyTransitions = map[string][]string{
	BountyOpen:      {BountyClaimed, BountyCancelled},
	BountyClaimed:   {BountySubmitted, BountyCancelled},
	BountySubmitted: {BountyApproved, BountyRejected},
}

// ValidBountyTransition reports whether from -> to is a legal lifecycle move.
func ValidBountyTransition(from, to string) bool {
	for _, next := range bountyTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Bounty is a task posted in a room with a reward attached.
type Bounty struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	CreatorID   string    `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Reward      int       `json:"reward"`
	Tags        []string  `json:"tags,omitempty"`
	Status      string    `json:"status"`
	ClaimantID  string    `json:"claimant_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasTag reports whether the bounty carries the given tag.
func (b *Bounty) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// BountyUpdate kinds.
const (
	UpdateComment = "comment"
	UpdateStatus  = "status"
)

// BountyUpdate is a comment or a recorded status change on a bounty.
type BountyUpdate struct {
	ID        string    `json:"id"`
	BountyID  string    `json:"bounty_id"`
	AuthorID  string    `json:"author_id"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// BountyDetail is the get-endpoint projection: bounty plus its updates,
// oldest first.
type BountyDetail struct {
	Bounty
	Updates []BountyUpdate `json:"updates"`
}

// BountyFilter narrows bounty listings.
type BountyFilter struct {
	Status string
	Tag    string
	RoomID string
	// Sort is "reward" (descending) or "created" (newest first, default).
	Sort  string
	Limit int
}
