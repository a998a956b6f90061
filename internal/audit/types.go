// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package audit records security and domain events for the admin
// trail. Events are written asynchronously; a whitelisted subset is
// mirrored into the member activity feed by the event pipeline.
package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Authentication and membership events
	EventTypeSignup          EventType = "auth.signup"
	EventTypeLogin           EventType = "auth.login"
	EventTypeLoginFailed     EventType = "auth.login_failed"
	EventTypeUserActivated   EventType = "user.activated"
	EventTypeUserDeactivated EventType = "user.deactivated"

	// Invite events
	EventTypeInviteCreated EventType = "invite.created"
	EventTypeInviteClaimed EventType = "invite.claimed"

	// Room and channel events
	EventTypeRoomCreated    EventType = "room.created"
	EventTypeRoomJoined     EventType = "room.joined"
	EventTypeChannelCreated EventType = "channel.created"

	// Message events
	EventTypeMessagePosted  EventType = "message.posted"
	EventTypeMessageDeleted EventType = "message.deleted"

	// Bot events
	EventTypeBotCreated   EventType = "bot.created"
	EventTypeBotHandshake EventType = "bot.handshake"
	EventTypeBotJoined    EventType = "bot.joined"

	// Bounty events
	EventTypeBountyCreated   EventType = "bounty.created"
	EventTypeBountyClaimed   EventType = "bounty.claimed"
	EventTypeBountySubmitted EventType = "bounty.submitted"
	EventTypeBountyApproved  EventType = "bounty.approved"
	EventTypeBountyRejected  EventType = "bounty.rejected"
	EventTypeBountyCancelled EventType = "bounty.cancelled"

	// Payment events
	EventTypePaymentStarted   EventType = "payment.session_created"
	EventTypePaymentCompleted EventType = "payment.completed"
	EventTypePaymentRefunded  EventType = "payment.refunded"

	// Administrative events
	EventTypeAdminAction EventType = "admin.action"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit trail record.
type Event struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Type          EventType       `json:"type"`
	Severity      Severity        `json:"severity"`
	Outcome       Outcome         `json:"outcome"`
	Actor         Actor           `json:"actor"`
	Target        *Target         `json:"target,omitempty"`
	Source        Source          `json:"source"`
	RoomID        string          `json:"room_id,omitempty"`
	Description   string          `json:"description"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
}

// Actor is who performed the action.
type Actor struct {
	// ID of the user or bot.
	ID string `json:"id"`

	// Type is "user", "bot", or "system".
	Type string `json:"type"`

	// Handle at the time of the event.
	Handle string `json:"handle,omitempty"`

	// Role held at the time of the event.
	Role string `json:"role,omitempty"`
}

// Target is the object of the action.
type Target struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Source is where the request originated.
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Store defines audit event persistence.
type Store interface {
	// Save persists an audit event.
	Save(ctx context.Context, event *Event) error

	// Query retrieves events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than the cutoff.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter narrows audit queries.
type QueryFilter struct {
	Types      []EventType `json:"types,omitempty"`
	Severities []Severity  `json:"severities,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	TargetID   string      `json:"target_id,omitempty"`
	RoomID     string      `json:"room_id,omitempty"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// DefaultQueryFilter returns a sensible default filter.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

func (f *QueryFilter) matches(event *Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Severities) > 0 {
		found := false
		for _, s := range f.Severities {
			if event.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ActorID != "" && event.Actor.ID != f.ActorID {
		return false
	}
	if f.TargetID != "" && (event.Target == nil || event.Target.ID != f.TargetID) {
		return false
	}
	if f.RoomID != "" && event.RoomID != f.RoomID {
		return false
	}
	if f.StartTime != nil && event.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && event.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}
