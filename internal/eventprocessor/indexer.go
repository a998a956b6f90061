// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package eventprocessor

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/metrics"
)

// feedWhitelist names the event types that surface in the member-facing
// activity feed. Everything else stays in the audit trail only: login
// attempts, payment details, and admin actions are not for members.
var feedWhitelist = map[string]bool{
	"room.created":     true,
	"room.joined":      true,
	"bot.joined":       true,
	"bounty.created":   true,
	"bounty.claimed":   true,
	"bounty.submitted": true,
	"bounty.approved":  true,
}

// notifySeverities are the severities that raise an admin notification.
var notifySeverities = map[string]bool{
	"warning":  true,
	"critical": true,
}

// Indexer projects platform events into the activity and notification
// feeds. It is the single consumer of the audit subject; apply is
// idempotent at the feed level because entries are keyed by event ID.
type Indexer struct {
	store *database.Store
}

// NewIndexer creates an indexer backed by the given store.
func NewIndexer(store *database.Store) *Indexer {
	return &Indexer{store: store}
}

// Apply indexes one envelope. Non-whitelisted, non-alerting events are
// dropped silently; that is the common case.
func (ix *Indexer) Apply(ctx context.Context, env *Envelope) error {
	if feedWhitelist[env.Type] {
		if err := ix.appendActivity(ctx, env); err != nil {
			return err
		}
	}
	if notifySeverities[env.Severity] {
		if err := ix.appendNotification(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) appendActivity(ctx context.Context, env *Envelope) error {
	entry := &database.ActivityEntry{
		ID:          env.EventID,
		Action:      env.Type,
		ActorID:     env.ActorID,
		ActorHandle: env.ActorHandle,
		RoomID:      env.RoomID,
		TargetType:  env.TargetType,
		TargetID:    env.TargetID,
		OccurredAt:  env.OccurredAt,
	}
	if len(env.Metadata) > 0 {
		var details map[string]interface{}
		if err := json.Unmarshal(env.Metadata, &details); err == nil {
			entry.Details = details
		}
	}

	if err := ix.store.AppendActivity(ctx, entry); err != nil {
		metrics.RecordEventDropped("index_failure")
		return fmt.Errorf("append activity %s: %w", env.EventID, err)
	}

	logging.Debug().
		Str("event_id", env.EventID).
		Str("action", env.Type).
		Str("actor_id", env.ActorID).
		Msg("activity indexed")
	return nil
}

func (ix *Indexer) appendNotification(ctx context.Context, env *Envelope) error {
	n := &database.Notification{
		ID:         env.EventID,
		Severity:   env.Severity,
		Action:     env.Type,
		Message:    env.Description,
		OccurredAt: env.OccurredAt,
	}
	if err := ix.store.AppendNotification(ctx, n); err != nil {
		metrics.RecordEventDropped("notify_failure")
		return fmt.Errorf("append notification %s: %w", env.EventID, err)
	}
	return nil
}
