// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package eventprocessor

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/logging"
)

//nolint:gochecknoinits // quiet logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestEnvelopeFromAudit(t *testing.T) {
	now := time.Now().UTC()
	ev := &audit.Event{
		ID:        "evt-1",
		Timestamp: now,
		Type:      audit.EventTypeBountyApproved,
		Severity:  audit.SeverityInfo,
		Outcome:   audit.OutcomeSuccess,
		Actor: audit.Actor{
			ID:     "user-1",
			Type:   "user",
			Handle: "maya",
			Role:   "moderator",
		},
		Target: &audit.Target{
			ID:   "bounty-1",
			Type: "bounty",
			Name: "Fix the door sensor",
		},
		RoomID:      "room-1",
		Description: "bounty approved",
	}

	env := EnvelopeFromAudit(ev)

	if env.EventID != "evt-1" {
		t.Errorf("Expected EventID=evt-1, got %s", env.EventID)
	}
	if env.Type != "bounty.approved" {
		t.Errorf("Expected Type=bounty.approved, got %s", env.Type)
	}
	if env.ActorHandle != "maya" {
		t.Errorf("Expected ActorHandle=maya, got %s", env.ActorHandle)
	}
	if env.TargetID != "bounty-1" || env.TargetType != "bounty" {
		t.Errorf("Unexpected target: %s/%s", env.TargetType, env.TargetID)
	}
	if env.RoomID != "room-1" {
		t.Errorf("Expected RoomID=room-1, got %s", env.RoomID)
	}
	if !env.OccurredAt.Equal(now) {
		t.Errorf("Expected OccurredAt=%v, got %v", now, env.OccurredAt)
	}
	if err := env.Validate(); err != nil {
		t.Errorf("Expected valid envelope, got %v", err)
	}
}

func TestEnvelopeFromAuditNilTarget(t *testing.T) {
	env := EnvelopeFromAudit(&audit.Event{
		ID:        "evt-2",
		Timestamp: time.Now().UTC(),
		Type:      audit.EventTypeLogin,
		Severity:  audit.SeverityInfo,
		Actor:     audit.Actor{ID: "user-1", Type: "user"},
	})

	if env.TargetID != "" || env.TargetType != "" {
		t.Errorf("Expected empty target, got %s/%s", env.TargetType, env.TargetID)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	env := &Envelope{
		EventID:    "evt-3",
		Type:       "room.created",
		Severity:   "info",
		ActorID:    "user-1",
		RoomID:     "room-9",
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := Serialize(env)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.SchemaVersion != SchemaVersion {
		t.Errorf("Expected SchemaVersion=%d, got %d", SchemaVersion, got.SchemaVersion)
	}
	if got.EventID != env.EventID || got.Type != env.Type || got.RoomID != env.RoomID {
		t.Errorf("Round trip mismatch: %+v", got)
	}
	if !got.OccurredAt.Equal(env.OccurredAt) {
		t.Errorf("Expected OccurredAt=%v, got %v", env.OccurredAt, got.OccurredAt)
	}
}

func TestDeserializeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		errMsg  string
	}{
		{
			name:    "not json",
			payload: "{nope",
			errMsg:  "unmarshal envelope",
		},
		{
			name:    "missing event_id",
			payload: `{"type":"room.created","occurred_at":"2026-08-30T12:00:00Z"}`,
			errMsg:  "event_id required",
		},
		{
			name:    "missing type",
			payload: `{"event_id":"evt-4","occurred_at":"2026-08-30T12:00:00Z"}`,
			errMsg:  "type required",
		},
		{
			name:    "missing occurred_at",
			payload: `{"event_id":"evt-4","type":"room.created"}`,
			errMsg:  "occurred_at required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tt.payload))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestTopic(t *testing.T) {
	env := &Envelope{Type: "bounty.claimed"}
	if env.Topic() != TopicAudit {
		t.Errorf("Expected topic %s, got %s", TopicAudit, env.Topic())
	}
}
