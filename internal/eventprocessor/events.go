// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/sparkpit/sparkpit/internal/audit"
)

// SchemaVersion is the current envelope schema version. Increment on
// breaking changes to Envelope.
const SchemaVersion = 1

// Envelope is the wire form of a platform event on the sparkpit.events
// subjects. It is a flattened projection of an audit event: everything
// the downstream indexer needs, nothing more.
type Envelope struct {
	SchemaVersion int `json:"schema_version,omitempty"`

	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	Severity    string          `json:"severity"`
	Outcome     string          `json:"outcome"`
	ActorID     string          `json:"actor_id"`
	ActorType   string          `json:"actor_type"`
	ActorHandle string          `json:"actor_handle,omitempty"`
	TargetID    string          `json:"target_id,omitempty"`
	TargetType  string          `json:"target_type,omitempty"`
	TargetName  string          `json:"target_name,omitempty"`
	RoomID      string          `json:"room_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EnvelopeFromAudit projects an audit event into its wire form.
func EnvelopeFromAudit(ev *audit.Event) *Envelope {
	env := &Envelope{
		SchemaVersion: SchemaVersion,
		EventID:       ev.ID,
		Type:          string(ev.Type),
		Severity:      string(ev.Severity),
		Outcome:       string(ev.Outcome),
		ActorID:       ev.Actor.ID,
		ActorType:     ev.Actor.Type,
		ActorHandle:   ev.Actor.Handle,
		RoomID:        ev.RoomID,
		Description:   ev.Description,
		Metadata:      ev.Metadata,
		OccurredAt:    ev.Timestamp,
	}
	if ev.Target != nil {
		env.TargetID = ev.Target.ID
		env.TargetType = ev.Target.Type
		env.TargetName = ev.Target.Name
	}
	return env
}

// Validate checks required fields.
func (e *Envelope) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("envelope: event_id required")
	}
	if e.Type == "" {
		return fmt.Errorf("envelope: type required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("envelope: occurred_at required")
	}
	return nil
}

// Topic returns the NATS subject for this envelope. All audit-derived
// events share one subject; ordering within the feed matters more than
// per-type fan-out.
func (e *Envelope) Topic() string {
	return TopicAudit
}

// Serialize encodes the envelope for publishing.
func Serialize(e *Envelope) ([]byte, error) {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Deserialize decodes an envelope from the wire and validates it.
func Deserialize(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.SchemaVersion == 0 {
		env.SchemaVersion = 1
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}
