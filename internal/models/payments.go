// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package models

import (
	"time"
)

// JoinFeeCents is the one-time membership fee charged at checkout.
const JoinFeeCents = 4900

// Payment session states. Webhook processing is idempotent: a second
// "completed" for an already-completed session is a no-op.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentExpired   = "expired"
	PaymentRefunded  = "refunded"
)

// PaymentSession tracks one checkout attempt with the payment provider.
type PaymentSession struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ProviderSessionID string    `json:"provider_session_id"`
	AmountCents       int       `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CheckoutURL       string    `json:"checkout_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Terminal reports whether the session can no longer change state,
// refunds excepted.
func (p *PaymentSession) Terminal() bool {
	return p.Status == PaymentCompleted || p.Status == PaymentExpired || p.Status == PaymentRefunded
}

// PaymentTransaction is the durable ledger record upserted when a webhook
// lands. Keyed by ProviderSessionID so replayed webhooks overwrite rather
// than duplicate.
type PaymentTransaction struct {
	ProviderSessionID string    `json:"provider_session_id"`
	UserID            string    `json:"user_id"`
	AmountCents       int       `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// OpsStatus is the admin operations checklist.
type OpsStatus struct {
	ProviderConfigured  bool       `json:"provider_configured"`
	WebhookLastReceived *time.Time `json:"webhook_last_received,omitempty"`
	WebhookStatus       string     `json:"webhook_status,omitempty"`
	EventsConnected     bool       `json:"events_connected"`
	WorkerHeartbeat     *time.Time `json:"worker_heartbeat,omitempty"`
	WorkerHealthy       bool       `json:"worker_healthy"`
	ConnectedClients    int        `json:"connected_clients"`
	StoreOpen           bool       `json:"store_open"`
}
