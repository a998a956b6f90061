// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package payments handles the paid half of gated onboarding: checkout
// session creation against the payment provider, webhook verification,
// and admin refunds. The provider is abstracted behind CheckoutProvider
// so the rest of the system never touches provider wire formats.
package payments

import (
	"context"
	"errors"
)

// Provider errors surfaced to handlers.
var (
	// ErrNotConfigured means no provider credentials are present.
	ErrNotConfigured = errors.New("payments: provider not configured")

	// ErrSessionNotFound means the provider has no such session.
	ErrSessionNotFound = errors.New("payments: session not found")
)

// CheckoutRequest describes a checkout session to create.
type CheckoutRequest struct {
	AmountCents int
	Currency    string
	SuccessURL  string
	CancelURL   string
	CustomerEmail string
	// Metadata round-trips through the provider and comes back on the
	// webhook, carrying the user ID.
	Metadata map[string]string
}

// CheckoutSession is the provider's view of a session.
type CheckoutSession struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	PaymentIntent string
	AmountCents   int
	Currency      string
	Metadata      map[string]string
}

// Refund is the provider's view of a processed refund.
type Refund struct {
	ID          string
	AmountCents int
	Status      string
}

// CheckoutProvider is the payment provider surface Sparkpit needs.
// HTTPProvider implements it against the Stripe-compatible API.
type CheckoutProvider interface {
	// CreateSession opens a checkout session and returns the redirect URL.
	CreateSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)

	// GetSession retrieves current session state from the provider.
	GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error)

	// RefundPayment refunds the payment behind a completed session.
	RefundPayment(ctx context.Context, paymentIntentID string, amountCents int, reason string) (*Refund, error)

	// Configured reports whether credentials are present. Unconfigured
	// providers fail all calls with ErrNotConfigured.
	Configured() bool
}
