// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
	"github.com/sparkpit/sparkpit/internal/metrics"
	"github.com/sparkpit/sparkpit/internal/models"
)

// Service errors surfaced to handlers.
var (
	// ErrMembershipActive rejects checkout for already-active members.
	ErrMembershipActive = errors.New("payments: membership already active")

	// ErrNotSessionOwner rejects status reads across users.
	ErrNotSessionOwner = errors.New("payments: session belongs to another user")

	// ErrNotRefundable rejects refunds of non-completed sessions.
	ErrNotRefundable = errors.New("payments: session is not refundable")
)

// Service orchestrates checkout, webhook processing, and refunds
// between the provider, the store, and the audit trail.
type Service struct {
	store    *database.Store
	provider CheckoutProvider
	verifier *WebhookVerifier
	auditor  *audit.Logger
	currency string
}

// NewService wires the payment service. auditor may be nil in tests.
func NewService(store *database.Store, provider CheckoutProvider, verifier *WebhookVerifier, auditor *audit.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		verifier: verifier,
		auditor:  auditor,
		currency: "usd",
	}
}

// Configured reports whether both the provider and webhook secret are set.
func (s *Service) Configured() bool {
	return s.provider.Configured() && s.verifier.Configured()
}

// CreateCheckout opens a provider session for the join fee and stores
// it. Active members cannot start another checkout.
func (s *Service) CreateCheckout(ctx context.Context, user *models.User, originURL string) (*models.PaymentSession, error) {
	if user.MembershipStatus == models.MembershipActive {
		return nil, ErrMembershipActive
	}

	req := &CheckoutRequest{
		AmountCents:   models.JoinFeeCents,
		Currency:      s.currency,
		SuccessURL:    originURL + "/join?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     originURL + "/join?canceled=true",
		CustomerEmail: user.Email,
		Metadata: map[string]string{
			"user_id": user.ID,
			"purpose": "join_fee",
		},
	}

	providerSession, err := s.provider.CreateSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	now := time.Now().UTC()
	session := &models.PaymentSession{
		ID:                uuid.New().String(),
		UserID:            user.ID,
		ProviderSessionID: providerSession.ID,
		AmountCents:       models.JoinFeeCents,
		Currency:          s.currency,
		Status:            models.PaymentPending,
		CheckoutURL:       providerSession.URL,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.CreatePaymentSession(ctx, session); err != nil {
		return nil, err
	}

	s.logDomain(ctx, audit.EventTypePaymentStarted, user.ID, user.Handle, session.ID, "checkout session created")
	return session, nil
}

// Status returns session state, polling the provider for pending
// sessions so a user landing back from checkout sees completion even
// if the webhook has not arrived yet. Owner or admin only.
func (s *Service) Status(ctx context.Context, requester *models.User, sessionID string) (*models.PaymentSession, error) {
	session, err := s.store.GetPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != requester.ID && requester.Role != models.RoleAdmin {
		return nil, ErrNotSessionOwner
	}

	if session.Terminal() {
		return session, nil
	}

	providerSession, err := s.provider.GetSession(ctx, session.ProviderSessionID)
	if err != nil {
		// Provider unavailable: serve the stored state.
		logging.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("provider status poll failed")
		return session, nil
	}

	switch {
	case providerSession.PaymentStatus == "paid":
		if _, err := s.store.CompletePayment(ctx, session.ID); err != nil {
			return nil, err
		}
		metrics.PaymentsCompleted.Inc()
	case providerSession.Status == "expired":
		if err := s.store.MarkPaymentStatus(ctx, session.ID, models.PaymentExpired); err != nil {
			return nil, err
		}
	default:
		return session, nil
	}

	return s.store.GetPaymentSession(ctx, sessionID)
}

// HandleWebhook verifies and applies one webhook delivery. Completed
// events activate membership exactly once; replays are acknowledged
// without side effects. The receipt timestamp and outcome land in the
// ops record either way.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.verifier.Verify(payload, signatureHeader)
	if err != nil {
		metrics.PaymentWebhooks.WithLabelValues("unknown", "rejected").Inc()
		_ = s.store.RecordWebhook(ctx, time.Now().UTC(), "rejected")
		return err
	}

	result, err := s.applyWebhook(ctx, event)
	metrics.PaymentWebhooks.WithLabelValues(event.Type, result).Inc()
	if recErr := s.store.RecordWebhook(ctx, time.Now().UTC(), result); recErr != nil {
		logging.Ctx(ctx).Error().Err(recErr).Msg("webhook ops record failed")
	}
	return err
}

func (s *Service) applyWebhook(ctx context.Context, event *WebhookEvent) (string, error) {
	if event.SessionID == "" {
		return "ignored", nil
	}

	session, err := s.store.GetPaymentSessionByProviderID(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// A webhook for a session this instance never created.
			return "ignored", nil
		}
		return "error", err
	}

	switch event.Type {
	case EventCheckoutCompleted:
		already, err := s.store.CompletePayment(ctx, session.ID)
		if err != nil {
			return "error", err
		}
		if already {
			return "idempotent", nil
		}
		metrics.PaymentsCompleted.Inc()
		s.logDomain(ctx, audit.EventTypePaymentCompleted, session.UserID, "", session.ID, "join fee paid, membership activated")
		return "applied", nil

	case EventCheckoutExpired:
		if session.Terminal() {
			return "idempotent", nil
		}
		if err := s.store.MarkPaymentStatus(ctx, session.ID, models.PaymentExpired); err != nil {
			return "error", err
		}
		return "applied", nil

	case EventChargeRefunded:
		if session.Status == models.PaymentRefunded {
			return "idempotent", nil
		}
		if err := s.store.MarkPaymentStatus(ctx, session.ID, models.PaymentRefunded); err != nil {
			return "error", err
		}
		s.logDomain(ctx, audit.EventTypePaymentRefunded, session.UserID, "", session.ID, "payment refunded, membership deactivated")
		return "applied", nil
	}

	return "ignored", nil
}

// Refund processes an admin refund: provider call first, then the
// store flip so a provider failure leaves state untouched. The member
// drops back to pending and loses gated access on their next request.
func (s *Service) Refund(ctx context.Context, admin *models.User, sessionID, reason string) (*Refund, error) {
	session, err := s.store.GetPaymentSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.PaymentCompleted {
		return nil, ErrNotRefundable
	}

	providerSession, err := s.provider.GetSession(ctx, session.ProviderSessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve payment intent: %w", err)
	}

	refund, err := s.provider.RefundPayment(ctx, providerSession.PaymentIntent, session.AmountCents, reason)
	if err != nil {
		return nil, fmt.Errorf("provider refund: %w", err)
	}

	if err := s.store.MarkPaymentStatus(ctx, session.ID, models.PaymentRefunded); err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.LogAdminAction(ctx, audit.UserActor(admin.ID, admin.Handle, admin.Role), audit.Source{}, "refund processed", map[string]interface{}{
			"session_id": session.ID,
			"user_id":    session.UserID,
			"refund_id":  refund.ID,
			"reason":     reason,
		})
	}
	return refund, nil
}

// ListRefunds returns refunded transactions for the admin surface.
func (s *Service) ListRefunds(ctx context.Context) ([]models.PaymentTransaction, error) {
	return s.store.ListTransactions(ctx, models.PaymentRefunded)
}

func (s *Service) logDomain(ctx context.Context, eventType audit.EventType, userID, handle, sessionID, description string) {
	if s.auditor == nil {
		return
	}
	actor := audit.UserActor(userID, handle, "")
	target := &audit.Target{ID: sessionID, Type: "payment_session"}
	s.auditor.LogDomainEvent(ctx, eventType, actor, target, "", description)
}
