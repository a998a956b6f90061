// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/models"
)

// fakeProvider is an in-memory CheckoutProvider for service tests.
type fakeProvider struct {
	sessions map[string]*CheckoutSession
	refunds  []string
	fail     bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: make(map[string]*CheckoutSession)}
}

func (f *fakeProvider) Configured() bool { return true }

func (f *fakeProvider) CreateSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if f.fail {
		return nil, errors.New("provider down")
	}
	s := &CheckoutSession{
		ID:            "cs_" + uuid.New().String()[:8],
		URL:           "https://pay.example/checkout",
		Status:        "open",
		PaymentStatus: "unpaid",
		PaymentIntent: "pi_" + uuid.New().String()[:8],
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		Metadata:      req.Metadata,
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeProvider) GetSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if f.fail {
		return nil, errors.New("provider down")
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeProvider) RefundPayment(ctx context.Context, paymentIntentID string, amountCents int, reason string) (*Refund, error) {
	if f.fail {
		return nil, errors.New("provider down")
	}
	f.refunds = append(f.refunds, paymentIntentID)
	return &Refund{ID: "re_1", AmountCents: amountCents, Status: "succeeded"}, nil
}

func newTestService(t *testing.T) (*Service, *database.Store, *fakeProvider) {
	t.Helper()
	store, err := database.Open(database.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	provider := newFakeProvider()
	verifier := NewWebhookVerifier(testWebhookSecret, 0)
	return NewService(store, provider, verifier, nil), store, provider
}

func seedUser(t *testing.T, store *database.Store, membership string) *models.User {
	t.Helper()
	user := &models.User{
		ID:               uuid.New().String(),
		Email:            uuid.New().String()[:8] + "@example.com",
		Handle:           "u" + uuid.New().String()[:8],
		Role:             models.RoleMember,
		MembershipStatus: membership,
		CreatedAt:        time.Now().UTC(),
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestCreateCheckoutStoresPendingSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	user := seedUser(t, store, models.MembershipPending)

	session, err := svc.CreateCheckout(context.Background(), user, "https://sparkpit.example")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	if session.Status != models.PaymentPending {
		t.Errorf("Expected pending, got %s", session.Status)
	}
	if session.AmountCents != models.JoinFeeCents {
		t.Errorf("Expected %d cents, got %d", models.JoinFeeCents, session.AmountCents)
	}
	if session.CheckoutURL == "" {
		t.Error("Expected checkout URL")
	}

	stored, err := store.GetPaymentSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetPaymentSession: %v", err)
	}
	if stored.ProviderSessionID != session.ProviderSessionID {
		t.Errorf("Provider session mismatch")
	}
}

func TestCreateCheckoutRejectsActiveMember(t *testing.T) {
	svc, store, _ := newTestService(t)
	user := seedUser(t, store, models.MembershipActive)

	_, err := svc.CreateCheckout(context.Background(), user, "https://sparkpit.example")
	if !errors.Is(err, ErrMembershipActive) {
		t.Errorf("Expected ErrMembershipActive, got %v", err)
	}
}

func TestWebhookCompletedActivatesMembershipOnce(t *testing.T) {
	svc, store, _ := newTestService(t)
	user := seedUser(t, store, models.MembershipPending)
	ctx := context.Background()

	session, err := svc.CreateCheckout(ctx, user, "https://sparkpit.example")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	payload := completedPayload(session.ProviderSessionID)
	header := svc.verifier.Sign(payload, time.Now())

	if err := svc.HandleWebhook(ctx, payload, header); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}

	activated, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if activated.MembershipStatus != models.MembershipActive {
		t.Errorf("Expected active membership, got %s", activated.MembershipStatus)
	}

	// Replay: same delivery again must be acknowledged, not re-applied.
	if err := svc.HandleWebhook(ctx, payload, header); err != nil {
		t.Fatalf("HandleWebhook replay: %v", err)
	}

	txns, err := store.ListTransactions(ctx, models.PaymentCompleted)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("Expected 1 transaction after replay, got %d", len(txns))
	}

	if at, status := store.WebhookStatus(ctx); at == nil || status == "" {
		t.Error("Expected webhook receipt recorded for ops")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, _, _ := newTestService(t)

	payload := completedPayload("cs_unknown")
	err := svc.HandleWebhook(context.Background(), payload, "t=1,v1=00")
	if err == nil {
		t.Fatal("Expected signature error")
	}
}

func TestWebhookUnknownSessionIgnored(t *testing.T) {
	svc, _, _ := newTestService(t)

	payload := completedPayload("cs_never_created")
	header := svc.verifier.Sign(payload, time.Now())
	if err := svc.HandleWebhook(context.Background(), payload, header); err != nil {
		t.Errorf("Expected unknown session to be acknowledged, got %v", err)
	}
}

func TestStatusPollsProviderForPendingSession(t *testing.T) {
	svc, store, provider := newTestService(t)
	user := seedUser(t, store, models.MembershipPending)
	ctx := context.Background()

	session, err := svc.CreateCheckout(ctx, user, "https://sparkpit.example")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	// Simulate payment landing at the provider before any webhook.
	provider.sessions[session.ProviderSessionID].PaymentStatus = "paid"

	got, err := svc.Status(ctx, user, session.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != models.PaymentCompleted {
		t.Errorf("Expected completed after poll, got %s", got.Status)
	}

	activated, _ := store.GetUser(ctx, user.ID)
	if activated.MembershipStatus != models.MembershipActive {
		t.Errorf("Expected active membership, got %s", activated.MembershipStatus)
	}
}

func TestStatusRejectsOtherUsers(t *testing.T) {
	svc, store, _ := newTestService(t)
	owner := seedUser(t, store, models.MembershipPending)
	other := seedUser(t, store, models.MembershipActive)
	ctx := context.Background()

	session, err := svc.CreateCheckout(ctx, owner, "https://sparkpit.example")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	if _, err := svc.Status(ctx, other, session.ID); !errors.Is(err, ErrNotSessionOwner) {
		t.Errorf("Expected ErrNotSessionOwner, got %v", err)
	}

	admin := seedUser(t, store, models.MembershipActive)
	admin.Role = models.RoleAdmin
	if _, err := svc.Status(ctx, admin, session.ID); err != nil {
		t.Errorf("Expected admin to read any session, got %v", err)
	}
}

func TestRefundFlipsMembershipBackToPending(t *testing.T) {
	svc, store, provider := newTestService(t)
	user := seedUser(t, store, models.MembershipPending)
	ctx := context.Background()

	session, err := svc.CreateCheckout(ctx, user, "https://sparkpit.example")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if _, err := store.CompletePayment(ctx, session.ID); err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}

	admin := seedUser(t, store, models.MembershipActive)
	admin.Role = models.RoleAdmin

	refund, err := svc.Refund(ctx, admin, session.ID, "requested_by_customer")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if refund.Status != "succeeded" {
		t.Errorf("Expected succeeded refund, got %s", refund.Status)
	}
	if len(provider.refunds) != 1 {
		t.Errorf("Expected one provider refund call, got %d", len(provider.refunds))
	}

	demoted, _ := store.GetUser(ctx, user.ID)
	if demoted.MembershipStatus != models.MembershipPending {
		t.Errorf("Expected pending after refund, got %s", demoted.MembershipStatus)
	}

	refunds, err := svc.ListRefunds(ctx)
	if err != nil {
		t.Fatalf("ListRefunds: %v", err)
	}
	if len(refunds) != 1 {
		t.Errorf("Expected 1 refunded transaction, got %d", len(refunds))
	}
}

func TestRefundRejectsNonCompletedSession(t *testing.T) {
	svc, store, _ := newTestService(t)
	user := seedUser(t, store, models.MembershipPending)
	ctx := context.Background()

	session, err := svc.CreateCheckout(ctx, user, "https://sparkpit.example")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}

	admin := seedUser(t, store, models.MembershipActive)
	admin.Role = models.RoleAdmin
	if _, err := svc.Refund(ctx, admin, session.ID, ""); !errors.Is(err, ErrNotRefundable) {
		t.Errorf("Expected ErrNotRefundable, got %v", err)
	}
}

func TestRefundProviderFailureLeavesStateUntouched(t *testing.T) {
	svc, store, provider := newTestService(t)
	user := seedUser(t, store, models.MembershipPending)
	ctx := context.Background()

	session, err := svc.CreateCheckout(ctx, user, "https://sparkpit.example")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if _, err := store.CompletePayment(ctx, session.ID); err != nil {
		t.Fatalf("CompletePayment: %v", err)
	}

	provider.fail = true
	admin := seedUser(t, store, models.MembershipActive)
	admin.Role = models.RoleAdmin
	if _, err := svc.Refund(ctx, admin, session.ID, ""); err == nil {
		t.Fatal("Expected provider failure")
	}

	unchanged, _ := store.GetPaymentSession(ctx, session.ID)
	if unchanged.Status != models.PaymentCompleted {
		t.Errorf("Expected completed after failed refund, got %s", unchanged.Status)
	}
	still, _ := store.GetUser(ctx, user.ID)
	if still.MembershipStatus != models.MembershipActive {
		t.Errorf("Expected membership still active, got %s", still.MembershipStatus)
	}
}
