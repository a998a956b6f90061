// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/models"
)

func newTestPayment(userID string) *models.PaymentSession {
	now := time.Now().UTC()
	return &models.PaymentSession{
		ID:                uuid.New().String(),
		UserID:            userID,
		ProviderSessionID: "cs_" + uuid.New().String()[:12],
		AmountCents:       models.JoinFeeCents,
		Currency:          "usd",
		Status:            models.PaymentPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestCompletePaymentActivatesMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser("ada")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	p := newTestPayment(u.ID)
	if err := s.CreatePaymentSession(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	already, err := s.CompletePayment(ctx, p.ID)
	if err != nil || already {
		t.Fatalf("complete: already=%v err=%v", already, err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.MembershipStatus != models.MembershipActive {
		t.Errorf("membership = %s, want active", got.MembershipStatus)
	}

	// Replayed webhook: idempotent, no second activation.
	already, err = s.CompletePayment(ctx, p.ID)
	if err != nil || !already {
		t.Fatalf("replay: already=%v err=%v, want true/nil", already, err)
	}

	txns, err := s.ListTransactions(ctx, "")
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("got %d transactions, want 1 (upsert)", len(txns))
	}
	if txns[0].Status != models.PaymentCompleted || txns[0].AmountCents != models.JoinFeeCents {
		t.Errorf("transaction = %+v", txns[0])
	}
}

func TestRefundDeactivatesMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser("ada")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	p := newTestPayment(u.ID)
	if err := s.CreatePaymentSession(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if _, err := s.CompletePayment(ctx, p.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if err := s.MarkPaymentStatus(ctx, p.ID, models.PaymentRefunded); err != nil {
		t.Fatalf("refund: %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.MembershipStatus != models.MembershipPending {
		t.Errorf("membership = %s, want pending after refund", got.MembershipStatus)
	}

	refunded, err := s.ListTransactions(ctx, models.PaymentRefunded)
	if err != nil {
		t.Fatalf("list refunded: %v", err)
	}
	if len(refunded) != 1 {
		t.Errorf("got %d refunded transactions, want 1", len(refunded))
	}
}

func TestGetPaymentSessionByProviderID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser("ada")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	p := newTestPayment(u.ID)
	if err := s.CreatePaymentSession(ctx, p); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	got, err := s.GetPaymentSessionByProviderID(ctx, p.ProviderSessionID)
	if err != nil {
		t.Fatalf("by provider id: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("got %s, want %s", got.ID, p.ID)
	}
}

func TestExpireStalePayments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser("ada")
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	stale := newTestPayment(u.ID)
	stale.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := newTestPayment(u.ID)
	for _, p := range []*models.PaymentSession{stale, fresh} {
		if err := s.CreatePaymentSession(ctx, p); err != nil {
			t.Fatalf("create payment: %v", err)
		}
	}

	n, err := s.ExpireStalePayments(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d sessions, want 1", n)
	}

	got, err := s.GetPaymentSession(ctx, stale.ID)
	if err != nil {
		t.Fatalf("get stale: %v", err)
	}
	if got.Status != models.PaymentExpired {
		t.Errorf("stale status = %s, want expired", got.Status)
	}
	gotFresh, err := s.GetPaymentSession(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if gotFresh.Status != models.PaymentPending {
		t.Errorf("fresh status = %s, want pending", gotFresh.Status)
	}
}

func TestWorkerHeartbeat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if at, healthy := s.WorkerHeartbeat(ctx); at != nil || healthy {
		t.Errorf("empty store: at=%v healthy=%v", at, healthy)
	}

	now := time.Now().UTC()
	if err := s.SetWorkerHeartbeat(ctx, now); err != nil {
		t.Fatalf("set heartbeat: %v", err)
	}
	at, healthy := s.WorkerHeartbeat(ctx)
	if at == nil || !healthy {
		t.Errorf("fresh heartbeat: at=%v healthy=%v", at, healthy)
	}

	if err := s.SetWorkerHeartbeat(ctx, now.Add(-5*time.Minute)); err != nil {
		t.Fatalf("set old heartbeat: %v", err)
	}
	if _, healthy := s.WorkerHeartbeat(ctx); healthy {
		t.Error("stale heartbeat reported healthy")
	}
}

func TestRecordWebhook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := s.RecordWebhook(ctx, now, "completed"); err != nil {
		t.Fatalf("record: %v", err)
	}
	at, status := s.WebhookStatus(ctx)
	if at == nil || status != "completed" {
		t.Errorf("webhook status: at=%v status=%q", at, status)
	}
}
