// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewHTTPProvider(HTTPProviderConfig{
		BaseURL:   srv.URL,
		SecretKey: "sk_test_123",
	})
	p.retryBaseDelay = time.Millisecond
	return p
}

func TestCreateSessionSendsFormAndAuth(t *testing.T) {
	var gotAuth, gotMode, gotAmount, gotUserID string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotAuth = r.Header.Get("Authorization")
		gotMode = r.PostForm.Get("mode")
		gotAmount = r.PostForm.Get("line_items[0][price_data][unit_amount]")
		gotUserID = r.PostForm.Get("metadata[user_id]")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://pay.example/cs_1","status":"open","payment_status":"unpaid"}`))
	})

	session, err := p.CreateSession(context.Background(), &CheckoutRequest{
		AmountCents: 4900,
		Currency:    "usd",
		SuccessURL:  "https://sparkpit.example/join?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   "https://sparkpit.example/join?canceled=true",
		Metadata:    map[string]string{"user_id": "user-1"},
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if gotAuth != "Bearer sk_test_123" {
		t.Errorf("Expected bearer auth, got %q", gotAuth)
	}
	if gotMode != "payment" || gotAmount != "4900" || gotUserID != "user-1" {
		t.Errorf("Unexpected form: mode=%q amount=%q user_id=%q", gotMode, gotAmount, gotUserID)
	}
	if session.ID != "cs_1" || session.URL != "https://pay.example/cs_1" {
		t.Errorf("Unexpected session: %+v", session)
	}
}

func TestGetSessionMapsFields(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions/cs_2" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"cs_2","status":"complete","payment_status":"paid","payment_intent":"pi_9","amount_total":4900,"currency":"usd"}`))
	})

	session, err := p.GetSession(context.Background(), "cs_2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.PaymentStatus != "paid" || session.PaymentIntent != "pi_9" || session.AmountCents != 4900 {
		t.Errorf("Unexpected session: %+v", session)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"No such session"}}`))
	})

	if _, err := p.GetSession(context.Background(), "cs_missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestProviderRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"cs_3","status":"open"}`))
	})

	session, err := p.GetSession(context.Background(), "cs_3")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if session.ID != "cs_3" {
		t.Errorf("Unexpected session: %+v", session)
	}
}

func TestProviderSurfacesAPIErrors(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Amount must be positive","type":"invalid_request_error"}}`))
	})

	_, err := p.RefundPayment(context.Background(), "pi_1", -1, "")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if want := "Amount must be positive"; !strings.Contains(err.Error(), want) {
		t.Errorf("Expected error containing %q, got %v", want, err)
	}
}

func TestProviderUnconfigured(t *testing.T) {
	p := NewHTTPProvider(HTTPProviderConfig{})
	if p.Configured() {
		t.Error("Expected unconfigured provider")
	}
	if _, err := p.CreateSession(context.Background(), &CheckoutRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}
