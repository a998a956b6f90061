// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/authz"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/models"
	"github.com/sparkpit/sparkpit/internal/payments"
	"github.com/sparkpit/sparkpit/internal/websocket"
)

const (
	testAppSecret     = "0123456789abcdef0123456789abcdef"
	testWebhookSecret = "whsec_api_test"
)

// stubProvider is an in-memory payments.CheckoutProvider.
type stubProvider struct {
	sessions map[string]*payments.CheckoutSession
	refunds  []string
}

func newStubProvider() *stubProvider {
	return &stubProvider{sessions: make(map[string]*payments.CheckoutSession)}
}

func (p *stubProvider) Configured() bool { return true }

func (p *stubProvider) CreateSession(ctx context.Context, req *payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	s := &payments.CheckoutSession{
		ID:            "cs_" + uuid.New().String()[:8],
		URL:           "https://pay.example/checkout",
		Status:        "open",
		PaymentStatus: "unpaid",
		PaymentIntent: "pi_" + uuid.New().String()[:8],
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		Metadata:      req.Metadata,
	}
	p.sessions[s.ID] = s
	return s, nil
}

func (p *stubProvider) GetSession(ctx context.Context, sessionID string) (*payments.CheckoutSession, error) {
	s, ok := p.sessions[sessionID]
	if !ok {
		return nil, payments.ErrSessionNotFound
	}
	return s, nil
}

func (p *stubProvider) RefundPayment(ctx context.Context, paymentIntentID string, amountCents int, reason string) (*payments.Refund, error) {
	p.refunds = append(p.refunds, paymentIntentID)
	return &payments.Refund{ID: "re_" + uuid.New().String()[:8], AmountCents: amountCents, Status: "succeeded"}, nil
}

// testEnv runs the full API stack against an in-memory store.
type testEnv struct {
	t        *testing.T
	server   *httptest.Server
	store    *database.Store
	jwt      *auth.JWTManager
	provider *stubProvider
	verifier *payments.WebhookVerifier
	secrets  *auth.SecretBox
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := database.Open(database.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	jwtMgr, err := auth.NewJWTManager(testAppSecret)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	secrets, err := auth.NewSecretBox(testAppSecret)
	if err != nil {
		t.Fatalf("secret box: %v", err)
	}

	authMW := auth.NewMiddleware(jwtMgr, store, auth.NewRateLimiter(10000, time.Minute))
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.RunWithContext(ctx)

	auditor := audit.NewLogger(audit.NewMemoryStore(1000), audit.DefaultConfig())
	t.Cleanup(func() { _ = auditor.Close() })

	provider := newStubProvider()
	verifier := payments.NewWebhookVerifier(testWebhookSecret, 0)

	handler := NewHandler(Options{
		Store:      store,
		JWTManager: jwtMgr,
		Secrets:    secrets,
		Hub:        hub,
		Auditor:    auditor,
		Payments:   payments.NewService(store, provider, verifier, auditor),
		AuthMW:     authMW,
		AuthzMW:    authz.NewMiddleware(enforcer),
	})

	server := httptest.NewServer(handler.Routes(RouterConfig{
		AllowedOrigins:        []string{"*"},
		RequestsPerMinute:     100000,
		AuthRequestsPerMinute: 100000,
	}))
	t.Cleanup(server.Close)

	return &testEnv{
		t:        t,
		server:   server,
		store:    store,
		jwt:      jwtMgr,
		provider: provider,
		verifier: verifier,
		secrets:  secrets,
	}
}

// envelope mirrors models.APIResponse with raw data for typed decoding.
type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func (e *testEnv) request(method, path, token string, body interface{}) (int, *envelope) {
	e.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		e.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		e.t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return resp.StatusCode, &env
}

func (e *testEnv) decodeData(env *envelope, target interface{}) {
	e.t.Helper()
	if err := json.Unmarshal(env.Data, target); err != nil {
		e.t.Fatalf("decode data: %v", err)
	}
}

func (e *testEnv) wantError(status, wantStatus int, env *envelope, wantCode string) {
	e.t.Helper()
	if status != wantStatus {
		e.t.Fatalf("status = %d, want %d (error: %+v)", status, wantStatus, env.Error)
	}
	if env.Error == nil {
		e.t.Fatalf("expected error envelope, got none")
	}
	if env.Error.Code != wantCode {
		e.t.Fatalf("error code = %q, want %q", env.Error.Code, wantCode)
	}
}

// seedUser writes a user straight into the store and mints a token,
// bypassing the register endpoint.
func (e *testEnv) seedUser(role, membership string) (*models.User, string) {
	e.t.Helper()

	hash, err := auth.HashPassword("correct horse battery")
	if err != nil {
		e.t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:               uuid.New().String(),
		Email:            uuid.New().String()[:8] + "@example.com",
		Handle:           "u" + uuid.New().String()[:8],
		DisplayName:      "Seeded User",
		PasswordHash:     hash,
		Role:             role,
		MembershipStatus: membership,
		CreatedAt:        time.Now().UTC(),
	}
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
	token, err := e.jwt.GenerateUserToken(user)
	if err != nil {
		e.t.Fatalf("mint token: %v", err)
	}
	return user, token
}

func (e *testEnv) seedMember() (*models.User, string) {
	return e.seedUser(models.RoleMember, models.MembershipActive)
}

func (e *testEnv) seedAdmin() (*models.User, string) {
	return e.seedUser(models.RoleAdmin, models.MembershipActive)
}

// createRoom makes a public room through the API and returns its detail.
func (e *testEnv) createRoom(token, slug string) *models.RoomDetail {
	e.t.Helper()
	status, env := e.request(http.MethodPost, "/api/rooms", token, CreateRoomRequest{
		Slug:       slug,
		Name:       "Room " + slug,
		Visibility: models.VisibilityPublic,
	})
	if status != http.StatusCreated {
		e.t.Fatalf("create room %s: status %d (%+v)", slug, status, env.Error)
	}
	var detail models.RoomDetail
	e.decodeData(env, &detail)
	return &detail
}
