// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sparkpit/sparkpit/internal/models"
)

func TestRegisterFirstUserBecomesActiveAdmin(t *testing.T) {
	env := newTestEnv(t)

	status, env2 := env.request(http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:       "founder@example.com",
		Handle:      "founder",
		Password:    "a long enough password",
		DisplayName: "The Founder",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d (%+v)", status, env2.Error)
	}

	var resp AuthResponse
	env.decodeData(env2, &resp)
	if resp.Token == "" {
		t.Fatal("expected a session token")
	}
	if resp.User.Role != models.RoleAdmin {
		t.Fatalf("first user role = %q, want admin", resp.User.Role)
	}
	if resp.User.MembershipStatus != models.MembershipActive {
		t.Fatalf("first user membership = %q, want active", resp.User.MembershipStatus)
	}
}

func TestRegisterSecondUserStartsPending(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin()

	status, env2 := env.request(http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:       "second@example.com",
		Handle:      "second",
		Password:    "a long enough password",
		DisplayName: "Second",
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d (%+v)", status, env2.Error)
	}

	var resp AuthResponse
	env.decodeData(env2, &resp)
	if resp.User.Role != models.RoleMember || resp.User.MembershipStatus != models.MembershipPending {
		t.Fatalf("got role=%q membership=%q, want pending member", resp.User.Role, resp.User.MembershipStatus)
	}
}

func TestRegisterWithInviteActivatesImmediately(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.seedAdmin()

	invite := &models.Invite{
		Code:      "SPARK-ABCDEFGH",
		CreatedBy: admin.ID,
		MaxUses:   1,
		CreatedAt: time.Now().UTC(),
	}
	if err := env.store.CreateInvite(context.Background(), invite); err != nil {
		t.Fatalf("seed invite: %v", err)
	}

	status, env2 := env.request(http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:       "invited@example.com",
		Handle:      "invited",
		Password:    "a long enough password",
		DisplayName: "Invited",
		InviteCode:  invite.Code,
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d (%+v)", status, env2.Error)
	}

	var resp AuthResponse
	env.decodeData(env2, &resp)
	if resp.User.MembershipStatus != models.MembershipActive {
		t.Fatalf("membership = %q, want active", resp.User.MembershipStatus)
	}
}

func TestRegisterRejectsExhaustedInvite(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.seedAdmin()

	invite := &models.Invite{
		Code:      "SPARK-DEADBEEF",
		CreatedBy: admin.ID,
		MaxUses:   1,
		Uses:      1,
		CreatedAt: time.Now().UTC(),
	}
	if err := env.store.CreateInvite(context.Background(), invite); err != nil {
		t.Fatalf("seed invite: %v", err)
	}

	status, env2 := env.request(http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:       "late@example.com",
		Handle:      "latecomer",
		Password:    "a long enough password",
		DisplayName: "Late",
		InviteCode:  invite.Code,
	})
	env.wantError(status, http.StatusBadRequest, env2, models.ErrCodeInviteInvalid)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"bad email", RegisterRequest{Email: "nope", Handle: "someone", Password: "long enough pw", DisplayName: "X"}},
		{"short password", RegisterRequest{Email: "a@b.com", Handle: "someone", Password: "short", DisplayName: "X"}},
		{"uppercase handle", RegisterRequest{Email: "a@b.com", Handle: "SomeOne", Password: "long enough pw", DisplayName: "X"}},
		{"malformed invite", RegisterRequest{Email: "a@b.com", Handle: "someone", Password: "long enough pw", DisplayName: "X", InviteCode: "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env2 := env.request(http.MethodPost, "/api/auth/register", "", tc.req)
			env.wantError(status, http.StatusBadRequest, env2, models.ErrCodeValidation)
		})
	}
}

func TestRegisterDuplicateHandleConflicts(t *testing.T) {
	env := newTestEnv(t)

	first := RegisterRequest{
		Email:       "one@example.com",
		Handle:      "taken",
		Password:    "a long enough password",
		DisplayName: "One",
	}
	if status, env2 := env.request(http.MethodPost, "/api/auth/register", "", first); status != http.StatusCreated {
		t.Fatalf("first register: status %d (%+v)", status, env2.Error)
	}

	second := first
	second.Email = "two@example.com"
	status, env2 := env.request(http.MethodPost, "/api/auth/register", "", second)
	env.wantError(status, http.StatusConflict, env2, models.ErrCodeConflict)
}

func TestLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedMember()

	status, env2 := env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    user.Email,
		Password: "correct horse battery",
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d (%+v)", status, env2.Error)
	}

	var resp AuthResponse
	env.decodeData(env2, &resp)
	if resp.User.ID != user.ID {
		t.Fatalf("logged in as %q, want %q", resp.User.ID, user.ID)
	}

	// The issued token works against /api/auth/me.
	status, env2 = env.request(http.MethodGet, "/api/auth/me", resp.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("me: status = %d (%+v)", status, env2.Error)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.seedMember()

	status, env2 := env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    user.Email,
		Password: "not the password",
	})
	env.wantError(status, http.StatusUnauthorized, env2, models.ErrCodeUnauthorized)
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	env := newTestEnv(t)

	status, env2 := env.request(http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever it takes",
	})
	env.wantError(status, http.StatusUnauthorized, env2, models.ErrCodeUnauthorized)
	if env2.Error.Message != "invalid credentials" {
		t.Fatalf("unknown-email message = %q, should not leak account existence", env2.Error.Message)
	}
}

func TestMeRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	status, env2 := env.request(http.MethodGet, "/api/auth/me", "", nil)
	env.wantError(status, http.StatusUnauthorized, env2, models.ErrCodeUnauthorized)
}

func TestClaimInviteActivatesPendingMember(t *testing.T) {
	env := newTestEnv(t)
	admin, _ := env.seedAdmin()
	_, token := env.seedUser(models.RoleMember, models.MembershipPending)

	invite := &models.Invite{
		Code:      "SPARK-WXYZ2345",
		CreatedBy: admin.ID,
		MaxUses:   5,
		CreatedAt: time.Now().UTC(),
	}
	if err := env.store.CreateInvite(context.Background(), invite); err != nil {
		t.Fatalf("seed invite: %v", err)
	}

	status, env2 := env.request(http.MethodPost, "/api/invites/claim", token, ClaimInviteRequest{Code: invite.Code})
	if status != http.StatusOK {
		t.Fatalf("status = %d (%+v)", status, env2.Error)
	}

	var pub models.PublicUser
	env.decodeData(env2, &pub)
	if pub.MembershipStatus != models.MembershipActive {
		t.Fatalf("membership = %q, want active", pub.MembershipStatus)
	}
}

func TestClaimInviteRejectsActiveMember(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedMember()

	status, env2 := env.request(http.MethodPost, "/api/invites/claim", token, ClaimInviteRequest{Code: "SPARK-WXYZ2345"})
	env.wantError(status, http.StatusConflict, env2, models.ErrCodeConflict)
}
