// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package auth

import (
	"strings"
	"testing"

	"github.com/sparkpit/sparkpit/internal/models"
)

const testSecret = "test-secret-0123456789abcdef0123456789"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

func TestNewJWTManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short"); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestUserTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)

	user := &models.User{ID: "u-1", Handle: "ada", Role: models.RoleAdmin}
	token, err := m.GenerateUserToken(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "u-1" || claims.Handle != "ada" || claims.Role != models.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}
	if claims.TokenType != TokenTypeUser {
		t.Errorf("token type = %s, want user", claims.TokenType)
	}
	if !claims.HasScope(models.ScopeMessagesWrite) {
		t.Error("user token should pass every scope check")
	}
}

func TestBotTokenScopes(t *testing.T) {
	m := newTestManager(t)

	bot := &models.Bot{ID: "b-1", Handle: "deploybot", Scopes: []string{models.ScopeMessagesWrite}}
	token, err := m.GenerateBotToken(bot)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.TokenType != TokenTypeBot || claims.Subject != "b-1" {
		t.Errorf("claims = %+v", claims)
	}
	if !claims.HasScope(models.ScopeMessagesWrite) {
		t.Error("granted scope rejected")
	}
	if claims.HasScope(models.ScopeBountiesWrite) {
		t.Error("ungranted scope accepted")
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	m := newTestManager(t)

	token, err := m.GenerateUserToken(&models.User{ID: "u-1", Handle: "ada", Role: models.RoleMember})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"flipped payload", flipLastChar(token)},
		{"wrong secret", signedWithOtherSecret(t)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.ValidateToken(tt.token); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

func flipLastChar(token string) string {
	last := token[len(token)-1]
	replacement := "A"
	if last == 'A' {
		replacement = "B"
	}
	return token[:len(token)-1] + replacement
}

func signedWithOtherSecret(t *testing.T) string {
	t.Helper()
	other, err := NewJWTManager(strings.Repeat("x", 32))
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	token, err := other.GenerateUserToken(&models.User{ID: "u-2", Handle: "eve", Role: models.RoleMember})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return token
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Errorf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong password 123"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestHashPasswordLengthBounds(t *testing.T) {
	if _, err := HashPassword("short"); err == nil {
		t.Error("short password accepted")
	}
	if _, err := HashPassword(strings.Repeat("p", 73)); err == nil {
		t.Error("over-length password accepted")
	}
}
