// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package auth provides JWT issuance and validation, password hashing,
// bot credential handling, and the HTTP authentication middleware.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sparkpit/sparkpit/internal/models"
)

// Token types carried in the claims. User tokens come from the login
// flow; bot tokens come from the challenge/verify handshake and carry
// an explicit scope list.
const (
	TokenTypeUser = "user"
	TokenTypeBot  = "bot"
)

// Default token lifetimes.
const (
	UserTokenTTL = 7 * 24 * time.Hour
	BotTokenTTL  = 30 * 24 * time.Hour
)

// Claims are the JWT claims for both user and bot tokens.
type Claims struct {
	Handle    string   `json:"handle"`
	Role      string   `json:"role,omitempty"`
	TokenType string   `json:"token_type"`
	Scopes    []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether a bot token carries the given scope. User
// tokens are not scoped and always pass.
func (c *Claims) HasScope(scope string) bool {
	if c.TokenType != TokenTypeBot {
		return true
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// JWTManager signs and validates tokens with HMAC-SHA256.
type JWTManager struct {
	secret  []byte
	userTTL time.Duration
	botTTL  time.Duration
}

// NewJWTManager builds a manager from the application secret. The
// secret must be at least 32 characters; tokens use HS256 and the
// secret is held as []byte for its lifetime.
func NewJWTManager(secret string) (*JWTManager, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 characters")
	}
	return &JWTManager{
		secret:  []byte(secret),
		userTTL: UserTokenTTL,
		botTTL:  BotTokenTTL,
	}, nil
}

// GenerateUserToken issues a session token for a logged-in member.
func (m *JWTManager) GenerateUserToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Handle:    user.Handle,
		Role:      user.Role,
		TokenType: TokenTypeUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.userTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return m.sign(claims)
}

// GenerateBotToken issues a scoped token after a successful handshake.
// The scope list is frozen into the token; changing a bot's scopes
// requires a new handshake.
func (m *JWTManager) GenerateBotToken(bot *models.Bot) (string, error) {
	now := time.Now()
	claims := &Claims{
		Handle:    bot.Handle,
		TokenType: TokenTypeBot,
		Scopes:    bot.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   bot.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.botTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return m.sign(claims)
}

func (m *JWTManager) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token string. It rejects
// tokens signed with anything other than HMAC to prevent algorithm
// confusion, and enforces expiry and not-before.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.TokenType != TokenTypeUser && claims.TokenType != TokenTypeBot {
		return nil, fmt.Errorf("unknown token type %q", claims.TokenType)
	}
	return claims, nil
}
