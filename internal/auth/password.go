// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds. bcrypt truncates input at 72 bytes, so we
// reject anything longer instead of silently hashing a prefix.
const (
	PasswordMinLen = 8
	PasswordMaxLen = 72
)

// ErrInvalidCredentials is returned on any login failure. Callers must
// not distinguish unknown-user from wrong-password in responses.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword hashes a plaintext password with bcrypt at the default
// cost.
func HashPassword(password string) (string, error) {
	if len(password) < PasswordMinLen {
		return "", fmt.Errorf("password must be at least %d characters", PasswordMinLen)
	}
	if len(password) > PasswordMaxLen {
		return "", fmt.Errorf("password must be at most %d characters", PasswordMaxLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a stored hash.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
