// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Errors returned by SecretBox.Decrypt.
var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// secretBoxContext binds the derived key to this use. Changing it
// invalidates every stored bot secret.
const secretBoxContext = "sparkpit-bot-secrets"

// SecretBox encrypts bot secrets at rest with AES-256-GCM. The key is
// derived from the application secret with HKDF-SHA256 so the raw
// secret never touches the cipher directly.
type SecretBox struct {
	aead cipher.AEAD
}

// NewSecretBox derives the encryption key and builds the AEAD. The
// application secret must be at least 32 characters.
func NewSecretBox(appSecret string) (*SecretBox, error) {
	if len(appSecret) < 32 {
		return nil, errors.New("app secret must be at least 32 characters")
	}

	reader := hkdf.New(sha256.New, []byte(appSecret), nil, []byte(secretBoxContext))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return &SecretBox{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64 with the nonce prepended.
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func (b *SecretBox) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}
	nonceSize := b.aead.NonceSize()
	if len(data) < nonceSize+b.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}
	plaintext, err := b.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}
	return string(plaintext), nil
}

// GenerateBotSecret returns a fresh random secret for a new bot,
// base64-encoded from 32 bytes of entropy. It is shown to the owner
// once and stored only encrypted.
func GenerateBotSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
