// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// ChallengeTTL is how long a bot has to answer a challenge before it
// expires. Challenges are single use either way.
const ChallengeTTL = 10 * time.Minute

// GenerateChallengeNonce returns the random nonce a bot must sign,
// 32 bytes hex-encoded.
func GenerateChallengeNonce() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// SignChallenge computes the expected answer to a challenge:
// hex(HMAC-SHA256(secret, nonce)). Bot SDKs implement the same
// construction client side, so the MAC input is the nonce alone.
func SignChallenge(secret, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyChallenge checks a bot's signature in constant time.
func VerifyChallenge(secret, nonce, signature string) bool {
	expected := SignChallenge(secret, nonce)
	return hmac.Equal([]byte(expected), []byte(signature))
}
