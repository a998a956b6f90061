// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package eventprocessor

import (
	"errors"
	"testing"
)

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("test")
	cfg.FailureThreshold = 3
	cb := NewCircuitBreaker(cfg)

	if CircuitBreakerState(cb) != "closed" {
		t.Fatalf("Expected closed, got %s", CircuitBreakerState(cb))
	}

	failure := errors.New("publish failed")
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, failure
		})
	}

	if CircuitBreakerState(cb) != "open" {
		t.Errorf("Expected open after 3 failures, got %s", CircuitBreakerState(cb))
	}

	// Requests are rejected while open.
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, nil
	})
	if err == nil {
		t.Error("Expected rejection while open")
	}
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	for i := 0; i < 10; i++ {
		if _, err := cb.Execute(func() (interface{}, error) {
			return nil, nil
		}); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	if CircuitBreakerState(cb) != "closed" {
		t.Errorf("Expected closed, got %s", CircuitBreakerState(cb))
	}
}
