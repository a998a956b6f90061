// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockContextHub is a test double for the ContextHub interface.
type mockContextHub struct {
	started chan struct{}
	err     error
}

func newMockContextHub() *mockContextHub {
	return &mockContextHub{started: make(chan struct{})}
}

func (m *mockContextHub) RunWithContext(ctx context.Context) error {
	close(m.started)
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService_Interface(t *testing.T) {
	// Verify WebSocketHubService implements suture.Service
	var _ suture.Service = (*WebSocketHubService)(nil)
}

func TestWebSocketHubService_DelegatesToHub(t *testing.T) {
	hub := newMockContextHub()
	svc := NewWebSocketHubService(hub)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	select {
	case <-hub.started:
	case <-time.After(time.Second):
		t.Fatal("hub was never started")
	}

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestWebSocketHubService_PropagatesHubError(t *testing.T) {
	hub := newMockContextHub()
	hub.err = errors.New("hub crashed")
	svc := NewWebSocketHubService(hub)

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected hub error to propagate")
	}
}

func TestWebSocketHubService_String(t *testing.T) {
	svc := NewWebSocketHubService(newMockContextHub())
	if svc.String() != "websocket-hub" {
		t.Errorf("expected 'websocket-hub', got %q", svc.String())
	}
}
