// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type mockGC struct {
	calls atomic.Int32
}

func (m *mockGC) RunGC() {
	m.calls.Add(1)
}

func TestStoreGCService_Interface(t *testing.T) {
	var _ suture.Service = (*StoreGCService)(nil)
}

func TestNewStoreGCService_DefaultInterval(t *testing.T) {
	svc := NewStoreGCService(&mockGC{}, 0)
	if svc.interval != 10*time.Minute {
		t.Errorf("expected default interval 10m, got %v", svc.interval)
	}
}

func TestStoreGCService_SweepsOnInterval(t *testing.T) {
	gc := &mockGC{}
	svc := NewStoreGCService(gc, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	for gc.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
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

	if gc.calls.Load() < 2 {
		t.Errorf("expected at least 2 GC sweeps, got %d", gc.calls.Load())
	}
}

func TestStoreGCService_String(t *testing.T) {
	svc := NewStoreGCService(&mockGC{}, time.Minute)
	if svc.String() != "store-gc" {
		t.Errorf("expected 'store-gc', got %q", svc.String())
	}
}
