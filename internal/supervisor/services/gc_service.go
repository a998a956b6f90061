// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package services

import (
	"context"
	"time"
)

// GarbageCollector matches *database.Store's RunGC method.
type GarbageCollector interface {
	RunGC()
}

// StoreGCService runs Badger value-log garbage collection on a fixed
// interval. Badger never reclaims value-log space on its own; without a
// periodic sweep the on-disk store grows forever on update-heavy
// workloads (membership flips, bot heartbeats, payment status writes).
type StoreGCService struct {
	store    GarbageCollector
	interval time.Duration
	name     string
}

// NewStoreGCService creates the GC sweep service. A non-positive
// interval falls back to 10 minutes.
func NewStoreGCService(store GarbageCollector, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{
		store:    store,
		interval: interval,
		name:     "store-gc",
	}
}

// Serve implements suture.Service. It sweeps until context cancellation.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.store.RunGC()
		}
	}
}

// String implements fmt.Stringer for logging.
func (s *StoreGCService) String() string {
	return s.name
}
