// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package eventprocessor

import (
	"context"
	"time"

	"github.com/sparkpit/sparkpit/internal/audit"
	"github.com/sparkpit/sparkpit/internal/database"
	"github.com/sparkpit/sparkpit/internal/logging"
)

// HeartbeatService records worker liveness so the admin ops endpoint
// can report pipeline health. A heartbeat older than 90 seconds reads
// as unhealthy, so the default 30 second interval leaves two missed
// beats of slack. Implements suture.Service.
type HeartbeatService struct {
	store    *database.Store
	interval time.Duration
}

// NewHeartbeatService creates the heartbeat service. A non-positive
// interval falls back to 30 seconds.
func NewHeartbeatService(store *database.Store, interval time.Duration) *HeartbeatService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HeartbeatService{store: store, interval: interval}
}

// Serve beats until context cancellation.
func (h *HeartbeatService) Serve(ctx context.Context) error {
	h.beat(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *HeartbeatService) beat(ctx context.Context) {
	if err := h.store.SetWorkerHeartbeat(ctx, time.Now().UTC()); err != nil {
		logging.Error().Err(err).Msg("worker heartbeat write failed")
	}
}

// CleanupService sweeps expired bot challenges, stale payment sessions,
// and aged audit events on a fixed interval. Implements suture.Service.
type CleanupService struct {
	store           *database.Store
	auditStore      audit.Store
	interval        time.Duration
	stalePaymentAge time.Duration
	auditRetention  time.Duration
}

// NewCleanupService creates the sweep service. auditStore may be nil
// when audit persistence is disabled.
func NewCleanupService(store *database.Store, auditStore audit.Store, cfg Config) *CleanupService {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{
		store:           store,
		auditStore:      auditStore,
		interval:        interval,
		stalePaymentAge: cfg.StalePaymentAge,
		auditRetention:  cfg.AuditRetention,
	}
}

// Serve sweeps until context cancellation.
func (c *CleanupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *CleanupService) sweep(ctx context.Context) {
	challenges, err := c.store.DeleteExpiredChallenges(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("challenge sweep failed")
	}

	payments := 0
	if c.stalePaymentAge > 0 {
		payments, err = c.store.ExpireStalePayments(ctx, c.stalePaymentAge)
		if err != nil {
			logging.Error().Err(err).Msg("stale payment sweep failed")
		}
	}

	var auditDeleted int64
	if c.auditStore != nil && c.auditRetention > 0 {
		cutoff := time.Now().UTC().Add(-c.auditRetention)
		auditDeleted, err = c.auditStore.Delete(ctx, cutoff)
		if err != nil {
			logging.Error().Err(err).Msg("audit retention sweep failed")
		}
	}

	if challenges > 0 || payments > 0 || auditDeleted > 0 {
		logging.Info().
			Int("challenges", challenges).
			Int("payments", payments).
			Int64("audit_events", auditDeleted).
			Msg("cleanup sweep done")
	}
}
