// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"net/http"
	"time"

	"github.com/sparkpit/sparkpit/internal/models"
)

// Ops returns the admin operations checklist: provider configuration,
// webhook freshness, pipeline connectivity, and worker health.
func (h *Handler) Ops(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	status := models.OpsStatus{
		ProviderConfigured: h.payments != nil && h.payments.Configured(),
		EventsConnected:    h.pipeline != nil && h.pipeline.Healthy(),
		StoreOpen:          h.store.IsOpen(),
	}

	status.WebhookLastReceived, status.WebhookStatus = h.store.WebhookStatus(r.Context())
	status.WorkerHeartbeat, status.WorkerHealthy = h.store.WorkerHeartbeat(r.Context())
	if h.hub != nil {
		status.ConnectedClients = h.hub.ClientCount()
	}

	respondSuccess(w, http.StatusOK, status, started)
}
