// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the public liveness payload.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Health reports liveness plus coarse component states. Public: no
// membership details leak from it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	components := map[string]string{
		"store": componentState(h.store != nil && h.store.IsOpen()),
	}
	if h.pipeline != nil {
		components["events"] = componentState(h.pipeline.Healthy())
	}
	if h.hub != nil {
		components["websocket"] = "up"
	}

	status := "ok"
	if components["store"] != "up" {
		status = "degraded"
	}

	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:     status,
		Components: components,
		Timestamp:  time.Now().UTC(),
	}, started)
}

func componentState(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
