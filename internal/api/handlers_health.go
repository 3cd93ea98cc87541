// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/drivelog/internal/logging"
)

// HealthLive is the liveness probe. It never touches dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 only when the entity store is reachable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	storeConnected := false
	if h.store != nil {
		if err := h.store.Ping(); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check: store unreachable")
		} else {
			storeConnected = true
		}
	}

	statusCode := http.StatusOK
	status := "ready"
	if !storeConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, map[string]interface{}{
		"status":          status,
		"store_connected": storeConnected,
		"uptime":          time.Since(h.startTime).Seconds(),
	})
}
