// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/drivelog/internal/gps"
	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/models"
	syncpkg "github.com/tomtom215/drivelog/internal/sync"
	"github.com/tomtom215/drivelog/internal/validation"
)

// SyncVehicleRequest is the body of POST /syncGPSTrips.
type SyncVehicleRequest struct {
	VehicleID string `json:"vehicleId" validate:"required"`
	StartDate string `json:"startDate" validate:"required,isodate"`
	EndDate   string `json:"endDate" validate:"required,isodate"`
}

// SyncAllRequest is the body of POST /syncAllGPSTrips. Omitted dates take
// the trailing lookback window.
type SyncAllRequest struct {
	StartDate   string `json:"startDate" validate:"omitempty,isodate"`
	EndDate     string `json:"endDate" validate:"omitempty,isodate"`
	MaxVehicles int    `json:"maxVehicles" validate:"gte=0"`
}

// SyncVehicleResponse is the success body of POST /syncGPSTrips.
type SyncVehicleResponse struct {
	Success bool `json:"success"`
	*models.VehicleSyncResult
}

// SyncAllResponse is the success body of POST /syncAllGPSTrips.
type SyncAllResponse struct {
	Success bool `json:"success"`
	*models.BulkSyncResult
}

type syncErrorResponse struct {
	Error   string `json:"error"`
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
}

type syncAllErrorResponse struct {
	Error string `json:"error"`
	*models.BulkSyncResult
}

// SyncGPSTrips synchronizes one vehicle over the requested window,
// searching backward when the window is empty.
func (h *Handler) SyncGPSTrips(w http.ResponseWriter, r *http.Request) {
	var req SyncVehicleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, verr.Error(), nil)
		return
	}
	window, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	log := logging.Ctx(r.Context())
	log.Info().
		Str("vehicle_id", sanitizeLogValue(req.VehicleID)).
		Time("window_start", window.Start).
		Time("window_end", window.End).
		Msg("Vehicle trip sync requested")

	result, err := h.vehicles.SyncVehicle(r.Context(), req.VehicleID, window)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, syncpkg.ErrVehicleNotFound):
			status = http.StatusNotFound
		case errors.Is(err, syncpkg.ErrNoGPSDevice):
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Int("status", status).Msg("Vehicle trip sync failed")

		body := syncErrorResponse{Error: err.Error()}
		if result != nil {
			body.Synced, body.Skipped = result.Synced, result.Skipped
		}
		respondJSON(w, status, body)
		return
	}

	respondJSON(w, http.StatusOK, SyncVehicleResponse{Success: true, VehicleSyncResult: result})
}

// SyncAllGPSTrips synchronizes every vehicle with a GPS device over one window.
func (h *Handler) SyncAllGPSTrips(w http.ResponseWriter, r *http.Request) {
	var req SyncAllRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, verr.Error(), nil)
		return
	}
	window, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := h.fleet.Run(r.Context(), syncpkg.BulkRequest{
		Window:      window,
		MaxVehicles: req.MaxVehicles,
		Trigger:     syncpkg.TriggerManual,
	})
	if err != nil {
		if errors.Is(err, syncpkg.ErrSyncInProgress) {
			respondError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Fleet trip sync failed")
		if result == nil {
			result = &models.BulkSyncResult{Results: []models.VehicleOutcome{}}
		}
		respondJSON(w, http.StatusInternalServerError, syncAllErrorResponse{Error: err.Error(), BulkSyncResult: result})
		return
	}

	respondJSON(w, http.StatusOK, SyncAllResponse{Success: true, BulkSyncResult: result})
}

// SyncStatus returns the summary of the most recent sync run.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status := h.vehicles.Status()
	var lastScheduled *time.Time
	if t := h.fleet.LastSyncTime(); !t.IsZero() {
		lastScheduled = &t
	}
	respondJSON(w, http.StatusOK, struct {
		models.SyncStatus
		LastFleetSyncAt *time.Time `json:"lastFleetSyncAt,omitempty"`
	}{status, lastScheduled})
}

// parseWindow converts request dates into a window. Either bound may be
// empty. A date-only end covers the whole day.
func parseWindow(startDate, endDate string) (gps.Window, error) {
	var window gps.Window
	var err error
	if startDate != "" {
		if window.Start, err = validation.ParseTime(startDate); err != nil {
			return window, err
		}
	}
	if endDate != "" {
		if window.End, err = validation.ParseTime(endDate); err != nil {
			return window, err
		}
		if validation.IsDateOnly(endDate) {
			window.End = window.End.Add(24*time.Hour - time.Second)
		}
	}
	if !window.Start.IsZero() && !window.End.IsZero() && window.End.Before(window.Start) {
		return window, fmt.Errorf("endDate %s is before startDate %s", endDate, startDate)
	}
	return window, nil
}
