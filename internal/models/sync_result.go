// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Skip reasons reported in SkippedDetail.
const (
	SkipReasonAlreadySynced = "already synced"
	SkipReasonMerged        = "merged with existing entry"
)

// SkippedDetail explains why a provider trip did not produce a new entry.
type SkippedDetail struct {
	TripID string `json:"tripId"`
	Reason string `json:"reason"`
}

// VehicleSyncResult summarizes a sync run for one vehicle.
type VehicleSyncResult struct {
	VehicleID      string          `json:"-"`
	Synced         int             `json:"synced"`
	Skipped        int             `json:"skipped"`
	Trips          []*JournalEntry `json:"trips"`
	SkippedDetails []SkippedDetail `json:"skippedDetails"`
	SearchSteps    int             `json:"searchSteps"`
}

// VehicleOutcome is one element of a bulk run. Error is set instead of the
// counts when the vehicle failed.
type VehicleOutcome struct {
	Vehicle string `json:"vehicle"`
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// BulkSyncResult summarizes a sync run over all vehicles.
type BulkSyncResult struct {
	TotalVehicles int              `json:"totalVehicles"`
	TotalSynced   int              `json:"totalSynced"`
	TotalSkipped  int              `json:"totalSkipped"`
	Results       []VehicleOutcome `json:"results"`
}

// SyncStatus is the last-run summary exposed by the status endpoint.
type SyncStatus struct {
	Running      bool      `json:"running"`
	LastRunAt    time.Time `json:"lastRunAt,omitempty"`
	LastTrigger  string    `json:"lastTrigger,omitempty"`
	LastSynced   int       `json:"lastSynced"`
	LastSkipped  int       `json:"lastSkipped"`
	LastVehicles int       `json:"lastVehicles"`
	LastError    string    `json:"lastError,omitempty"`
	LastDuration string    `json:"lastDuration,omitempty"`
}

// MarshalJSON emits {vehicle, error} for failed vehicles and
// {vehicle, synced, skipped} otherwise. A vehicle that failed after
// persisting some trips also carries those counts so the bulk totals
// add up from the results.
func (o VehicleOutcome) MarshalJSON() ([]byte, error) {
	if o.Error != "" {
		return json.Marshal(struct {
			Vehicle string `json:"vehicle"`
			Error   string `json:"error"`
			Synced  int    `json:"synced,omitempty"`
			Skipped int    `json:"skipped,omitempty"`
		}{o.Vehicle, o.Error, o.Synced, o.Skipped})
	}
	return json.Marshal(struct {
		Vehicle string `json:"vehicle"`
		Synced  int    `json:"synced"`
		Skipped int    `json:"skipped"`
	}{o.Vehicle, o.Synced, o.Skipped})
}
