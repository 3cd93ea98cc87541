// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package events carries domain events over an in-process Watermill bus.
package events

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/drivelog/internal/models"
)

// SchemaVersion is the current TripSynced schema version.
const SchemaVersion = 1

// TopicTripSynced carries one TripSynced per created journal entry.
const TopicTripSynced = "trips.synced"

// TripSynced is published when a sync run creates a journal entry.
type TripSynced struct {
	SchemaVersion      int       `json:"schema_version"`
	EventID            string    `json:"event_id"`
	EntryID            string    `json:"entry_id"`
	VehicleID          string    `json:"vehicle_id"`
	RegistrationNumber string    `json:"registration_number"`
	ProviderTripID     string    `json:"provider_trip_id,omitempty"`
	DriverEmail        string    `json:"driver_email,omitempty"`
	StartTime          time.Time `json:"start_time"`
	DistanceKm         float64   `json:"distance_km"`
	IsAnomaly          bool      `json:"is_anomaly"`
	AnomalyReason      string    `json:"anomaly_reason,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// NewTripSynced builds the event for a created entry.
func NewTripSynced(entry *models.JournalEntry) TripSynced {
	return TripSynced{
		SchemaVersion:      SchemaVersion,
		EventID:            uuid.NewString(),
		EntryID:            entry.ID,
		VehicleID:          entry.VehicleID,
		RegistrationNumber: entry.RegistrationNumber,
		ProviderTripID:     entry.ProviderTripID,
		DriverEmail:        entry.DriverEmail,
		StartTime:          entry.StartTime,
		DistanceKm:         entry.DistanceKm,
		IsAnomaly:          entry.IsAnomaly,
		AnomalyReason:      entry.AnomalyReason,
		Timestamp:          time.Now().UTC(),
	}
}

// Marshal encodes the event.
func (e *TripSynced) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalTripSynced decodes an event payload.
func UnmarshalTripSynced(data []byte) (*TripSynced, error) {
	var e TripSynced
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
