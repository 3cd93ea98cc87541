// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package models defines the entities persisted by Drivelog and the
// transient records exchanged with the GPS telemetry provider.
package models

import "time"

// Collection names in the entity store.
const (
	CollectionVehicle      = "Vehicle"
	CollectionJournalEntry = "DrivingJournalEntry"
	CollectionUser         = "User"
	CollectionNotification = "Notification"
)

// TripType classifies a journal entry. New GPS trips start unclassified
// and are classified by the driver.
type TripType string

const (
	TripTypeUnclassified TripType = "unclassified"
	TripTypeBusiness     TripType = "business"
	TripTypePrivate      TripType = "private"
)

// EntryStatus is the review state of a journal entry.
type EntryStatus string

const (
	StatusPendingReview EntryStatus = "pending_review"
	StatusSubmitted     EntryStatus = "submitted"
	StatusApproved      EntryStatus = "approved"
	StatusRequiresInfo  EntryStatus = "requires_info"
)

// EntrySource records how a journal entry was created.
type EntrySource string

const (
	SourceGPS    EntrySource = "gps"
	SourceManual EntrySource = "manual"
)

// Location is a trip endpoint. Address is nil when geocoding is disabled.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   *string `json:"address"`
}

// JournalEntry is one trip in a vehicle's driving journal.
//
// ProviderTripID is the natural deduplication key; entries created manually
// or before it was recorded have it empty and are matched by start time.
type JournalEntry struct {
	ID                 string      `json:"id"`
	ProviderTripID     string      `json:"providerTripId,omitempty"`
	VehicleID          string      `json:"vehicleId"`
	RegistrationNumber string      `json:"registrationNumber"`
	StartTime          time.Time   `json:"startTime"`
	EndTime            time.Time   `json:"endTime"`
	DistanceKm         float64     `json:"distanceKm"`
	DurationMinutes    float64     `json:"durationMinutes"`
	TripType           TripType    `json:"tripType"`
	Status             EntryStatus `json:"status"`
	StartLocation      *Location   `json:"startLocation"`
	EndLocation        *Location   `json:"endLocation"`
	DriverEmail        string      `json:"driverEmail,omitempty"`
	DriverName         string      `json:"driverName,omitempty"`
	IsAnomaly          bool        `json:"isAnomaly"`
	AnomalyReason      string      `json:"anomalyReason,omitempty"`
	Source             EntrySource `json:"source,omitempty"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// GetID implements store.Entity.
func (e *JournalEntry) GetID() string { return e.ID }

// SetID implements store.Entity.
func (e *JournalEntry) SetID(id string) { e.ID = id }
