// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package reconcile decides, for each provider trip, whether to create a
// journal entry, attach the provider id to an existing one, or skip it.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/models"
)

// Action is the reconciliation decision for one trip.
type Action int

const (
	ActionCreate Action = iota
	ActionPatch
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionPatch:
		return "patch"
	default:
		return "skip"
	}
}

// EntryStore persists journal entries.
type EntryStore interface {
	Create(ctx context.Context, rec *models.JournalEntry) (*models.JournalEntry, error)
	Update(ctx context.Context, id string, partial map[string]any) (*models.JournalEntry, error)
}

// Snapshot is the in-memory view of a vehicle's existing entries, read once
// per run. Entries created during the run are tracked separately and only
// match by provider trip id, so trips starting close together are not
// mistaken for each other.
type Snapshot struct {
	entries []*models.JournalEntry
	created []*models.JournalEntry
}

// NewSnapshot creates a snapshot over existing.
func NewSnapshot(existing []*models.JournalEntry) *Snapshot {
	entries := make([]*models.JournalEntry, len(existing))
	copy(entries, existing)
	return &Snapshot{entries: entries}
}

// Len returns the number of entries in the snapshot, including those
// created during the run.
func (s *Snapshot) Len() int { return len(s.entries) + len(s.created) }

// Match returns the entry trip corresponds to: first by provider trip id,
// then by a start time within tolerance of a preloaded entry. It returns
// nil when none matches.
func (s *Snapshot) Match(trip *models.Trip, tolerance time.Duration) *models.JournalEntry {
	if trip.ProviderTripID != "" {
		for _, e := range s.entries {
			if e.ProviderTripID == trip.ProviderTripID {
				return e
			}
		}
		for _, e := range s.created {
			if e.ProviderTripID == trip.ProviderTripID {
				return e
			}
		}
	}
	for _, e := range s.entries {
		if absDuration(e.StartTime.Sub(trip.Start)) <= tolerance {
			return e
		}
	}
	return nil
}

func (s *Snapshot) add(e *models.JournalEntry) {
	s.created = append(s.created, e)
}

// Decide returns the action for trip given its match, which may be nil.
func Decide(trip *models.Trip, match *models.JournalEntry) Action {
	switch {
	case match == nil:
		return ActionCreate
	case match.ProviderTripID == "" && trip.ProviderTripID != "":
		return ActionPatch
	default:
		return ActionSkip
	}
}

// Reconciler applies reconciliation decisions to the entry store.
type Reconciler struct {
	entries   EntryStore
	tolerance time.Duration
	now       func() time.Time
}

// New creates a reconciler. tolerance is the start time window within which
// an existing entry is considered the same trip.
func New(entries EntryStore, tolerance time.Duration) *Reconciler {
	return &Reconciler{entries: entries, tolerance: tolerance, now: time.Now}
}

// Input is one vehicle's reconciliation work.
type Input struct {
	Vehicle  *models.Vehicle
	Driver   *models.User
	Snapshot *Snapshot
	Trips    []models.Trip
}

// Reconcile processes in.Trips in order and accumulates counts into result.
// A store failure aborts the remaining trips and is returned; the counts
// already accumulated stay in result.
func (r *Reconciler) Reconcile(ctx context.Context, in Input, result *models.VehicleSyncResult) error {
	log := logging.Ctx(ctx)

	for i := range in.Trips {
		if err := ctx.Err(); err != nil {
			return err
		}
		trip := &in.Trips[i]
		match := in.Snapshot.Match(trip, r.tolerance)

		switch Decide(trip, match) {
		case ActionCreate:
			entry, err := r.entries.Create(ctx, r.newEntry(in.Vehicle, in.Driver, trip))
			if err != nil {
				return fmt.Errorf("create entry for trip %s: %w", trip.ProviderTripID, err)
			}
			in.Snapshot.add(entry)
			result.Synced++
			result.Trips = append(result.Trips, entry)
			log.Debug().
				Str("trip_id", trip.ProviderTripID).
				Str("entry_id", entry.ID).
				Bool("anomaly", entry.IsAnomaly).
				Msg("Created journal entry")

		case ActionPatch:
			if _, err := r.entries.Update(ctx, match.ID, map[string]any{"providerTripId": trip.ProviderTripID}); err != nil {
				return fmt.Errorf("attach trip %s to entry %s: %w", trip.ProviderTripID, match.ID, err)
			}
			match.ProviderTripID = trip.ProviderTripID
			result.Skipped++
			result.SkippedDetails = append(result.SkippedDetails, models.SkippedDetail{
				TripID: trip.ProviderTripID,
				Reason: models.SkipReasonMerged,
			})
			log.Debug().
				Str("trip_id", trip.ProviderTripID).
				Str("entry_id", match.ID).
				Msg("Merged provider trip into existing entry")

		case ActionSkip:
			result.Skipped++
			result.SkippedDetails = append(result.SkippedDetails, models.SkippedDetail{
				TripID: trip.ProviderTripID,
				Reason: models.SkipReasonAlreadySynced,
			})
		}
	}
	return nil
}

func (r *Reconciler) newEntry(vehicle *models.Vehicle, driver *models.User, trip *models.Trip) *models.JournalEntry {
	now := r.now().UTC()
	entry := &models.JournalEntry{
		ProviderTripID:     trip.ProviderTripID,
		VehicleID:          vehicle.ID,
		RegistrationNumber: vehicle.RegistrationNumber,
		StartTime:          trip.Start,
		EndTime:            trip.End,
		DistanceKm:         trip.DistanceKm,
		DurationMinutes:    trip.DurationMinutes(),
		TripType:           models.TripTypeUnclassified,
		Status:             models.StatusPendingReview,
		StartLocation:      location(trip.StartPoint, trip.StartAddress),
		EndLocation:        location(trip.EndPoint, trip.EndAddress),
		Source:             models.SourceGPS,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if driver != nil {
		entry.DriverEmail = driver.Email
		entry.DriverName = driver.FullName
	}
	if reasons := Anomalies(trip, driver); len(reasons) > 0 {
		entry.IsAnomaly = true
		entry.AnomalyReason = JoinReasons(reasons)
	}
	return entry
}

func location(p *models.Point, address *string) *models.Location {
	if p == nil {
		return nil
	}
	return &models.Location{Latitude: p.Lat, Longitude: p.Lon, Address: address}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
