// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package sync orchestrates trip synchronization for one vehicle or the
// whole fleet: fetch from the GPS provider, geocode, reconcile, persist.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/drivelog/internal/config"
	"github.com/tomtom215/drivelog/internal/gps"
	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/metrics"
	"github.com/tomtom215/drivelog/internal/models"
	"github.com/tomtom215/drivelog/internal/reconcile"
	"github.com/tomtom215/drivelog/internal/store"
)

// VehicleStore reads vehicles.
type VehicleStore interface {
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	List(ctx context.Context) ([]*models.Vehicle, error)
}

// UserStore reads users for driver resolution.
type UserStore interface {
	List(ctx context.Context) ([]*models.User, error)
}

// EntryStore reads and writes journal entries.
type EntryStore interface {
	reconcile.EntryStore
	Filter(ctx context.Context, criteria map[string]any) ([]*models.JournalEntry, error)
}

// TripFetcher fetches raw trips for a device.
type TripFetcher interface {
	FetchTrips(ctx context.Context, deviceID string, window gps.Window, mode gps.Mode) (*gps.FetchResult, error)
}

// Enricher annotates trips with addresses.
type Enricher interface {
	Enrich(ctx context.Context, trips []models.Trip) int
}

// EventPublisher receives entries created by a run.
type EventPublisher interface {
	PublishTripSynced(ctx context.Context, entries []*models.JournalEntry)
}

// Deps are the collaborators of a Service. Enricher and Publisher are optional.
type Deps struct {
	Vehicles  VehicleStore
	Users     UserStore
	Entries   EntryStore
	Fetcher   TripFetcher
	Enricher  Enricher
	Publisher EventPublisher
}

// BulkRequest parameters a fleet-wide run. Zero values take defaults.
type BulkRequest struct {
	Window      gps.Window
	MaxVehicles int
	Trigger     string
}

// Service runs trip synchronization.
type Service struct {
	deps       Deps
	cfg        config.SyncConfig
	reconciler *reconcile.Reconciler
	locks      *vehicleLocks
	status     statusTracker
	now        func() time.Time
}

// NewService creates a sync service.
func NewService(deps Deps, cfg config.SyncConfig) *Service {
	if cfg.ProviderConcurrency <= 0 {
		cfg.ProviderConcurrency = 1
	}
	return &Service{
		deps:       deps,
		cfg:        cfg,
		reconciler: reconcile.New(deps.Entries, cfg.MatchTolerance),
		locks:      newVehicleLocks(),
		now:        time.Now,
	}
}

// Status returns the summary of the most recent run.
func (s *Service) Status() models.SyncStatus {
	return s.status.snapshot()
}

// DefaultWindow returns the trailing bulk lookback window ending now.
func (s *Service) DefaultWindow() gps.Window {
	end := s.now().UTC()
	return gps.Window{Start: end.Add(-s.cfg.BulkLookback), End: end}
}

// SyncVehicle synchronizes one vehicle over window, searching backward when
// the window is empty. ErrVehicleNotFound and ErrNoGPSDevice are returned
// before any provider call. On a later failure the partial result is
// returned with the error.
func (s *Service) SyncVehicle(ctx context.Context, vehicleID string, window gps.Window) (*models.VehicleSyncResult, error) {
	start := time.Now()
	s.status.begin()

	result, err := s.syncVehicle(ctx, vehicleID, window)

	metrics.RecordSyncOperation("vehicle", time.Since(start), err)
	synced, skipped := 0, 0
	if result != nil {
		synced, skipped = result.Synced, result.Skipped
	}
	s.status.finish(TriggerVehicle, start, 1, synced, skipped, err)
	return result, err
}

func (s *Service) syncVehicle(ctx context.Context, vehicleID string, window gps.Window) (*models.VehicleSyncResult, error) {
	ctx, cancel := s.withRunTimeout(ctx)
	defer cancel()

	vehicle, err := s.deps.Vehicles.Get(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVehicleNotFound, vehicleID)
		}
		return nil, fmt.Errorf("load vehicle %s: %w", vehicleID, err)
	}
	if !vehicle.HasGPSDevice() {
		return nil, fmt.Errorf("%w: %s", ErrNoGPSDevice, vehicle.RegistrationNumber)
	}

	users, err := s.deps.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	return s.syncOne(ctx, vehicle, users, window, gps.ModeBackward)
}

// SyncAll synchronizes every vehicle with a GPS device over one fixed
// window. Vehicle failures are isolated into their outcome; an
// authentication failure aborts the run.
func (s *Service) SyncAll(ctx context.Context, req BulkRequest) (*models.BulkSyncResult, error) {
	start := time.Now()
	s.status.begin()

	result, err := s.syncAll(ctx, req)

	metrics.RecordSyncOperation("all", time.Since(start), err)
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}
	s.status.finish(trigger, start, result.TotalVehicles, result.TotalSynced, result.TotalSkipped, err)
	return result, err
}

func (s *Service) syncAll(ctx context.Context, req BulkRequest) (*models.BulkSyncResult, error) {
	result := &models.BulkSyncResult{Results: []models.VehicleOutcome{}}

	ctx, cancel := s.withRunTimeout(ctx)
	defer cancel()

	window := req.Window
	if window.Start.IsZero() || window.End.IsZero() {
		def := s.DefaultWindow()
		if window.Start.IsZero() {
			window.Start = def.Start
		}
		if window.End.IsZero() {
			window.End = def.End
		}
	}

	vehicles, err := s.deps.Vehicles.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list vehicles: %w", err)
	}
	users, err := s.deps.Users.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list users: %w", err)
	}

	targets := make([]*models.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		if v.HasGPSDevice() {
			targets = append(targets, v)
		}
	}
	limit := req.MaxVehicles
	if limit <= 0 {
		limit = s.cfg.MaxVehicles
	}
	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}

	logging.Ctx(ctx).Info().
		Int("vehicles", len(targets)).
		Time("window_start", window.Start).
		Time("window_end", window.End).
		Int("concurrency", s.cfg.ProviderConcurrency).
		Msg("Starting fleet trip sync")

	outcomes := make([]models.VehicleOutcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ProviderConcurrency)

	for i, vehicle := range targets {
		outcomes[i].Vehicle = vehicle.RegistrationNumber
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i].Error = err.Error()
				return nil
			}

			res, err := s.syncOne(gctx, vehicle, users, window, gps.ModeFixed)
			if res != nil {
				outcomes[i].Synced = res.Synced
				outcomes[i].Skipped = res.Skipped
			}
			if err != nil {
				outcomes[i].Error = err.Error()
				logging.Ctx(gctx).Warn().
					Err(err).
					Str("vehicle_id", vehicle.ID).
					Str("registration", vehicle.RegistrationNumber).
					Msg("Vehicle sync failed")

				var authErr *gps.AuthenticationError
				if errors.As(err, &authErr) {
					return err
				}
			}
			return nil
		})
	}
	runErr := g.Wait()

	for _, o := range outcomes {
		result.TotalSynced += o.Synced
		result.TotalSkipped += o.Skipped
	}
	result.TotalVehicles = len(outcomes)
	result.Results = outcomes

	if runErr != nil {
		return result, runErr
	}

	logging.Ctx(ctx).Info().
		Int("vehicles", result.TotalVehicles).
		Int("synced", result.TotalSynced).
		Int("skipped", result.TotalSkipped).
		Msg("Fleet trip sync completed")
	return result, nil
}

// syncOne runs fetch, validate, geocode and reconcile for one vehicle
// while holding its lock.
func (s *Service) syncOne(ctx context.Context, vehicle *models.Vehicle, users []*models.User, window gps.Window, mode gps.Mode) (*models.VehicleSyncResult, error) {
	release := s.locks.lock(vehicle.ID)
	defer release()

	ctx = logging.ContextWithLogger(ctx, logging.LoggerFromContext(ctx).With().Str("vehicle_id", vehicle.ID).Logger())
	result := &models.VehicleSyncResult{
		VehicleID:      vehicle.ID,
		Trips:          []*models.JournalEntry{},
		SkippedDetails: []models.SkippedDetail{},
	}

	fetched, err := s.deps.Fetcher.FetchTrips(ctx, vehicle.GPSDeviceID, window, mode)
	if fetched != nil {
		result.SearchSteps = fetched.Steps
	}
	if err != nil {
		return result, fmt.Errorf("fetch trips for %s: %w", vehicle.RegistrationNumber, err)
	}
	if mode == gps.ModeBackward {
		metrics.SyncBackwardSteps.Observe(float64(fetched.Steps))
	}

	trips := make([]models.Trip, 0, len(fetched.Trips))
	for i := range fetched.Trips {
		trip, err := fetched.Trips[i].Validate()
		if err != nil {
			var invalid *models.InvalidTripError
			if !errors.As(err, &invalid) {
				return result, err
			}
			result.Skipped++
			result.SkippedDetails = append(result.SkippedDetails, models.SkippedDetail{
				TripID: invalid.TripID,
				Reason: invalid.Reason,
			})
			metrics.RecordTripOutcome("invalid", 1)
			continue
		}
		trips = append(trips, trip)
	}

	if s.deps.Enricher != nil {
		s.deps.Enricher.Enrich(ctx, trips)
	}

	existing, err := s.deps.Entries.Filter(ctx, map[string]any{"vehicleId": vehicle.ID})
	if err != nil {
		return result, fmt.Errorf("load entries for %s: %w", vehicle.RegistrationNumber, err)
	}

	skippedBefore := result.Skipped
	err = s.reconciler.Reconcile(ctx, reconcile.Input{
		Vehicle:  vehicle,
		Driver:   reconcile.ResolveDriver(vehicle, users),
		Snapshot: reconcile.NewSnapshot(existing),
		Trips:    trips,
	}, result)

	s.recordOutcomes(result, skippedBefore)
	if s.deps.Publisher != nil {
		s.deps.Publisher.PublishTripSynced(ctx, result.Trips)
	}
	if err != nil {
		return result, fmt.Errorf("reconcile trips for %s: %w", vehicle.RegistrationNumber, err)
	}

	logging.Ctx(ctx).Info().
		Str("registration", vehicle.RegistrationNumber).
		Int("fetched", len(fetched.Trips)).
		Int("synced", result.Synced).
		Int("skipped", result.Skipped).
		Int("search_steps", result.SearchSteps).
		Msg("Vehicle trip sync completed")
	return result, nil
}

func (s *Service) recordOutcomes(result *models.VehicleSyncResult, skippedBefore int) {
	merged := 0
	for _, d := range result.SkippedDetails[skippedBefore:] {
		if d.Reason == models.SkipReasonMerged {
			merged++
		}
	}
	anomalies := 0
	for _, e := range result.Trips {
		if e.IsAnomaly {
			anomalies++
		}
	}

	metrics.RecordTripOutcome("created", result.Synced)
	metrics.RecordTripOutcome("patched", merged)
	metrics.RecordTripOutcome("skipped", result.Skipped-skippedBefore-merged)
	metrics.SyncAnomaliesTotal.Add(float64(anomalies))
}

func (s *Service) withRunTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RunTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RunTimeout)
	}
	return context.WithCancel(ctx)
}
