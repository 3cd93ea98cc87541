// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package api exposes the trip sync operations over HTTP using the Chi router.
package api

import (
	"context"
	"time"

	"github.com/tomtom215/drivelog/internal/gps"
	"github.com/tomtom215/drivelog/internal/models"
	syncpkg "github.com/tomtom215/drivelog/internal/sync"
)

// VehicleSyncer synchronizes a single vehicle.
type VehicleSyncer interface {
	SyncVehicle(ctx context.Context, vehicleID string, window gps.Window) (*models.VehicleSyncResult, error)
	Status() models.SyncStatus
}

// FleetSyncer runs a fleet-wide sync.
type FleetSyncer interface {
	Run(ctx context.Context, req syncpkg.BulkRequest) (*models.BulkSyncResult, error)
	LastSyncTime() time.Time
}

// Pinger reports store reachability.
type Pinger interface {
	Ping() error
}

// Handler serves the HTTP endpoints.
type Handler struct {
	vehicles  VehicleSyncer
	fleet     FleetSyncer
	store     Pinger
	startTime time.Time
}

// NewHandler creates a handler.
func NewHandler(vehicles VehicleSyncer, fleet FleetSyncer, store Pinger) *Handler {
	return &Handler{
		vehicles:  vehicles,
		fleet:     fleet,
		store:     store,
		startTime: time.Now(),
	}
}
