// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package sync

import (
	"errors"

	"github.com/tomtom215/drivelog/internal/metrics"
)

var (
	// ErrVehicleNotFound is returned when the requested vehicle does not exist.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrNoGPSDevice is returned when the vehicle has no GPS device configured.
	ErrNoGPSDevice = errors.New("vehicle has no GPS device configured")

	// ErrSyncInProgress is returned by Manager.Run while another fleet run is active.
	ErrSyncInProgress = errors.New("sync already in progress")
)

func init() {
	metrics.RegisterErrorClassifier(func(err error) (string, bool) {
		switch {
		case errors.Is(err, ErrVehicleNotFound):
			return "vehicle_not_found", true
		case errors.Is(err, ErrNoGPSDevice):
			return "no_gps_device", true
		}
		return "", false
	})
}
