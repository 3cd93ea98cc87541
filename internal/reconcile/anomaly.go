// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package reconcile

import (
	"strings"

	"github.com/tomtom215/drivelog/internal/models"
)

// Anomaly thresholds.
const (
	MaxNormalDistanceKm      = 500.0
	MaxNormalDurationMinutes = 720.0
)

// Anomaly reasons, in the order they are reported.
const (
	ReasonNoDriver     = "driver could not be identified automatically"
	ReasonLongDistance = "unusually long trip (over 500 km)"
	ReasonLongDuration = "unusually long duration (over 12 hours)"
)

// Anomalies returns the reasons trip should be reviewed. driver is the
// resolved driver, or nil.
func Anomalies(trip *models.Trip, driver *models.User) []string {
	var reasons []string
	if driver == nil {
		reasons = append(reasons, ReasonNoDriver)
	}
	if trip.DistanceKm > MaxNormalDistanceKm {
		reasons = append(reasons, ReasonLongDistance)
	}
	if trip.DurationMinutes() > MaxNormalDurationMinutes {
		reasons = append(reasons, ReasonLongDuration)
	}
	return reasons
}

// JoinReasons formats anomaly reasons for AnomalyReason.
func JoinReasons(reasons []string) string {
	return strings.Join(reasons, ". ")
}

// ResolveDriver returns the user whose email matches the vehicle's assigned
// driver, compared case-insensitively, or nil.
func ResolveDriver(vehicle *models.Vehicle, users []*models.User) *models.User {
	email := strings.TrimSpace(vehicle.AssignedDriver)
	if email == "" {
		return nil
	}
	for _, u := range users {
		if strings.EqualFold(strings.TrimSpace(u.Email), email) {
			return u
		}
	}
	return nil
}
