// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package models

import "strings"

// Vehicle is a fleet vehicle. Only vehicles with a GPSDeviceID can be synced.
type Vehicle struct {
	ID                 string `json:"id" koanf:"id"`
	RegistrationNumber string `json:"registrationNumber" koanf:"registrationNumber"`
	Make               string `json:"make,omitempty" koanf:"make"`
	Model              string `json:"model,omitempty" koanf:"model"`
	GPSDeviceID        string `json:"gpsDeviceId,omitempty" koanf:"gpsDeviceId"`
	AssignedDriver     string `json:"assignedDriver,omitempty" koanf:"assignedDriver"` // user email
	Status             string `json:"status,omitempty" koanf:"status"`
}

// GetID implements store.Entity.
func (v *Vehicle) GetID() string { return v.ID }

// SetID implements store.Entity.
func (v *Vehicle) SetID(id string) { v.ID = id }

// HasGPSDevice reports whether the vehicle is linked to a telemetry device.
func (v *Vehicle) HasGPSDevice() bool {
	return strings.TrimSpace(v.GPSDeviceID) != ""
}

// Role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an application user. Drivers are identified by email.
type User struct {
	ID       string `json:"id" koanf:"id"`
	Email    string `json:"email" koanf:"email"`
	FullName string `json:"fullName" koanf:"fullName"`
	Role     string `json:"role" koanf:"role"`
}

// GetID implements store.Entity.
func (u *User) GetID() string { return u.ID }

// SetID implements store.Entity.
func (u *User) SetID(id string) { u.ID = id }
