// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// FlexString decodes a JSON string or number into a string.
// The provider emits trip ids as either.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// FlexInt64 decodes a JSON number or numeric string into an int64.
type FlexInt64 int64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt64(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexInt64(int64(v))
	return nil
}

// FlexFloat64 decodes a JSON number or numeric string into a float64.
type FlexFloat64 float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = FlexFloat64(v)
	return nil
}

// RawTrip is a trip record as returned by the provider's querytrips action.
// Every field is optional on the wire; Validate decides which are required.
type RawTrip struct {
	TripID    *FlexString  `json:"tripid"`
	BeginTime *FlexInt64   `json:"begintime"`
	EndTime   *FlexInt64   `json:"endtime"`
	Mileage   *FlexFloat64 `json:"mileage"`
	StartLat  *FlexFloat64 `json:"slat"`
	StartLon  *FlexFloat64 `json:"slon"`
	EndLat    *FlexFloat64 `json:"elat"`
	EndLon    *FlexFloat64 `json:"elon"`
}

// ID returns the provider trip id or "" when absent.
func (r *RawTrip) ID() string {
	if r.TripID == nil {
		return ""
	}
	return strings.TrimSpace(string(*r.TripID))
}

// Point is a latitude/longitude pair.
type Point struct {
	Lat float64
	Lon float64
}

// Key returns the "{lat},{lon}" form used for geocode deduplication and as
// the address fallback.
func (p Point) Key() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// Trip is a validated provider trip.
type Trip struct {
	ProviderTripID string
	Start          time.Time
	End            time.Time
	DistanceKm     float64
	StartPoint     *Point
	EndPoint       *Point
	StartAddress   *string
	EndAddress     *string
}

// DurationMinutes returns (end - start) in minutes.
func (t *Trip) DurationMinutes() float64 {
	return t.End.Sub(t.Start).Minutes()
}

// InvalidTripError reports a provider trip that cannot be reconciled.
type InvalidTripError struct {
	TripID string
	Reason string
}

func (e *InvalidTripError) Error() string {
	if e.TripID == "" {
		return "invalid trip: " + e.Reason
	}
	return fmt.Sprintf("invalid trip %s: %s", e.TripID, e.Reason)
}

// Validate converts the raw record into a Trip. Records without begin or
// end time, or with end before begin, are rejected with *InvalidTripError.
func (r *RawTrip) Validate() (Trip, error) {
	id := r.ID()
	var missing []string
	if r.BeginTime == nil {
		missing = append(missing, "begintime")
	}
	if r.EndTime == nil {
		missing = append(missing, "endtime")
	}
	if len(missing) > 0 {
		return Trip{}, &InvalidTripError{TripID: id, Reason: "missing required field: " + strings.Join(missing, ", ")}
	}

	trip := Trip{
		ProviderTripID: id,
		Start:          time.Unix(int64(*r.BeginTime), 0).UTC(),
		End:            time.Unix(int64(*r.EndTime), 0).UTC(),
		StartPoint:     point(r.StartLat, r.StartLon),
		EndPoint:       point(r.EndLat, r.EndLon),
	}
	if trip.End.Before(trip.Start) {
		return Trip{}, &InvalidTripError{TripID: id, Reason: "end time before start time"}
	}
	if r.Mileage != nil {
		trip.DistanceKm = float64(*r.Mileage)
	}
	return trip, nil
}

func point(lat, lon *FlexFloat64) *Point {
	if lat == nil || lon == nil {
		return nil
	}
	return &Point{Lat: float64(*lat), Lon: float64(*lon)}
}
