// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package gps

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/models"
)

// Mode selects how FetchTrips treats an empty window.
type Mode int

const (
	// ModeFixed queries the given window once.
	ModeFixed Mode = iota
	// ModeBackward shifts an empty window back until trips are found or
	// the maximum lookback has been searched.
	ModeBackward
)

// Window is a half-open time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Shift returns the window moved by d.
func (w Window) Shift(d time.Duration) Window {
	return Window{Start: w.Start.Add(d), End: w.End.Add(d)}
}

// FetchResult is the outcome of FetchTrips.
type FetchResult struct {
	Trips []models.RawTrip
	// Window is the last window queried.
	Window Window
	// Steps is the number of backward shifts performed.
	Steps int
}

// Fetcher runs window searches against a TripQuerier.
type Fetcher struct {
	client   TripQuerier
	step     time.Duration
	lookback time.Duration
}

// NewFetcher creates a fetcher. step is the backward shift and lookback the
// total distance after which the search gives up.
func NewFetcher(client TripQuerier, step, lookback time.Duration) *Fetcher {
	return &Fetcher{client: client, step: step, lookback: lookback}
}

// FetchTrips queries deviceID over window.
//
// In ModeBackward an empty result shifts both bounds back by one step and
// retries; the search stops on the first non-empty result, on any error
// other than a malformed response, or once step*shifts reaches the maximum
// lookback. A malformed response counts as zero trips.
func (f *Fetcher) FetchTrips(ctx context.Context, deviceID string, window Window, mode Mode) (*FetchResult, error) {
	result := &FetchResult{Window: window}

	for {
		trips, err := f.client.QueryTrips(ctx, deviceID, result.Window.Start, result.Window.End)
		if err != nil {
			var malformed *MalformedResponseError
			if !errors.As(err, &malformed) {
				return result, err
			}
			logging.Ctx(ctx).Warn().Err(err).Str("device_id", deviceID).Msg("Ignoring malformed trip response")
			trips = nil
		}

		if len(trips) > 0 || mode != ModeBackward {
			result.Trips = trips
			return result, nil
		}
		if time.Duration(result.Steps)*f.step >= f.lookback {
			logging.Ctx(ctx).Debug().
				Str("device_id", deviceID).
				Int("steps", result.Steps).
				Msg("Backward trip search exhausted")
			return result, nil
		}

		result.Steps++
		result.Window = result.Window.Shift(-f.step)
	}
}
