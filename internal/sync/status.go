// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package sync

import (
	"sync"
	"time"

	"github.com/tomtom215/drivelog/internal/models"
)

// Triggers recorded in the run status.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerVehicle   = "vehicle"
)

type statusTracker struct {
	mu      sync.RWMutex
	running int
	last    models.SyncStatus
}

func (s *statusTracker) begin() {
	s.mu.Lock()
	s.running++
	s.mu.Unlock()
}

func (s *statusTracker) finish(trigger string, started time.Time, vehicles, synced, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running--
	s.last.LastRunAt = started.UTC()
	s.last.LastTrigger = trigger
	s.last.LastVehicles = vehicles
	s.last.LastSynced = synced
	s.last.LastSkipped = skipped
	s.last.LastDuration = time.Since(started).Round(time.Millisecond).String()
	s.last.LastError = ""
	if err != nil {
		s.last.LastError = err.Error()
	}
}

func (s *statusTracker) snapshot() models.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.last
	st.Running = s.running > 0
	return st
}
