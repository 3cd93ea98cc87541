// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package sync

import "sync"

// vehicleLocks serializes runs per vehicle so a manual and a scheduled
// sync never reconcile the same vehicle at once.
type vehicleLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the lock for id and returns its release function.
func (v *vehicleLocks) lock(id string) func() {
	v.mu.Lock()
	l, ok := v.locks[id]
	if !ok {
		l = &sync.Mutex{}
		v.locks[id] = l
	}
	v.mu.Unlock()

	l.Lock()
	return l.Unlock
}
