// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// EventRouter is the lifecycle of *events.Bus.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// EventBusService runs the in-process event router. A watermill router
// cannot be run twice, so a failed router is not restarted.
type EventBusService struct {
	bus  EventRouter
	name string
}

// NewEventBusService wraps bus.
func NewEventBusService(bus EventRouter) *EventBusService {
	return &EventBusService{bus: bus, name: "event-bus"}
}

// Serve implements suture.Service.
func (e *EventBusService) Serve(ctx context.Context) error {
	err := e.bus.Run(ctx)
	if closeErr := e.bus.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w: event router stopped: %v", suture.ErrDoNotRestart, err)
	}
	return suture.ErrDoNotRestart
}

// String implements fmt.Stringer.
func (e *EventBusService) String() string {
	return e.name
}
