// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package store

import (
	"context"
	"fmt"

	"github.com/tomtom215/drivelog/internal/models"
)

// Entities groups the collections used by the application.
type Entities struct {
	Vehicles      *Collection[models.Vehicle, *models.Vehicle]
	Entries       *Collection[models.JournalEntry, *models.JournalEntry]
	Users         *Collection[models.User, *models.User]
	Notifications *Collection[models.Notification, *models.Notification]
}

// NewEntities binds the application collections to db.
func NewEntities(db *DB) *Entities {
	return &Entities{
		Vehicles:      NewCollection[models.Vehicle](db, models.CollectionVehicle),
		Entries:       NewCollection[models.JournalEntry](db, models.CollectionJournalEntry),
		Users:         NewCollection[models.User](db, models.CollectionUser),
		Notifications: NewCollection[models.Notification](db, models.CollectionNotification),
	}
}

// Fixture is a set of vehicles and users to import.
type Fixture struct {
	Vehicles []models.Vehicle `koanf:"vehicles"`
	Users    []models.User    `koanf:"users"`
}

// Seed writes the fixture records. Records with an id overwrite any stored
// record with the same id, so seeding is repeatable.
func (e *Entities) Seed(ctx context.Context, f *Fixture) error {
	for i := range f.Users {
		if _, err := e.Users.Create(ctx, &f.Users[i]); err != nil {
			return fmt.Errorf("seed user %s: %w", f.Users[i].Email, err)
		}
	}
	for i := range f.Vehicles {
		if _, err := e.Vehicles.Create(ctx, &f.Vehicles[i]); err != nil {
			return fmt.Errorf("seed vehicle %s: %w", f.Vehicles[i].RegistrationNumber, err)
		}
	}
	return nil
}
