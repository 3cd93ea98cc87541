// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package models

import "time"

// NotificationTypeTripReview asks a driver to classify or explain a synced trip.
const NotificationTypeTripReview = "trip_review"

// Notification is an in-app message for a user.
type Notification struct {
	ID             string    `json:"id"`
	RecipientEmail string    `json:"recipientEmail"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	EntryID        string    `json:"entryId,omitempty"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

// GetID implements store.Entity.
func (n *Notification) GetID() string { return n.ID }

// SetID implements store.Entity.
func (n *Notification) SetID(id string) { n.ID = id }
