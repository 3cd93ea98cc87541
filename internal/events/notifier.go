// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"

	"github.com/tomtom215/drivelog/internal/logging"
	"github.com/tomtom215/drivelog/internal/metrics"
	"github.com/tomtom215/drivelog/internal/models"
)

// NotificationStore persists notifications.
type NotificationStore interface {
	Get(ctx context.Context, id string) (*models.Notification, error)
	Create(ctx context.Context, rec *models.Notification) (*models.Notification, error)
}

// notificationNamespace scopes the deterministic ids of trip review notifications.
var notificationNamespace = uuid.MustParse("6f3b8f0e-3c1d-4f4e-9a57-2d8c1b7e5a90")

// notificationID identifies the review notification for one entry and
// recipient, so a redelivered event never notifies the same user twice.
func notificationID(entryID, recipient string) string {
	return uuid.NewSHA1(notificationNamespace, []byte(entryID+"|"+strings.ToLower(recipient))).String()
}

// UserLister lists users, used to find admins for unattributed trips.
type UserLister interface {
	List(ctx context.Context) ([]*models.User, error)
}

// Notifier turns TripSynced events into trip review notifications. The
// driver is asked to classify every new trip; trips without a resolved
// driver go to every admin instead.
type Notifier struct {
	notifications NotificationStore
	users         UserLister
	adminRole     string
}

// NewNotifier creates a notifier.
func NewNotifier(notifications NotificationStore, users UserLister, adminRole string) *Notifier {
	if adminRole == "" {
		adminRole = models.RoleAdmin
	}
	return &Notifier{notifications: notifications, users: users, adminRole: adminRole}
}

// Register subscribes the notifier to trip events on bus.
func (n *Notifier) Register(bus *Bus) {
	bus.AddConsumer("trip-review-notifier", TopicTripSynced, n.Handle)
}

// Handle processes one TripSynced message. Decode errors are dropped;
// store errors are returned so the router retries. Recipients already
// notified about the entry are skipped on redelivery.
func (n *Notifier) Handle(msg *message.Message) error {
	ctx := msg.Context()
	if id := middleware.MessageCorrelationID(msg); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}

	evt, err := UnmarshalTripSynced(msg.Payload)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable trip event")
		return nil
	}

	recipients, err := n.recipients(ctx, evt)
	if err != nil {
		return err
	}

	for _, email := range recipients {
		note := buildNotification(evt, email)
		if existing, err := n.notifications.Get(ctx, note.ID); err == nil && existing != nil {
			continue
		}
		if _, err := n.notifications.Create(ctx, note); err != nil {
			return fmt.Errorf("create notification for %s: %w", email, err)
		}
		metrics.NotificationsCreated.Inc()
	}

	logging.Ctx(ctx).Debug().
		Str("entry_id", evt.EntryID).
		Int("recipients", len(recipients)).
		Msg("Trip review notifications created")
	return nil
}

func (n *Notifier) recipients(ctx context.Context, evt *TripSynced) ([]string, error) {
	if evt.DriverEmail != "" {
		return []string{evt.DriverEmail}, nil
	}

	users, err := n.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var admins []string
	for _, u := range users {
		if u.Role == n.adminRole && u.Email != "" {
			admins = append(admins, u.Email)
		}
	}
	return admins, nil
}

func buildNotification(evt *TripSynced, recipient string) *models.Notification {
	day := evt.StartTime.Format("2006-01-02 15:04")

	title := "New trip to classify"
	body := fmt.Sprintf("A %.1f km trip with %s on %s was synced from GPS and needs to be classified as business or private.",
		evt.DistanceKm, evt.RegistrationNumber, day)
	if evt.IsAnomaly {
		title = "Trip flagged for review"
		body = fmt.Sprintf("A %.1f km trip with %s on %s was flagged: %s.",
			evt.DistanceKm, evt.RegistrationNumber, day, evt.AnomalyReason)
	}

	return &models.Notification{
		ID:             notificationID(evt.EntryID, recipient),
		RecipientEmail: recipient,
		Type:           models.NotificationTypeTripReview,
		Title:          title,
		Message:        body,
		EntryID:        evt.EntryID,
		CreatedAt:      time.Now().UTC(),
	}
}
