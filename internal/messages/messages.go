// Package messages defines the Kafka topics, event types and payloads published by the service.
package messages

import (
	"time"

	"github.com/google/uuid"
)

// Source is the CloudEvents source of everything this service publishes.
const Source = "service-booking"

// Topics.
const (
	TopicBookingEvents      = "booking.events"
	TopicTherapistEvents    = "therapist.events"
	TopicNotificationEvents = "notification.events"
)

// Booking event types.
const (
	BookingCreated       = "booking.created"
	BookingUpdated       = "booking.updated"
	BookingDeleted       = "booking.deleted"
	BookingStatusChanged = "booking.status_changed"
)

// Therapist event types.
const (
	TherapistAvailabilityChanged = "therapist.availability_changed"
)

// Notification event types.
const (
	NotificationEmailOTP        = "notification.email_otp"
	NotificationPasswordReset   = "notification.password_reset"
	NotificationBookingReminder = "booking.reminder_due"
	NotificationBookingStatus   = "notification.booking_status"
)

// BookingEvent is published when a booking is created or edited.
type BookingEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	Status      string    `json:"status"`
	BookingDate string    `json:"booking_date"`
	BookingTime string    `json:"booking_time"`
	ServiceType string    `json:"service_type"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BookingDeletedEvent is published when a booking is removed.
type BookingDeletedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	Status      string    `json:"status"`
	DeletedBy   uuid.UUID `json:"deleted_by"`
	Forced      bool      `json:"forced"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// BookingStatusChangedEvent is published after every state machine transition.
type BookingStatusChangedEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AvailabilityChangedEvent is published when a therapist toggles availability.
type AvailabilityChangedEvent struct {
	TherapistID uuid.UUID `json:"therapist_id"`
	IsAvailable bool      `json:"is_available"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EmailOTPNotification asks for a verification code mail.
type EmailOTPNotification struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	Code             string `json:"code"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// PasswordResetNotification asks for a password reset mail.
type PasswordResetNotification struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	ResetURL         string `json:"reset_url"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// BookingReminderNotification asks for a reminder mail to the customer and therapist.
type BookingReminderNotification struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	BookingDate string    `json:"booking_date"`
	BookingTime string    `json:"booking_time"`
	Address     string    `json:"address"`
	ServiceType string    `json:"service_type"`
}

// BookingStatusNotification asks for a status update mail to the customer.
type BookingStatusNotification struct {
	BookingID   uuid.UUID `json:"booking_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TherapistID uuid.UUID `json:"therapist_id"`
	Status      string    `json:"status"`
	BookingDate string    `json:"booking_date"`
	BookingTime string    `json:"booking_time"`
}
