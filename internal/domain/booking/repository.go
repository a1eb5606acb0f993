package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter scopes a booking query. Nil fields do not filter.
type ListFilter struct {
	CustomerID  *uuid.UUID
	TherapistID *uuid.UUID
	Status      *BookingStatus
}

// CustomerBookingCount is one row of a therapist's customer list.
type CustomerBookingCount struct {
	CustomerID    uuid.UUID
	BookingsCount int64
	LastBookingAt time.Time
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// List retrieves bookings matching the filter, newest first, with pagination.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// FindScheduledOn retrieves bookings with the given status scheduled for date.
	FindScheduledOn(ctx context.Context, date time.Time, status BookingStatus) ([]*Booking, error)

	// CountByStatus returns booking counts grouped by status.
	CountByStatus(ctx context.Context, filter ListFilter) (map[string]int64, error)

	// CustomersOf returns the distinct customers of a therapist with their booking counts.
	CustomersOf(ctx context.Context, therapistID uuid.UUID) ([]CustomerBookingCount, error)

	// Save persists a new booking.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes only if the stored row still has the previous version
	// and the expected status. A lost race is reported as a Conflict error.
	Update(ctx context.Context, booking *Booking, expected BookingStatus) error

	// Delete removes a booking. When expected is set the row must still be in that status.
	Delete(ctx context.Context, id uuid.UUID, expected *BookingStatus) error
}
