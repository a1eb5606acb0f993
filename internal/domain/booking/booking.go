package booking

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// Field limits for booking details.
const (
	MaxAddressLength     = 500
	MaxServiceTypeLength = 255
	MaxNotesLength       = 1000
)

// Details holds the customer-editable part of a booking.
type Details struct {
	BookingDate time.Time
	BookingTime string
	Address     string
	Location    *GeoPoint
	ServiceType string
	Notes       string
}

// Patch holds a partial update to Details. Nil fields are left unchanged.
type Patch struct {
	BookingDate *time.Time
	BookingTime *string
	Address     *string
	Location    *GeoPoint
	ServiceType *string
	Notes       *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.BookingDate == nil && p.BookingTime == nil && p.Address == nil &&
		p.Location == nil && p.ServiceType == nil && p.Notes == nil
}

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id          uuid.UUID
	customerID  uuid.UUID
	therapistID uuid.UUID
	details     Details
	status      BookingStatus

	approvedAt  *time.Time
	startedAt   *time.Time
	completedAt *time.Time
	declinedAt  *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// calendarDay returns t's date in t's own location as a UTC midnight.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseBookingTime accepts HH:MM or HH:MM:SS and returns the canonical HH:MM form.
func ParseBookingTime(s string) (string, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04"), true
		}
	}
	return "", false
}

// Validate checks details against the field rules. checkDate enables the not-in-the-past rule.
// Validate checks every field. "Today" is now's calendar date in now's own
// location, so callers pass now in the business time zone.
func (d Details) Validate(now time.Time, checkDate bool) apperror.FieldErrors {
	var errs apperror.FieldErrors

	if d.BookingDate.IsZero() {
		errs.Add("booking_date", "is required")
	} else if checkDate && calendarDay(d.BookingDate).Before(calendarDay(now)) {
		errs.Add("booking_date", "must be today or a future date")
	}
	if d.BookingTime == "" {
		errs.Add("booking_time", "is required")
	} else if _, ok := ParseBookingTime(d.BookingTime); !ok {
		errs.Add("booking_time", "must be in HH:MM format")
	}
	if d.Address == "" {
		errs.Add("address", "is required")
	} else if utf8.RuneCountInString(d.Address) > MaxAddressLength {
		errs.Add("address", "may not be greater than 500 characters")
	}
	if d.ServiceType == "" {
		errs.Add("service_type", "is required")
	} else if utf8.RuneCountInString(d.ServiceType) > MaxServiceTypeLength {
		errs.Add("service_type", "may not be greater than 255 characters")
	}
	if utf8.RuneCountInString(d.Notes) > MaxNotesLength {
		errs.Add("notes", "may not be greater than 1000 characters")
	}
	if d.Location != nil {
		if _, err := NewGeoPoint(d.Location.Latitude, d.Location.Longitude); err != nil {
			errs.Add("location", err.Error())
		}
	}
	return errs
}

// NewBooking creates a new Booking aggregate with status=pending.
func NewBooking(customerID, therapistID uuid.UUID, details Details, now time.Time) (*Booking, error) {
	var errs apperror.FieldErrors
	if customerID == uuid.Nil {
		errs.Add("customer_id", "is required")
	}
	if therapistID == uuid.Nil {
		errs.Add("therapist_id", "is required")
	}
	errs = append(errs, details.Validate(now, true)...)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	details.BookingDate = StartOfDay(details.BookingDate)
	details.BookingTime, _ = ParseBookingTime(details.BookingTime)

	now = now.UTC()
	return &Booking{
		id:          uuid.New(),
		customerID:  customerID,
		therapistID: therapistID,
		details:     details,
		status:      StatusPending,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	customerID uuid.UUID,
	therapistID uuid.UUID,
	details Details,
	status BookingStatus,
	approvedAt *time.Time,
	startedAt *time.Time,
	completedAt *time.Time,
	declinedAt *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Booking {
	return &Booking{
		id:          id,
		customerID:  customerID,
		therapistID: therapistID,
		details:     details,
		status:      status,
		approvedAt:  approvedAt,
		startedAt:   startedAt,
		completedAt: completedAt,
		declinedAt:  declinedAt,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// CustomerID returns the booking customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// TherapistID returns the assigned therapist's user ID.
func (b *Booking) TherapistID() uuid.UUID { return b.therapistID }

// Details returns a copy of the editable booking details.
func (b *Booking) Details() Details { return b.details }

func (b *Booking) BookingDate() time.Time { return b.details.BookingDate }
func (b *Booking) BookingTime() string    { return b.details.BookingTime }
func (b *Booking) Address() string        { return b.details.Address }
func (b *Booking) Location() *GeoPoint    { return b.details.Location }
func (b *Booking) ServiceType() string    { return b.details.ServiceType }
func (b *Booking) Notes() string          { return b.details.Notes }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

func (b *Booking) ApprovedAt() *time.Time  { return b.approvedAt }
func (b *Booking) StartedAt() *time.Time   { return b.startedAt }
func (b *Booking) CompletedAt() *time.Time { return b.completedAt }
func (b *Booking) DeclinedAt() *time.Time  { return b.declinedAt }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// IsCustomer reports whether userID booked this appointment.
func (b *Booking) IsCustomer(userID uuid.UUID) bool { return b.customerID == userID }

// IsAssignedTo reports whether userID is the assigned therapist.
func (b *Booking) IsAssignedTo(userID uuid.UUID) bool { return b.therapistID == userID }

// IsPending reports whether the booking can still be edited or withdrawn by its customer.
func (b *Booking) IsPending() bool { return b.status == StatusPending }

// ApplyPatch updates the editable details. Only pending bookings accept a patch.
func (b *Booking) ApplyPatch(p Patch, now time.Time) error {
	if !b.IsPending() {
		return apperror.NewForbiddenError("Only pending bookings can be updated.")
	}

	next := b.details
	if p.BookingDate != nil {
		next.BookingDate = *p.BookingDate
	}
	if p.BookingTime != nil {
		next.BookingTime = *p.BookingTime
	}
	if p.Address != nil {
		next.Address = *p.Address
	}
	if p.Location != nil {
		loc := *p.Location
		next.Location = &loc
	}
	if p.ServiceType != nil {
		next.ServiceType = *p.ServiceType
	}
	if p.Notes != nil {
		next.Notes = *p.Notes
	}

	if err := next.Validate(now, p.BookingDate != nil).Err(); err != nil {
		return err
	}

	next.BookingDate = StartOfDay(next.BookingDate)
	next.BookingTime, _ = ParseBookingTime(next.BookingTime)
	b.details = next
	b.touch(now)
	return nil
}

// TransitionTo moves the booking along the state machine and stamps the matching timestamp.
func (b *Booking) TransitionTo(target BookingStatus, now time.Time) error {
	if err := CheckTransition(b.status, target); err != nil {
		return err
	}

	at := now.UTC()
	switch target {
	case StatusApproved:
		b.approvedAt = &at
	case StatusInProgress:
		b.startedAt = &at
	case StatusCompleted:
		b.completedAt = &at
	case StatusDeclined:
		b.declinedAt = &at
	}
	b.status = target
	b.touch(now)
	return nil
}

// touch bumps the version for optimistic locking.
func (b *Booking) touch(now time.Time) {
	b.version++
	b.updatedAt = now.UTC()
}
