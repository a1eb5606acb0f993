package booking

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenbook/service-booking/internal/platform/apperror"
)

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func validDetails() Details {
	return Details{
		BookingDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		BookingTime: "10:00",
		Address:     "12 Jalan Ampang, Kuala Lumpur",
		ServiceType: "Swedish massage",
		Notes:       "Second floor",
	}
}

func newPendingBooking(t *testing.T) *Booking {
	t.Helper()
	b, err := NewBooking(uuid.New(), uuid.New(), validDetails(), fixedNow)
	require.NoError(t, err)
	return b
}

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, apperror.KindValidation, appErr.Kind)
	names := make([]string, len(appErr.Fields))
	for i, f := range appErr.Fields {
		names[i] = f.Field
	}
	return names
}

func TestNewBooking_StartsPending(t *testing.T) {
	customerID, therapistID := uuid.New(), uuid.New()
	d := validDetails()
	d.BookingTime = "10:00:00"

	b, err := NewBooking(customerID, therapistID, d, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, b.Status())
	assert.Equal(t, customerID, b.CustomerID())
	assert.Equal(t, therapistID, b.TherapistID())
	assert.Equal(t, "10:00", b.BookingTime())
	assert.Equal(t, int64(1), b.Version())
	assert.True(t, b.IsCustomer(customerID))
	assert.True(t, b.IsAssignedTo(therapistID))
}

func TestNewBooking_TodayIsAllowed(t *testing.T) {
	d := validDetails()
	d.BookingDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := NewBooking(uuid.New(), uuid.New(), d, fixedNow)
	assert.NoError(t, err)
}

func TestNewBooking_CollectsAllFieldErrors(t *testing.T) {
	d := Details{
		BookingDate: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		BookingTime: "25:99",
		Address:     strings.Repeat("a", MaxAddressLength+1),
		ServiceType: "",
		Notes:       strings.Repeat("n", MaxNotesLength+1),
		Location:    &GeoPoint{Latitude: 91, Longitude: 0},
	}

	_, err := NewBooking(uuid.Nil, uuid.New(), d, fixedNow)
	require.Error(t, err)
	assert.ElementsMatch(t,
		[]string{"customer_id", "booking_date", "booking_time", "address", "service_type", "notes", "location"},
		fieldNames(t, err))
}

func TestNewGeoPoint_Ranges(t *testing.T) {
	_, err := NewGeoPoint(-90, 180)
	assert.NoError(t, err)
	_, err = NewGeoPoint(-90.1, 0)
	assert.Error(t, err)
	_, err = NewGeoPoint(0, -180.5)
	assert.Error(t, err)
}

func TestApplyPatch(t *testing.T) {
	b := newPendingBooking(t)
	customerID, therapistID := b.CustomerID(), b.TherapistID()

	addr := "99 Jalan Tun Razak"
	loc := GeoPoint{Latitude: 3.15, Longitude: 101.71}
	require.NoError(t, b.ApplyPatch(Patch{Address: &addr, Location: &loc}, fixedNow))

	assert.Equal(t, addr, b.Address())
	require.NotNil(t, b.Location())
	assert.Equal(t, 3.15, b.Location().Latitude)
	assert.Equal(t, "Swedish massage", b.ServiceType())
	assert.Equal(t, customerID, b.CustomerID())
	assert.Equal(t, therapistID, b.TherapistID())
	assert.Equal(t, int64(2), b.Version())
}

func TestApplyPatch_RejectsPastDateOnlyWhenChanged(t *testing.T) {
	b := newPendingBooking(t)

	later := fixedNow.Add(10 * 24 * time.Hour)
	notes := "bring oil"
	require.NoError(t, b.ApplyPatch(Patch{Notes: &notes}, later), "unchanged date is not re-validated")

	past := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	err := b.ApplyPatch(Patch{BookingDate: &past}, fixedNow)
	assert.Equal(t, []string{"booking_date"}, fieldNames(t, err))
}

func TestValidate_TodayIsNowsCalendarDay(t *testing.T) {
	d := validDetails()
	d.BookingDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	utcNow := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	assert.Empty(t, d.Validate(utcNow, true))

	// the same instant is already the 11th at UTC+8
	localNow := utcNow.In(time.FixedZone("MYT", 8*60*60))
	errs := d.Validate(localNow, true)
	require.Len(t, errs, 1)
	assert.Equal(t, "booking_date", errs[0].Field)

	b, err := NewBooking(uuid.New(), uuid.New(), validDetails(), localNow)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, b.CreatedAt().Location())
	assert.Equal(t, "2026-03-12", b.BookingDate().Format("2006-01-02"))
}

func TestApplyPatch_OnlyWhilePending(t *testing.T) {
	b := newPendingBooking(t)
	require.NoError(t, b.TransitionTo(StatusApproved, fixedNow))

	notes := "late"
	err := b.ApplyPatch(Patch{Notes: &notes}, fixedNow)
	assert.True(t, apperror.Is(err, apperror.KindForbidden))
	assert.Equal(t, "Second floor", b.Notes())
}

func TestTransitionTo_StampsTimestamps(t *testing.T) {
	b := newPendingBooking(t)

	require.NoError(t, b.TransitionTo(StatusApproved, fixedNow))
	require.NotNil(t, b.ApprovedAt())
	require.NoError(t, b.TransitionTo(StatusInProgress, fixedNow.Add(time.Hour)))
	require.NotNil(t, b.StartedAt())
	require.NoError(t, b.TransitionTo(StatusCompleted, fixedNow.Add(2*time.Hour)))
	require.NotNil(t, b.CompletedAt())

	assert.Equal(t, StatusCompleted, b.Status())
	assert.Equal(t, int64(4), b.Version())
}

func TestTransitionTo_RejectsInvalidStatusValue(t *testing.T) {
	b := newPendingBooking(t)

	err := b.TransitionTo(BookingStatus("cancelled"), fixedNow)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, StatusPending, b.Status())
}

func TestTransitionTo_AcceptTwiceCarriesCurrentStatus(t *testing.T) {
	b := newPendingBooking(t)
	require.NoError(t, b.TransitionTo(StatusApproved, fixedNow))

	err := b.TransitionTo(StatusApproved, fixedNow)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindInvalidTransition, appErr.Kind)
	assert.Equal(t, "approved", appErr.CurrentStatus)
	assert.Equal(t, "Only pending bookings can be accepted. Current status: approved", appErr.Message)
}
