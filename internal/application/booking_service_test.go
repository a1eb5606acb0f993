package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/zenbook/service-booking/internal/domain/booking"
	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/messages"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

func createRequest(therapistID uuid.UUID) CreateBookingRequest {
	return CreateBookingRequest{
		TherapistID: therapistID.String(),
		BookingDate: "2026-03-12",
		BookingTime: "10:00",
		Address:     "12 Jalan Ampang, Kuala Lumpur",
		ServiceType: "Swedish massage",
		Notes:       "Second floor",
	}
}

func appErr(t *testing.T, err error) *apperror.Error {
	t.Helper()
	var e *apperror.Error
	require.ErrorAs(t, err, &e)
	return e
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	e := appErr(t, err)
	require.Equal(t, apperror.KindValidation, e.Kind)
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Field
	}
	return out
}

func TestCreateBooking_TodayFollowsBusinessTimezone(t *testing.T) {
	myt := time.FixedZone("MYT", 8*60*60)
	// 17:00 UTC on the 10th is 01:00 on the 11th in MYT
	evening := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		loc        *time.Location
		date       string
		wantErrors bool
	}{
		{name: "utc accepts the utc date", loc: nil, date: "2026-03-10"},
		{name: "local yesterday rejected", loc: myt, date: "2026-03-10", wantErrors: true},
		{name: "local today accepted", loc: myt, date: "2026-03-11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.bookingSvc.now = func() time.Time { return evening }
			f.bookingSvc.WithLocation(tt.loc)
			customer := f.addUser(identity.RoleCustomer)
			therapist := f.addTherapist(true)

			req := createRequest(therapist.ID)
			req.BookingDate = tt.date
			dto, err := f.bookingSvc.CreateBooking(context.Background(), customer, req)
			if tt.wantErrors {
				assert.Equal(t, []string{"booking_date"}, fieldsOf(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.date, dto.BookingDate)
			assert.Equal(t, evening, dto.CreatedAt)
		})
	}
}

func TestCreateBooking(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)

	dto, err := f.bookingSvc.CreateBooking(context.Background(), customer, createRequest(therapist.ID))
	require.NoError(t, err)

	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, customer.ID, dto.CustomerID)
	assert.Equal(t, therapist.ID, dto.TherapistID)
	assert.Equal(t, "2026-03-12", dto.BookingDate)
	require.NotNil(t, dto.Customer)
	require.NotNil(t, dto.Therapist)
	assert.Equal(t, therapist.ID, dto.Therapist.ID)
	assert.Equal(t, 1, f.bookings.count())
	assert.Equal(t, []string{messages.BookingCreated}, f.publisher.types())
}

func TestCreateBooking_UnavailableTherapist(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	busy := f.addTherapist(false)
	noProfile := f.addUser(identity.RoleTherapist)
	notTherapist := f.addUser(identity.RoleCustomer)

	for name, id := range map[string]uuid.UUID{
		"unavailable":  busy.ID,
		"no profile":   noProfile.ID,
		"wrong role":   notTherapist.ID,
		"unknown user": uuid.New(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.bookingSvc.CreateBooking(context.Background(), customer, createRequest(id))
			assert.Equal(t, apperror.KindTherapistUnavailable, apperror.KindOf(err))
		})
	}
	assert.Equal(t, 0, f.bookings.count())
	assert.Empty(t, f.publisher.types())
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)

	lat := 3.1
	_, err := f.bookingSvc.CreateBooking(context.Background(), customer, CreateBookingRequest{
		TherapistID: "not-a-uuid",
		BookingDate: "2026-03-09",
		BookingTime: "9am",
		Latitude:    &lat,
	})
	assert.ElementsMatch(t,
		[]string{"therapist_id", "booking_date", "booking_time", "address", "service_type", "location"},
		fieldsOf(t, err))
	assert.Equal(t, 0, f.bookings.count())
}

func TestCreateBooking_OnlyCustomers(t *testing.T) {
	f := newFixture()
	therapist := f.addTherapist(true)
	other := f.addTherapist(true)

	_, err := f.bookingSvc.CreateBooking(context.Background(), therapist, createRequest(other.ID))
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = f.bookingSvc.CreateBooking(context.Background(), identity.Principal{}, createRequest(other.ID))
	assert.Equal(t, apperror.KindUnauthenticated, apperror.KindOf(err))
}

func TestUpdateBooking(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	bk := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)

	addr := "99 Jalan Tun Razak"
	lat, lng := 3.15, 101.71
	dto, err := f.bookingSvc.UpdateBooking(context.Background(), customer, bk.ID(), UpdateBookingRequest{
		Address: &addr, Latitude: &lat, Longitude: &lng,
	})
	require.NoError(t, err)
	assert.Equal(t, addr, dto.Address)
	require.NotNil(t, dto.Latitude)
	assert.Equal(t, 3.15, *dto.Latitude)
	assert.Equal(t, int64(2), dto.Version)
	assert.Contains(t, f.publisher.types(), messages.BookingUpdated)
}

func TestUpdateBooking_Rules(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	stranger := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	pending := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)
	approved := f.seedBooking(customer, therapist, bookingDomain.StatusApproved, testNow)
	notes := "late"

	_, err := f.bookingSvc.UpdateBooking(context.Background(), customer, approved.ID(), UpdateBookingRequest{Notes: &notes})
	e := appErr(t, err)
	assert.Equal(t, apperror.KindForbidden, e.Kind)
	assert.Equal(t, "Only pending bookings can be updated.", e.Message)

	_, err = f.bookingSvc.UpdateBooking(context.Background(), stranger, pending.ID(), UpdateBookingRequest{Notes: &notes})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = f.bookingSvc.UpdateBooking(context.Background(), therapist, pending.ID(), UpdateBookingRequest{Notes: &notes})
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	lat := 3.1
	_, err = f.bookingSvc.UpdateBooking(context.Background(), customer, pending.ID(), UpdateBookingRequest{Latitude: &lat})
	assert.Equal(t, []string{"location"}, fieldsOf(t, err))
}

func TestDeleteBooking(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	pending := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)
	completed := f.seedBooking(customer, therapist, bookingDomain.StatusCompleted, testNow)

	err := f.bookingSvc.DeleteBooking(context.Background(), customer, completed.ID())
	e := appErr(t, err)
	assert.Equal(t, apperror.KindForbidden, e.Kind)
	assert.Equal(t, "Only pending bookings can be deleted.", e.Message)

	require.NoError(t, f.bookingSvc.DeleteBooking(context.Background(), customer, pending.ID()))
	assert.Equal(t, 1, f.bookings.count())
	assert.Contains(t, f.publisher.types(), messages.BookingDeleted)
}

func TestAccept_Twice(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	bk := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)

	dto, err := f.bookingSvc.Accept(context.Background(), therapist, bk.ID())
	require.NoError(t, err)
	assert.Equal(t, "approved", dto.Status)
	assert.NotNil(t, dto.ApprovedAt)

	_, err = f.bookingSvc.Accept(context.Background(), therapist, bk.ID())
	e := appErr(t, err)
	assert.Equal(t, apperror.KindInvalidTransition, e.Kind)
	assert.Equal(t, "approved", e.CurrentStatus)

	evt, ok := f.publisher.last(messages.BookingStatusChanged)
	require.True(t, ok)
	var payload messages.BookingStatusChangedEvent
	require.NoError(t, evt.ParseData(&payload))
	assert.Equal(t, "pending", payload.From)
	assert.Equal(t, "approved", payload.To)
	assert.Contains(t, f.publisher.types(), messages.NotificationBookingStatus)
}

func TestTransition_OnlyAssignedTherapist(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	other := f.addTherapist(true)
	bk := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)

	_, err := f.bookingSvc.Accept(context.Background(), other, bk.ID())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = f.bookingSvc.Decline(context.Background(), customer, bk.ID())
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	stored, err := f.bookings.FindByID(context.Background(), bk.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusPending, stored.Status())
}

func TestTransition_DeclineIsPendingOnly(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	bk := f.seedBooking(customer, therapist, bookingDomain.StatusApproved, testNow)

	_, err := f.bookingSvc.Decline(context.Background(), therapist, bk.ID())
	e := appErr(t, err)
	assert.Equal(t, apperror.KindInvalidTransition, e.Kind)
	assert.Equal(t, "approved", e.CurrentStatus)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	bk := f.seedBooking(customer, therapist, bookingDomain.StatusApproved, testNow)

	_, err := f.bookingSvc.UpdateStatus(context.Background(), therapist, bk.ID(), "declined")
	assert.Equal(t, []string{"status"}, fieldsOf(t, err))

	dto, err := f.bookingSvc.UpdateStatus(context.Background(), therapist, bk.ID(), "in_progress")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", dto.Status)

	dto, err = f.bookingSvc.UpdateStatus(context.Background(), therapist, bk.ID(), "completed")
	require.NoError(t, err)
	assert.Equal(t, "completed", dto.Status)

	_, err = f.bookingSvc.UpdateStatus(context.Background(), therapist, bk.ID(), "in_progress")
	assert.Equal(t, apperror.KindInvalidTransition, apperror.KindOf(err))
}

func TestTransitionStatus_UnknownStatus(t *testing.T) {
	f := newFixture()
	therapist := f.addTherapist(true)

	_, err := f.bookingSvc.TransitionStatus(context.Background(), therapist, uuid.New(), "cancelled")
	assert.Equal(t, []string{"status"}, fieldsOf(t, err))
}

func TestConcurrentAcceptAndDecline(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture()
		customer := f.addUser(identity.RoleCustomer)
		therapist := f.addTherapist(true)
		bk := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = f.bookingSvc.Accept(context.Background(), therapist, bk.ID())
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = f.bookingSvc.Decline(context.Background(), therapist, bk.ID())
		}()
		close(start)
		wg.Wait()

		var wins int
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			kind := apperror.KindOf(err)
			assert.True(t, kind == apperror.KindConflict || kind == apperror.KindInvalidTransition, "unexpected %v", err)
		}
		require.Equal(t, 1, wins)

		stored, err := f.bookings.FindByID(context.Background(), bk.ID())
		require.NoError(t, err)
		assert.True(t, stored.Status() == bookingDomain.StatusApproved || stored.Status() == bookingDomain.StatusDeclined)
	}
}

func TestListBookings_ScopedFilteredNewestFirst(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	other := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)

	older := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow.Add(-2*time.Hour))
	newer := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow.Add(-time.Hour))
	f.seedBooking(customer, therapist, bookingDomain.StatusCompleted, testNow)
	f.seedBooking(other, therapist, bookingDomain.StatusPending, testNow)

	res, err := f.bookingSvc.ListBookings(context.Background(), customer, "pending", 1, 10)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, newer.ID(), res.Items[0].ID)
	assert.Equal(t, older.ID(), res.Items[1].ID)

	res, err = f.bookingSvc.ListBookings(context.Background(), customer, "bogus", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)

	res, err = f.bookingSvc.ListBookings(context.Background(), therapist, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Total)

	staff := f.addUser(identity.RoleStaff)
	res, err = f.bookingSvc.ListBookings(context.Background(), staff, "pending", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.TotalPages)
}

func TestGetBooking_Visibility(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	other := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	bk := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)

	_, err := f.bookingSvc.GetBooking(context.Background(), customer, bk.ID())
	assert.NoError(t, err)
	_, err = f.bookingSvc.GetBooking(context.Background(), therapist, bk.ID())
	assert.NoError(t, err)
	_, err = f.bookingSvc.GetBooking(context.Background(), other, bk.ID())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestForceDelete(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	staff := f.addUser(identity.RoleStaff)

	for _, st := range bookingDomain.AllStatuses() {
		bk := f.seedBooking(customer, therapist, st, testNow)
		require.NoError(t, f.bookingSvc.ForceDelete(context.Background(), staff, bk.ID()), st)
	}
	assert.Equal(t, 0, f.bookings.count())

	bk := f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)
	err := f.bookingSvc.ForceDelete(context.Background(), customer, bk.ID())
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	evt, ok := f.publisher.last(messages.BookingDeleted)
	require.True(t, ok)
	var payload messages.BookingDeletedEvent
	require.NoError(t, evt.ParseData(&payload))
	assert.True(t, payload.Forced)
	assert.Equal(t, staff.ID, payload.DeletedBy)
}

func TestStats_ZeroFilled(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)
	f.seedBooking(customer, therapist, bookingDomain.StatusCompleted, testNow)

	stats, err := f.bookingSvc.Stats(context.Background(), customer)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalBookings)
	assert.Len(t, stats.ByStatus, 5)
	assert.Equal(t, int64(0), stats.ByStatus["declined"])
	assert.Equal(t, int64(1), stats.ByStatus["completed"])
	assert.Len(t, stats.Recent, 2)
}

func TestTherapistCustomers(t *testing.T) {
	f := newFixture()
	c1 := f.addUser(identity.RoleCustomer)
	c2 := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	f.seedBooking(c1, therapist, bookingDomain.StatusPending, testNow)
	f.seedBooking(c1, therapist, bookingDomain.StatusCompleted, testNow)
	f.seedBooking(c2, therapist, bookingDomain.StatusPending, testNow)

	rows, err := f.bookingSvc.TherapistCustomers(context.Background(), therapist)
	require.NoError(t, err)
	counts := map[uuid.UUID]int64{}
	for _, r := range rows {
		counts[r.Customer.ID] = r.BookingsCount
	}
	assert.Equal(t, map[uuid.UUID]int64{c1.ID: 2, c2.ID: 1}, counts)

	_, err = f.bookingSvc.TherapistCustomers(context.Background(), c1)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
}

func TestSendReminders(t *testing.T) {
	f := newFixture()
	customer := f.addUser(identity.RoleCustomer)
	therapist := f.addTherapist(true)
	f.seedBooking(customer, therapist, bookingDomain.StatusApproved, testNow)
	f.seedBooking(customer, therapist, bookingDomain.StatusPending, testNow)

	n, err := f.bookingSvc.SendReminders(context.Background(), time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{messages.NotificationBookingReminder}, f.publisher.types())

	n, err = f.bookingSvc.SendReminders(context.Background(), time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
