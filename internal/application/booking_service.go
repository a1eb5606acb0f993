package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/zenbook/service-booking/internal/domain/booking"
	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/domain/policy"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/messages"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/platform/metrics"
)

// dateLayout is the wire format of booking dates.
const dateLayout = "2006-01-02"

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	TherapistID string   `json:"therapist_id"`
	BookingDate string   `json:"booking_date"`
	BookingTime string   `json:"booking_time"`
	Address     string   `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	ServiceType string   `json:"service_type"`
	Notes       string   `json:"notes"`
}

// UpdateBookingRequest holds a partial booking update. Omitted fields are unchanged.
type UpdateBookingRequest struct {
	BookingDate *string  `json:"booking_date"`
	BookingTime *string  `json:"booking_time"`
	Address     *string  `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	ServiceType *string  `json:"service_type"`
	Notes       *string  `json:"notes"`
}

// BookingStatsDTO holds booking counts for a dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
	Recent        []BookingDTO     `json:"recent_bookings"`
}

// TherapistCustomerDTO is one customer on a therapist's customer list.
type TherapistCustomerDTO struct {
	Customer      *UserSummary `json:"customer"`
	BookingsCount int64        `json:"bookings_count"`
	LastBookingAt time.Time    `json:"last_booking_at"`
}

// recentBookings is how many bookings a dashboard shows.
const recentBookings = 5

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo    bookingDomain.BookingRepository
	users   userDomain.Repository
	gate    *AvailabilityGate
	events  eventSink
	metrics *metrics.Metrics
	now     Clock
	loc     *time.Location
	logger  *zap.Logger
}

// NewBookingService creates a new BookingService. m may be nil.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	users userDomain.Repository,
	gate *AvailabilityGate,
	publisher EventPublisher,
	m *metrics.Metrics,
	now Clock,
	logger *zap.Logger,
) *BookingService {
	if now == nil {
		now = SystemClock
	}
	return &BookingService{
		repo:    repo,
		users:   users,
		gate:    gate,
		events:  eventSink{publisher: publisher, logger: logger},
		metrics: m,
		now:     now,
		loc:     time.UTC,
		logger:  logger,
	}
}

// WithLocation sets the time zone whose calendar decides which booking dates
// are in the past. The default is UTC.
func (s *BookingService) WithLocation(loc *time.Location) *BookingService {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// localNow is the service clock in the business time zone.
func (s *BookingService) localNow() time.Time {
	return s.now().In(s.loc)
}

// CreateBooking creates a pending booking for the calling customer.
func (s *BookingService) CreateBooking(ctx context.Context, p identity.Principal, req CreateBookingRequest) (result *BookingDTO, err error) {
	defer func() { s.metrics.RecordBookingOperation("create", outcome(err)) }()

	if err := policy.Authorize(p, policy.ActionCreateBooking, policy.Target{}); err != nil {
		return nil, err
	}

	therapistID, details, err := validateCreate(req, s.localNow())
	if err != nil {
		return nil, err
	}

	if err := s.gate.Check(ctx, therapistID); err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(p.ID, therapistID, details, s.localNow())
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, fmt.Errorf("failed to save booking: %w", err)
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("customer_id", p.ID.String()),
		zap.String("therapist_id", therapistID.String()),
	)
	s.publishBookingEvent(ctx, messages.BookingCreated, bk)

	return s.present(ctx, bk)
}

// UpdateBooking applies a partial update to one of the caller's pending bookings.
func (s *BookingService) UpdateBooking(ctx context.Context, p identity.Principal, id uuid.UUID, req UpdateBookingRequest) (result *BookingDTO, err error) {
	defer func() { s.metrics.RecordBookingOperation("update", outcome(err)) }()

	bk, err := s.loadPendingOwned(ctx, p, id, policy.ActionUpdatePendingBooking, "Only pending bookings can be updated.")
	if err != nil {
		return nil, err
	}

	patch, err := parsePatch(req)
	if err != nil {
		return nil, err
	}

	if err := bk.ApplyPatch(patch, s.localNow()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, bk, bookingDomain.StatusPending); err != nil {
		return nil, err
	}

	s.logger.Info("booking updated", zap.String("booking_id", bk.ID().String()))
	s.publishBookingEvent(ctx, messages.BookingUpdated, bk)

	return s.present(ctx, bk)
}

// DeleteBooking removes one of the caller's pending bookings.
func (s *BookingService) DeleteBooking(ctx context.Context, p identity.Principal, id uuid.UUID) (err error) {
	defer func() { s.metrics.RecordBookingOperation("delete", outcome(err)) }()

	bk, err := s.loadPendingOwned(ctx, p, id, policy.ActionDeletePendingBooking, "Only pending bookings can be deleted.")
	if err != nil {
		return err
	}

	pending := bookingDomain.StatusPending
	if err := s.repo.Delete(ctx, bk.ID(), &pending); err != nil {
		return err
	}

	s.logger.Info("booking deleted", zap.String("booking_id", bk.ID().String()))
	s.publishDeleted(ctx, bk, p.ID, false)
	return nil
}

// Accept approves a pending booking assigned to the calling therapist.
func (s *BookingService) Accept(ctx context.Context, p identity.Principal, id uuid.UUID) (*BookingDTO, error) {
	return s.TransitionStatus(ctx, p, id, string(bookingDomain.StatusApproved))
}

// Decline declines a pending booking assigned to the calling therapist.
func (s *BookingService) Decline(ctx context.Context, p identity.Principal, id uuid.UUID) (*BookingDTO, error) {
	return s.TransitionStatus(ctx, p, id, string(bookingDomain.StatusDeclined))
}

// UpdateStatus moves a booking to in_progress or completed.
func (s *BookingService) UpdateStatus(ctx context.Context, p identity.Principal, id uuid.UUID, status string) (*BookingDTO, error) {
	target := bookingDomain.BookingStatus(strings.TrimSpace(status))
	if target != bookingDomain.StatusInProgress && target != bookingDomain.StatusCompleted {
		var errs apperror.FieldErrors
		errs.Add("status", "must be one of: in_progress, completed")
		return nil, errs.Err()
	}
	return s.TransitionStatus(ctx, p, id, string(target))
}

// TransitionStatus moves a booking assigned to the calling therapist to newStatus.
// The write is conditional on the status observed when the booking was loaded.
func (s *BookingService) TransitionStatus(ctx context.Context, p identity.Principal, id uuid.UUID, newStatus string) (result *BookingDTO, err error) {
	defer func() { s.metrics.RecordBookingOperation("transition", outcome(err)) }()

	target, err := bookingDomain.ParseBookingStatus(strings.TrimSpace(newStatus))
	if err != nil {
		var errs apperror.FieldErrors
		errs.Add("status", "The selected status is invalid.")
		return nil, errs.Err()
	}

	action := transitionAction(target)
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	if !policy.RoleAllows(p.Role, action) {
		return nil, apperror.NewForbiddenError("You are not allowed to perform this action.")
	}

	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bk.IsAssignedTo(p.ID) {
		return nil, apperror.NewNotFoundError("Booking", id.String())
	}
	if err := policy.Authorize(p, action, policy.Target{Booking: bk}); err != nil {
		return nil, err
	}

	from := bk.Status()
	if err := bk.TransitionTo(target, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, bk, from); err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(from.String(), target.String())
	s.logger.Info("booking status changed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("from", from.String()),
		zap.String("to", target.String()),
	)

	s.events.publish(ctx, messages.TopicBookingEvents, messages.BookingStatusChanged, bk.ID(), messages.BookingStatusChangedEvent{
		BookingID:   bk.ID(),
		CustomerID:  bk.CustomerID(),
		TherapistID: bk.TherapistID(),
		From:        from.String(),
		To:          target.String(),
		OccurredAt:  s.now(),
	})
	s.events.publish(ctx, messages.TopicNotificationEvents, messages.NotificationBookingStatus, bk.CustomerID(), messages.BookingStatusNotification{
		BookingID:   bk.ID(),
		CustomerID:  bk.CustomerID(),
		TherapistID: bk.TherapistID(),
		Status:      target.String(),
		BookingDate: bk.BookingDate().Format(dateLayout),
		BookingTime: bk.BookingTime(),
	})

	return s.present(ctx, bk)
}

// ListBookings returns the bookings visible to the caller, newest first.
// An unknown status filter is ignored.
func (s *BookingService) ListBookings(ctx context.Context, p identity.Principal, statusFilter string, page, limit int) (*apperror.PaginatedResult[BookingDTO], error) {
	filter, err := scopeFilter(p)
	if err != nil {
		return nil, err
	}
	filter.Status = bookingDomain.ParseStatusFilter(statusFilter)

	page, limit = normalizePage(page, limit)
	bookings, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	dtos, err := s.presentAll(ctx, bookings)
	if err != nil {
		return nil, err
	}
	result := apperror.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetBooking returns one booking if it is visible to the caller.
func (s *BookingService) GetBooking(ctx context.Context, p identity.Principal, id uuid.UUID) (*BookingDTO, error) {
	if _, err := scopeFilter(p); err != nil {
		return nil, err
	}

	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(p, bk) {
		return nil, apperror.NewNotFoundError("Booking", id.String())
	}
	return s.present(ctx, bk)
}

// ForceDelete removes a booking in any state. Administrators only.
func (s *BookingService) ForceDelete(ctx context.Context, p identity.Principal, id uuid.UUID) (err error) {
	defer func() { s.metrics.RecordBookingOperation("force_delete", outcome(err)) }()

	if err := policy.Authorize(p, policy.ActionForceDeleteBooking, policy.Target{}); err != nil {
		return err
	}

	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, nil); err != nil {
		return err
	}

	s.logger.Info("booking force deleted",
		zap.String("booking_id", id.String()),
		zap.String("deleted_by", p.ID.String()),
		zap.String("status", bk.Status().String()),
	)
	s.publishDeleted(ctx, bk, p.ID, true)
	return nil
}

// Stats returns booking counts scoped to the caller plus their most recent bookings.
func (s *BookingService) Stats(ctx context.Context, p identity.Principal) (*BookingStatsDTO, error) {
	filter, err := scopeFilter(p)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	byStatus := make(map[string]int64, len(bookingDomain.AllStatuses()))
	var total int64
	for _, st := range bookingDomain.AllStatuses() {
		byStatus[st.String()] = counts[st.String()]
		total += counts[st.String()]
	}

	recent, _, err := s.repo.List(ctx, filter, 1, recentBookings)
	if err != nil {
		return nil, err
	}
	dtos, err := s.presentAll(ctx, recent)
	if err != nil {
		return nil, err
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      byStatus,
		Recent:        dtos,
	}, nil
}

// TherapistCustomers lists the customers who have booked the calling therapist.
func (s *BookingService) TherapistCustomers(ctx context.Context, p identity.Principal) ([]TherapistCustomerDTO, error) {
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	if p.Role != identity.RoleTherapist {
		return nil, apperror.NewForbiddenError("You are not allowed to perform this action.")
	}

	rows, err := s.repo.CustomersOf(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.CustomerID
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]TherapistCustomerDTO, 0, len(rows))
	for _, r := range rows {
		u, ok := users[r.CustomerID]
		if !ok {
			continue
		}
		out = append(out, TherapistCustomerDTO{
			Customer:      toUserSummary(u),
			BookingsCount: r.BookingsCount,
			LastBookingAt: r.LastBookingAt,
		})
	}
	return out, nil
}

// SendReminders publishes a reminder notification for every approved booking on date.
func (s *BookingService) SendReminders(ctx context.Context, date time.Time) (int, error) {
	bookings, err := s.repo.FindScheduledOn(ctx, bookingDomain.StartOfDay(date), bookingDomain.StatusApproved)
	if err != nil {
		return 0, err
	}

	for _, bk := range bookings {
		s.events.publish(ctx, messages.TopicNotificationEvents, messages.NotificationBookingReminder, bk.CustomerID(), messages.BookingReminderNotification{
			BookingID:   bk.ID(),
			CustomerID:  bk.CustomerID(),
			TherapistID: bk.TherapistID(),
			BookingDate: bk.BookingDate().Format(dateLayout),
			BookingTime: bk.BookingTime(),
			Address:     bk.Address(),
			ServiceType: bk.ServiceType(),
		})
	}

	s.logger.Info("booking reminders queued",
		zap.String("date", date.Format(dateLayout)),
		zap.Int("count", len(bookings)),
	)
	return len(bookings), nil
}

// --- Helpers ---

func (s *BookingService) loadPendingOwned(ctx context.Context, p identity.Principal, id uuid.UUID, action policy.Action, notPending string) (*bookingDomain.Booking, error) {
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	if !policy.RoleAllows(p.Role, action) {
		return nil, apperror.NewForbiddenError("You are not allowed to perform this action.")
	}

	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bk.IsCustomer(p.ID) {
		return nil, apperror.NewNotFoundError("Booking", id.String())
	}
	if !bk.IsPending() {
		return nil, apperror.NewForbiddenError(notPending)
	}
	if err := policy.Authorize(p, action, policy.Target{Booking: bk}); err != nil {
		return nil, err
	}
	return bk, nil
}

func transitionAction(target bookingDomain.BookingStatus) policy.Action {
	switch target {
	case bookingDomain.StatusApproved:
		return policy.ActionAcceptBooking
	case bookingDomain.StatusDeclined:
		return policy.ActionDeclineBooking
	default:
		return policy.ActionAdvanceStatus
	}
}

// scopeFilter restricts a booking query to what the caller may see.
func scopeFilter(p identity.Principal) (bookingDomain.ListFilter, error) {
	if p.IsZero() {
		return bookingDomain.ListFilter{}, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	id := p.ID
	switch {
	case p.Role == identity.RoleCustomer:
		return bookingDomain.ListFilter{CustomerID: &id}, nil
	case p.Role == identity.RoleTherapist:
		return bookingDomain.ListFilter{TherapistID: &id}, nil
	case policy.RoleAllows(p.Role, policy.ActionViewAllBookings):
		return bookingDomain.ListFilter{}, nil
	}
	return bookingDomain.ListFilter{}, apperror.NewForbiddenError("You are not allowed to perform this action.")
}

func visibleTo(p identity.Principal, bk *bookingDomain.Booking) bool {
	switch p.Role {
	case identity.RoleCustomer:
		return bk.IsCustomer(p.ID)
	case identity.RoleTherapist:
		return bk.IsAssignedTo(p.ID)
	}
	return policy.RoleAllows(p.Role, policy.ActionViewAllBookings)
}

func validateCreate(req CreateBookingRequest, now time.Time) (uuid.UUID, bookingDomain.Details, error) {
	var errs apperror.FieldErrors
	therapistID := parseUUIDField(&errs, "therapist_id", req.TherapistID)

	details := bookingDomain.Details{
		BookingTime: strings.TrimSpace(req.BookingTime),
		Address:     strings.TrimSpace(req.Address),
		ServiceType: strings.TrimSpace(req.ServiceType),
		Notes:       req.Notes,
	}
	if strings.TrimSpace(req.BookingDate) != "" {
		d, err := time.Parse(dateLayout, strings.TrimSpace(req.BookingDate))
		if err != nil {
			errs.Add("booking_date", "must be a valid date (YYYY-MM-DD)")
		} else {
			details.BookingDate = d
		}
	}
	loc, ok := pairLocation(&errs, req.Latitude, req.Longitude)
	if ok {
		details.Location = loc
	}

	errs = mergeFields(errs, details.Validate(now, true))
	if err := errs.Err(); err != nil {
		return uuid.Nil, bookingDomain.Details{}, err
	}
	return therapistID, details, nil
}

func parsePatch(req UpdateBookingRequest) (bookingDomain.Patch, error) {
	var errs apperror.FieldErrors
	patch := bookingDomain.Patch{
		BookingTime: trimPtr(req.BookingTime),
		Address:     trimPtr(req.Address),
		ServiceType: trimPtr(req.ServiceType),
		Notes:       req.Notes,
	}
	if req.BookingDate != nil {
		d, err := time.Parse(dateLayout, strings.TrimSpace(*req.BookingDate))
		if err != nil {
			errs.Add("booking_date", "must be a valid date (YYYY-MM-DD)")
		} else {
			patch.BookingDate = &d
		}
	}
	if req.Latitude != nil || req.Longitude != nil {
		if loc, ok := pairLocation(&errs, req.Latitude, req.Longitude); ok {
			patch.Location = loc
		}
	}
	return patch, errs.Err()
}

// pairLocation accepts both coordinates or neither.
func pairLocation(errs *apperror.FieldErrors, lat, lng *float64) (*bookingDomain.GeoPoint, bool) {
	switch {
	case lat == nil && lng == nil:
		return nil, true
	case lat == nil || lng == nil:
		errs.Add("location", "latitude and longitude must be provided together")
		return nil, false
	}
	return &bookingDomain.GeoPoint{Latitude: *lat, Longitude: *lng}, true
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (s *BookingService) present(ctx context.Context, bk *bookingDomain.Booking) (*BookingDTO, error) {
	dtos, err := s.presentAll(ctx, []*bookingDomain.Booking{bk})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

// presentAll converts bookings and attaches customer and therapist summaries.
func (s *BookingService) presentAll(ctx context.Context, bookings []*bookingDomain.Booking) ([]BookingDTO, error) {
	dtos := make([]BookingDTO, len(bookings))
	if len(bookings) == 0 {
		return dtos, nil
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, bk := range bookings {
		for _, id := range []uuid.UUID{bk.CustomerID(), bk.TherapistID()} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
		dtos[i].Customer = toUserSummary(users[bk.CustomerID()])
		dtos[i].Therapist = toUserSummary(users[bk.TherapistID()])
	}
	return dtos, nil
}

func (s *BookingService) publishBookingEvent(ctx context.Context, eventType string, bk *bookingDomain.Booking) {
	s.events.publish(ctx, messages.TopicBookingEvents, eventType, bk.ID(), messages.BookingEvent{
		BookingID:   bk.ID(),
		CustomerID:  bk.CustomerID(),
		TherapistID: bk.TherapistID(),
		Status:      bk.Status().String(),
		BookingDate: bk.BookingDate().Format(dateLayout),
		BookingTime: bk.BookingTime(),
		ServiceType: bk.ServiceType(),
		OccurredAt:  s.now(),
	})
}

func (s *BookingService) publishDeleted(ctx context.Context, bk *bookingDomain.Booking, by uuid.UUID, forced bool) {
	s.events.publish(ctx, messages.TopicBookingEvents, messages.BookingDeleted, bk.ID(), messages.BookingDeletedEvent{
		BookingID:   bk.ID(),
		CustomerID:  bk.CustomerID(),
		TherapistID: bk.TherapistID(),
		Status:      bk.Status().String(),
		DeletedBy:   by,
		Forced:      forced,
		OccurredAt:  s.now(),
	})
}
