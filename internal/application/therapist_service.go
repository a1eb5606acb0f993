package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/domain/policy"
	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/messages"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// TherapistDashboardDTO is the therapist home screen.
type TherapistDashboardDTO struct {
	Therapist UserDTO          `json:"therapist"`
	Stats     *BookingStatsDTO `json:"stats"`
}

// AvailabilityDTO is the result of an availability toggle.
type AvailabilityDTO struct {
	IsAvailable bool `json:"is_available"`
}

// TherapistService serves therapist-facing features and the customer's therapist picker.
type TherapistService struct {
	profiles therapistDomain.ProfileRepository
	users    userDomain.Repository
	bookings *BookingService
	url      urlFunc
	events   eventSink
	now      Clock
	logger   *zap.Logger
}

// NewTherapistService creates a new TherapistService. url may be nil.
func NewTherapistService(
	profiles therapistDomain.ProfileRepository,
	users userDomain.Repository,
	bookings *BookingService,
	url func(path string) string,
	publisher EventPublisher,
	now Clock,
	logger *zap.Logger,
) *TherapistService {
	if now == nil {
		now = SystemClock
	}
	return &TherapistService{
		profiles: profiles,
		users:    users,
		bookings: bookings,
		url:      url,
		events:   eventSink{publisher: publisher, logger: logger},
		now:      now,
		logger:   logger,
	}
}

// ListAvailable returns therapists that currently accept bookings.
func (s *TherapistService) ListAvailable(ctx context.Context, p identity.Principal) ([]UserDTO, error) {
	if err := policy.Authorize(p, policy.ActionCreateBooking, policy.Target{}); err != nil {
		return nil, err
	}

	profiles, err := s.profiles.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list available therapists: %w", err)
	}

	ids := make([]uuid.UUID, len(profiles))
	for i, pr := range profiles {
		ids[i] = pr.UserID()
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]UserDTO, 0, len(profiles))
	for _, pr := range profiles {
		u, ok := users[pr.UserID()]
		if !ok || u.Role() != identity.RoleTherapist {
			continue
		}
		out = append(out, withProfile(toUserDTO(u, s.url), pr))
	}
	return out, nil
}

// Dashboard returns the calling therapist's profile and booking counts.
func (s *TherapistService) Dashboard(ctx context.Context, p identity.Principal) (*TherapistDashboardDTO, error) {
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	if p.Role != identity.RoleTherapist {
		return nil, apperror.NewForbiddenError("You are not allowed to perform this action.")
	}

	u, err := s.users.FindByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.FindByUserID(ctx, p.ID)
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return nil, err
	}

	stats, err := s.bookings.Stats(ctx, p)
	if err != nil {
		return nil, err
	}
	return &TherapistDashboardDTO{
		Therapist: withProfile(toUserDTO(u, s.url), profile),
		Stats:     stats,
	}, nil
}

// ToggleAvailability flips the calling therapist's availability flag.
// The write only succeeds if the stored flag still matches what was read.
func (s *TherapistService) ToggleAvailability(ctx context.Context, p identity.Principal) (*AvailabilityDTO, error) {
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	if !policy.RoleAllows(p.Role, policy.ActionToggleOwnAvailability) {
		return nil, apperror.NewForbiddenError("You are not allowed to perform this action.")
	}

	profile, err := s.profiles.FindByUserID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(p, policy.ActionToggleOwnAvailability, policy.Target{Profile: profile}); err != nil {
		return nil, err
	}

	now := s.now()
	available := profile.ToggleAvailability(now)
	if err := s.profiles.SetAvailability(ctx, p.ID, available, now); err != nil {
		return nil, err
	}

	s.logger.Info("therapist availability changed",
		zap.String("therapist_id", p.ID.String()),
		zap.Bool("is_available", available),
	)
	s.events.publish(ctx, messages.TopicTherapistEvents, messages.TherapistAvailabilityChanged, p.ID, messages.AvailabilityChangedEvent{
		TherapistID: p.ID,
		IsAvailable: available,
		OccurredAt:  s.now(),
	})

	return &AvailabilityDTO{IsAvailable: available}, nil
}

// Bookings lists bookings assigned to the calling therapist.
func (s *TherapistService) Bookings(ctx context.Context, p identity.Principal, status string, page, limit int) (*apperror.PaginatedResult[BookingDTO], error) {
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	if p.Role != identity.RoleTherapist {
		return nil, apperror.NewForbiddenError("You are not allowed to perform this action.")
	}
	return s.bookings.ListBookings(ctx, p, status, page, limit)
}
