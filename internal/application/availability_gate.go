package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/domain/identity"
	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// AvailabilityGate decides whether a new booking may target a therapist.
type AvailabilityGate struct {
	users    userDomain.Repository
	profiles therapistDomain.ProfileRepository
}

// NewAvailabilityGate creates an AvailabilityGate.
func NewAvailabilityGate(users userDomain.Repository, profiles therapistDomain.ProfileRepository) *AvailabilityGate {
	return &AvailabilityGate{users: users, profiles: profiles}
}

// Check returns TherapistUnavailable unless therapistID is a therapist account
// whose profile is marked available.
func (g *AvailabilityGate) Check(ctx context.Context, therapistID uuid.UUID) error {
	unavailable := apperror.NewTherapistUnavailableError(therapistID.String())

	u, err := g.users.FindByID(ctx, therapistID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return unavailable
		}
		return err
	}
	if u.Role() != identity.RoleTherapist {
		return unavailable
	}

	profile, err := g.profiles.FindByUserID(ctx, therapistID)
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return err
	}
	if !therapistDomain.IsAssignable(profile) {
		return unavailable
	}
	return nil
}
