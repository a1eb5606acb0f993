package therapist

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProfileRepository defines persistence operations for therapist profiles.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)
	FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*Profile, error)
	ListAvailable(ctx context.Context) ([]*Profile, error)
	Save(ctx context.Context, profile *Profile) error
	Update(ctx context.Context, profile *Profile) error

	// SetAvailability writes the flag only if the stored value still equals !available.
	// A lost race is reported as a Conflict error.
	SetAvailability(ctx context.Context, userID uuid.UUID, available bool, now time.Time) error
}
