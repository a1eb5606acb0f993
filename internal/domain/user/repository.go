package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/domain/identity"
)

// Repository defines persistence operations for accounts.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// ExistsByEmail reports whether another account already uses email. exclude may be uuid.Nil.
	ExistsByEmail(ctx context.Context, email string, exclude uuid.UUID) (bool, error)

	// List returns accounts with one of the given roles, newest first, with pagination.
	List(ctx context.Context, roles []identity.Role, page, limit int) ([]*User, int64, error)
	CountByRole(ctx context.Context) (map[identity.Role]int64, error)
	Save(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error

	// Delete removes the account together with its bookings and therapist profile.
	Delete(ctx context.Context, id uuid.UUID) error
}
