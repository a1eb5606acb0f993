package therapist

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Field limits for therapist profiles.
const (
	MaxPhoneLength   = 20
	MaxAddressLength = 500
	MaxBioLength     = 1000
)

// Profile is the aggregate root for a therapist's working profile.
// It is one-to-one with a therapist user account.
type Profile struct {
	id          uuid.UUID
	userID      uuid.UUID
	phone       string
	address     string
	bio         string
	isAvailable bool
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewProfile creates a profile for a freshly provisioned therapist. New profiles are available.
func NewProfile(userID uuid.UUID, phone, address, bio string, now time.Time) (*Profile, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user ID is required")
	}
	if err := validateFields(phone, address, bio); err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Profile{
		id:          uuid.New(),
		userID:      userID,
		phone:       phone,
		address:     address,
		bio:         bio,
		isAvailable: true,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds a Profile from persistence data (no validation).
func Reconstruct(
	id, userID uuid.UUID,
	phone, address, bio string,
	isAvailable bool,
	version int64,
	createdAt, updatedAt time.Time,
) *Profile {
	return &Profile{
		id:          id,
		userID:      userID,
		phone:       phone,
		address:     address,
		bio:         bio,
		isAvailable: isAvailable,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

func (p *Profile) ID() uuid.UUID        { return p.id }
func (p *Profile) UserID() uuid.UUID    { return p.userID }
func (p *Profile) Phone() string        { return p.phone }
func (p *Profile) Address() string      { return p.address }
func (p *Profile) Bio() string          { return p.bio }
func (p *Profile) IsAvailable() bool    { return p.isAvailable }
func (p *Profile) Version() int64       { return p.version }
func (p *Profile) CreatedAt() time.Time { return p.createdAt }
func (p *Profile) UpdatedAt() time.Time { return p.updatedAt }

// --- Behavior ---

// IsOwnedBy checks if the profile belongs to the given user.
func (p *Profile) IsOwnedBy(userID uuid.UUID) bool {
	return p.userID == userID
}

// Update applies partial updates to the profile. Nil fields are left unchanged.
func (p *Profile) Update(phone, address, bio *string, now time.Time) error {
	next := *p
	if phone != nil {
		next.phone = *phone
	}
	if address != nil {
		next.address = *address
	}
	if bio != nil {
		next.bio = *bio
	}
	if err := validateFields(next.phone, next.address, next.bio); err != nil {
		return err
	}
	p.phone, p.address, p.bio = next.phone, next.address, next.bio
	p.touch(now)
	return nil
}

// SetAvailability sets the availability flag directly (admin edits).
func (p *Profile) SetAvailability(available bool, now time.Time) {
	if p.isAvailable == available {
		return
	}
	p.isAvailable = available
	p.touch(now)
}

// ToggleAvailability flips the availability flag and returns the new value.
func (p *Profile) ToggleAvailability(now time.Time) bool {
	p.isAvailable = !p.isAvailable
	p.touch(now)
	return p.isAvailable
}

func (p *Profile) touch(now time.Time) {
	p.version++
	p.updatedAt = now.UTC()
}

func validateFields(phone, address, bio string) error {
	if utf8.RuneCountInString(phone) > MaxPhoneLength {
		return fmt.Errorf("phone may not be greater than %d characters", MaxPhoneLength)
	}
	if utf8.RuneCountInString(address) > MaxAddressLength {
		return fmt.Errorf("address may not be greater than %d characters", MaxAddressLength)
	}
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return fmt.Errorf("bio may not be greater than %d characters", MaxBioLength)
	}
	return nil
}

// IsAssignable reports whether a new booking may target this therapist.
// A missing profile is never assignable.
func IsAssignable(p *Profile) bool {
	return p != nil && p.isAvailable
}
