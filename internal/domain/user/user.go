// Package user holds the account aggregate shared by authentication, profile and administration.
package user

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// Field limits for accounts.
const (
	MaxNameLength     = 255
	MaxEmailLength    = 255
	MaxPhoneLength    = 20
	MaxBioLength      = 1000
	MaxAddressLength  = 500
	MinPasswordLength = 8
)

// User is the aggregate root for an account.
type User struct {
	id              uuid.UUID
	name            string
	email           string
	passwordHash    string
	role            identity.Role
	phone           string
	bio             string
	address         string
	profileImage    string
	emailVerifiedAt *time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword checks the password rules shared by registration, reset and admin edits.
func ValidatePassword(password, confirmation string) apperror.FieldErrors {
	var errs apperror.FieldErrors
	if utf8.RuneCountInString(password) < MinPasswordLength {
		errs.Add("password", "must be at least 8 characters")
	} else if password != confirmation {
		errs.Add("password", "confirmation does not match")
	}
	return errs
}

// ValidateIdentity checks name and email.
func ValidateIdentity(name, email string) apperror.FieldErrors {
	var errs apperror.FieldErrors
	if strings.TrimSpace(name) == "" {
		errs.Add("name", "is required")
	} else if utf8.RuneCountInString(name) > MaxNameLength {
		errs.Add("name", "may not be greater than 255 characters")
	}
	if email == "" {
		errs.Add("email", "is required")
	} else if _, err := mail.ParseAddress(email); err != nil || utf8.RuneCountInString(email) > MaxEmailLength {
		errs.Add("email", "must be a valid email address")
	}
	return errs
}

// ValidateContact checks the optional contact fields.
func ValidateContact(phone, bio, address string) apperror.FieldErrors {
	var errs apperror.FieldErrors
	if utf8.RuneCountInString(phone) > MaxPhoneLength {
		errs.Add("phone", "may not be greater than 20 characters")
	}
	if utf8.RuneCountInString(bio) > MaxBioLength {
		errs.Add("bio", "may not be greater than 1000 characters")
	}
	if utf8.RuneCountInString(address) > MaxAddressLength {
		errs.Add("address", "may not be greater than 500 characters")
	}
	return errs
}

// NewUser creates an account. passwordHash must already be hashed.
func NewUser(name, email, passwordHash string, role identity.Role, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	errs := ValidateIdentity(name, email)
	if !role.IsValid() {
		errs.Add("role", "is invalid")
	}
	if passwordHash == "" {
		errs.Add("password", "is required")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	now = now.UTC()
	return &User{
		id:           uuid.New(),
		name:         strings.TrimSpace(name),
		email:        email,
		passwordHash: passwordHash,
		role:         role,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct rebuilds a User from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	name, email, passwordHash string,
	role identity.Role,
	phone, bio, address, profileImage string,
	emailVerifiedAt *time.Time,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		id:              id,
		name:            name,
		email:           email,
		passwordHash:    passwordHash,
		role:            role,
		phone:           phone,
		bio:             bio,
		address:         address,
		profileImage:    profileImage,
		emailVerifiedAt: emailVerifiedAt,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

func (u *User) ID() uuid.UUID               { return u.id }
func (u *User) Name() string                { return u.name }
func (u *User) Email() string               { return u.email }
func (u *User) PasswordHash() string        { return u.passwordHash }
func (u *User) Role() identity.Role         { return u.role }
func (u *User) Phone() string               { return u.phone }
func (u *User) Bio() string                 { return u.bio }
func (u *User) Address() string             { return u.address }
func (u *User) ProfileImage() string        { return u.profileImage }
func (u *User) EmailVerifiedAt() *time.Time { return u.emailVerifiedAt }
func (u *User) CreatedAt() time.Time        { return u.createdAt }
func (u *User) UpdatedAt() time.Time        { return u.updatedAt }

// IsVerified reports whether the email address has been confirmed.
func (u *User) IsVerified() bool { return u.emailVerifiedAt != nil }

// --- Behavior ---

// Changes is a partial update to an account. Nil fields are left unchanged.
type Changes struct {
	Name    *string
	Email   *string
	Phone   *string
	Bio     *string
	Address *string
}

// Apply validates and applies the changes.
func (u *User) Apply(c Changes, now time.Time) error {
	name, email := u.name, u.email
	phone, bio, address := u.phone, u.bio, u.address
	if c.Name != nil {
		name = strings.TrimSpace(*c.Name)
	}
	if c.Email != nil {
		email = NormalizeEmail(*c.Email)
	}
	if c.Phone != nil {
		phone = *c.Phone
	}
	if c.Bio != nil {
		bio = *c.Bio
	}
	if c.Address != nil {
		address = *c.Address
	}

	errs := ValidateIdentity(name, email)
	errs = append(errs, ValidateContact(phone, bio, address)...)
	if err := errs.Err(); err != nil {
		return err
	}

	u.name, u.email = name, email
	u.phone, u.bio, u.address = phone, bio, address
	u.updatedAt = now.UTC()
	return nil
}

// SetPasswordHash replaces the stored hash.
func (u *User) SetPasswordHash(hash string, now time.Time) {
	u.passwordHash = hash
	u.updatedAt = now.UTC()
}

// SetProfileImage records the storage path of the profile image; "" clears it.
func (u *User) SetProfileImage(path string, now time.Time) {
	u.profileImage = path
	u.updatedAt = now.UTC()
}

// MarkVerified stamps the email verification time once.
func (u *User) MarkVerified(now time.Time) {
	if u.emailVerifiedAt != nil {
		return
	}
	at := now.UTC()
	u.emailVerifiedAt = &at
	u.updatedAt = at
}
