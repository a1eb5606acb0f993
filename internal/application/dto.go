package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/zenbook/service-booking/internal/domain/booking"
	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
)

// UserDTO is the response representation of an account.
type UserDTO struct {
	ID              uuid.UUID            `json:"id"`
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Role            string               `json:"role"`
	Phone           string               `json:"phone,omitempty"`
	Bio             string               `json:"bio,omitempty"`
	Address         string               `json:"address,omitempty"`
	ProfileImage    string               `json:"profile_image,omitempty"`
	ProfileImageURL string               `json:"profile_image_url,omitempty"`
	EmailVerifiedAt *time.Time           `json:"email_verified_at"`
	Therapist       *TherapistProfileDTO `json:"therapist_profile,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// TherapistProfileDTO is the response representation of a therapist profile.
type TherapistProfileDTO struct {
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	IsAvailable bool      `json:"is_available"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserSummary is the short account form embedded in bookings.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID          uuid.UUID    `json:"id"`
	CustomerID  uuid.UUID    `json:"customer_id"`
	TherapistID uuid.UUID    `json:"therapist_id"`
	Customer    *UserSummary `json:"customer,omitempty"`
	Therapist   *UserSummary `json:"therapist,omitempty"`
	BookingDate string       `json:"booking_date"`
	BookingTime string       `json:"booking_time"`
	Address     string       `json:"address"`
	Latitude    *float64     `json:"latitude"`
	Longitude   *float64     `json:"longitude"`
	ServiceType string       `json:"service_type"`
	Notes       string       `json:"notes,omitempty"`
	Status      string       `json:"status"`
	ApprovedAt  *time.Time   `json:"approved_at,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DeclinedAt  *time.Time   `json:"declined_at,omitempty"`
	Version     int64        `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// urlFunc maps a stored image path to a public URL.
type urlFunc func(path string) string

func toUserDTO(u *userDomain.User, url urlFunc) UserDTO {
	dto := UserDTO{
		ID:              u.ID(),
		Name:            u.Name(),
		Email:           u.Email(),
		Role:            u.Role().String(),
		Phone:           u.Phone(),
		Bio:             u.Bio(),
		Address:         u.Address(),
		ProfileImage:    u.ProfileImage(),
		EmailVerifiedAt: u.EmailVerifiedAt(),
		CreatedAt:       u.CreatedAt(),
		UpdatedAt:       u.UpdatedAt(),
	}
	if url != nil && u.ProfileImage() != "" {
		dto.ProfileImageURL = url(u.ProfileImage())
	}
	return dto
}

func withProfile(dto UserDTO, p *therapistDomain.Profile) UserDTO {
	if p == nil {
		return dto
	}
	dto.Therapist = &TherapistProfileDTO{
		Phone:       p.Phone(),
		Address:     p.Address(),
		Bio:         p.Bio(),
		IsAvailable: p.IsAvailable(),
		UpdatedAt:   p.UpdatedAt(),
	}
	return dto
}

func toUserSummary(u *userDomain.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID(), Name: u.Name(), Email: u.Email(), Phone: u.Phone()}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	dto := BookingDTO{
		ID:          bk.ID(),
		CustomerID:  bk.CustomerID(),
		TherapistID: bk.TherapistID(),
		BookingDate: bk.BookingDate().Format(dateLayout),
		BookingTime: bk.BookingTime(),
		Address:     bk.Address(),
		ServiceType: bk.ServiceType(),
		Notes:       bk.Notes(),
		Status:      bk.Status().String(),
		ApprovedAt:  bk.ApprovedAt(),
		StartedAt:   bk.StartedAt(),
		CompletedAt: bk.CompletedAt(),
		DeclinedAt:  bk.DeclinedAt(),
		Version:     bk.Version(),
		CreatedAt:   bk.CreatedAt(),
		UpdatedAt:   bk.UpdatedAt(),
	}
	if loc := bk.Location(); loc != nil {
		lat, lng := loc.Latitude, loc.Longitude
		dto.Latitude, dto.Longitude = &lat, &lng
	}
	return dto
}
