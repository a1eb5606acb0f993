package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/zenbook/service-booking/internal/domain/booking"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// dateLayout is how booking_date is bound in queries.
const dateLayout = "2006-01-02"

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CustomerID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	TherapistID uuid.UUID  `gorm:"type:uuid;index;not null"`
	BookingDate time.Time  `gorm:"type:date;not null;index"`
	BookingTime string     `gorm:"type:varchar(5);not null"`
	Address     string     `gorm:"type:varchar(500);not null"`
	Latitude    *float64   `gorm:"type:decimal(10,8)"`
	Longitude   *float64   `gorm:"type:decimal(11,8)"`
	ServiceType string     `gorm:"type:varchar(255);not null"`
	Notes       string     `gorm:"type:text"`
	Status      string     `gorm:"type:varchar(20);not null;index"`
	ApprovedAt  *time.Time `gorm:""`
	StartedAt   *time.Time `gorm:""`
	CompletedAt *time.Time `gorm:""`
	DeclinedAt  *time.Time `gorm:""`
	Version     int64      `gorm:"not null;default:1"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// List retrieves bookings matching the filter, newest first, with pagination.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Scopes(filterScope(filter)).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Scopes(filterScope(filter)).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// FindScheduledOn retrieves bookings with the given status scheduled for date.
func (r *GormBookingRepository) FindScheduledOn(ctx context.Context, date time.Time, status bookingDomain.BookingStatus) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("booking_date = ? AND status = ?", date.Format(dateLayout), string(status)).
		Order("booking_time ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find scheduled bookings: %w", err)
	}
	return toDomainBookings(models)
}

// CountByStatus returns booking counts grouped by status.
func (r *GormBookingRepository) CountByStatus(ctx context.Context, filter bookingDomain.ListFilter) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Scopes(filterScope(filter)).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// CustomersOf returns the distinct customers of a therapist with their booking counts.
func (r *GormBookingRepository) CustomersOf(ctx context.Context, therapistID uuid.UUID) ([]bookingDomain.CustomerBookingCount, error) {
	type customerRow struct {
		CustomerID    uuid.UUID
		BookingsCount int64
		LastBookingAt time.Time
	}
	var rows []customerRow
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("customer_id, count(*) as bookings_count, max(created_at) as last_booking_at").
		Where("therapist_id = ?", therapistID).
		Group("customer_id").
		Order("last_booking_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list therapist customers: %w", err)
	}

	out := make([]bookingDomain.CustomerBookingCount, len(rows))
	for i, row := range rows {
		out[i] = bookingDomain.CustomerBookingCount{
			CustomerID:    row.CustomerID,
			BookingsCount: row.BookingsCount,
			LastBookingAt: row.LastBookingAt,
		}
	}
	return out, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking. The write only lands when the
// stored row is still at the previous version and in the expected status.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking, expected bookingDomain.BookingStatus) error {
	model := toBookingModel(bk)

	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ? AND status = ?", model.ID, expectedVersion, string(expected)).
		Updates(map[string]interface{}{
			"booking_date": model.BookingDate,
			"booking_time": model.BookingTime,
			"address":      model.Address,
			"latitude":     model.Latitude,
			"longitude":    model.Longitude,
			"service_type": model.ServiceType,
			"notes":        model.Notes,
			"status":       model.Status,
			"approved_at":  model.ApprovedAt,
			"started_at":   model.StartedAt,
			"completed_at": model.CompletedAt,
			"declined_at":  model.DeclinedAt,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return apperror.NewConflictError("Booking was modified by another request. Please reload and try again.")
	}

	return nil
}

// Delete removes a booking. When expected is set the row must still be in that status.
func (r *GormBookingRepository) Delete(ctx context.Context, id uuid.UUID, expected *bookingDomain.BookingStatus) error {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if expected != nil {
		q = q.Where("status = ?", string(*expected))
	}

	result := q.Delete(&BookingModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if expected != nil {
			return apperror.NewConflictError("Booking was modified by another request. Please reload and try again.")
		}
		return apperror.NewNotFoundError("Booking", id.String())
	}
	return nil
}

func filterScope(f bookingDomain.ListFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.CustomerID != nil {
			db = db.Where("customer_id = ?", *f.CustomerID)
		}
		if f.TherapistID != nil {
			db = db.Where("therapist_id = ?", *f.TherapistID)
		}
		if f.Status != nil {
			db = db.Where("status = ?", string(*f.Status))
		}
		return db
	}
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	m := &BookingModel{
		ID:          bk.ID(),
		CustomerID:  bk.CustomerID(),
		TherapistID: bk.TherapistID(),
		BookingDate: bk.BookingDate(),
		BookingTime: bk.BookingTime(),
		Address:     bk.Address(),
		ServiceType: bk.ServiceType(),
		Notes:       bk.Notes(),
		Status:      string(bk.Status()),
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
		m.Latitude, m.Longitude = &lat, &lng
	}
	return m
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var location *bookingDomain.GeoPoint
	if m.Latitude != nil && m.Longitude != nil {
		location = &bookingDomain.GeoPoint{Latitude: *m.Latitude, Longitude: *m.Longitude}
	}

	return bookingDomain.ReconstructBooking(
		m.ID,
		m.CustomerID,
		m.TherapistID,
		bookingDomain.Details{
			BookingDate: m.BookingDate,
			BookingTime: m.BookingTime,
			Address:     m.Address,
			Location:    location,
			ServiceType: m.ServiceType,
			Notes:       m.Notes,
		},
		status,
		m.ApprovedAt,
		m.StartedAt,
		m.CompletedAt,
		m.DeclinedAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
