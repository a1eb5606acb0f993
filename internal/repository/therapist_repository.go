package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// TherapistProfileModel is the GORM model for the therapist_profiles table.
type TherapistProfileModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Phone       string    `gorm:"type:varchar(20)"`
	Address     string    `gorm:"type:text"`
	Bio         string    `gorm:"type:text"`
	IsAvailable bool      `gorm:"not null;default:true;index"`
	Version     int64     `gorm:"not null;default:1"`
	CreatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (TherapistProfileModel) TableName() string { return "therapist_profiles" }

// GormTherapistRepository implements ProfileRepository using GORM.
type GormTherapistRepository struct {
	db *gorm.DB
}

func NewGormTherapistRepository(db *gorm.DB) *GormTherapistRepository {
	return &GormTherapistRepository{db: db}
}

func (r *GormTherapistRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*therapistDomain.Profile, error) {
	var model TherapistProfileModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Therapist profile", userID.String())
		}
		return nil, fmt.Errorf("failed to find therapist profile: %w", err)
	}
	return toTherapistDomain(&model), nil
}

func (r *GormTherapistRepository) FindByUserIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*therapistDomain.Profile, error) {
	out := make(map[uuid.UUID]*therapistDomain.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var models []TherapistProfileModel
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find therapist profiles: %w", err)
	}
	for i := range models {
		out[models[i].UserID] = toTherapistDomain(&models[i])
	}
	return out, nil
}

func (r *GormTherapistRepository) ListAvailable(ctx context.Context) ([]*therapistDomain.Profile, error) {
	var models []TherapistProfileModel
	if err := r.db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list available therapists: %w", err)
	}
	profiles := make([]*therapistDomain.Profile, len(models))
	for i := range models {
		profiles[i] = toTherapistDomain(&models[i])
	}
	return profiles, nil
}

func (r *GormTherapistRepository) Save(ctx context.Context, p *therapistDomain.Profile) error {
	if err := r.db.WithContext(ctx).Create(toTherapistModel(p)).Error; err != nil {
		return fmt.Errorf("failed to save therapist profile: %w", err)
	}
	return nil
}

func (r *GormTherapistRepository) Update(ctx context.Context, p *therapistDomain.Profile) error {
	model := toTherapistModel(p)
	previousVersion := p.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&TherapistProfileModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(map[string]interface{}{
			"phone":        model.Phone,
			"address":      model.Address,
			"bio":          model.Bio,
			"is_available": model.IsAvailable,
			"version":      model.Version,
			"updated_at":   model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update therapist profile: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewConflictError("Therapist profile was modified by another request.")
	}
	return nil
}

// SetAvailability flips the flag only when the stored value is still the opposite.
func (r *GormTherapistRepository) SetAvailability(ctx context.Context, userID uuid.UUID, available bool, now time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&TherapistProfileModel{}).
		Where("user_id = ? AND is_available = ?", userID, !available).
		Updates(map[string]interface{}{
			"is_available": available,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now.UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to set availability: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewConflictError("Availability was changed by another request.")
	}
	return nil
}

// --- Conversions ---

func toTherapistModel(p *therapistDomain.Profile) *TherapistProfileModel {
	return &TherapistProfileModel{
		ID:          p.ID(),
		UserID:      p.UserID(),
		Phone:       p.Phone(),
		Address:     p.Address(),
		Bio:         p.Bio(),
		IsAvailable: p.IsAvailable(),
		Version:     p.Version(),
		CreatedAt:   p.CreatedAt(),
		UpdatedAt:   p.UpdatedAt(),
	}
}

func toTherapistDomain(m *TherapistProfileModel) *therapistDomain.Profile {
	return therapistDomain.Reconstruct(
		m.ID, m.UserID,
		m.Phone, m.Address, m.Bio,
		m.IsAvailable,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
