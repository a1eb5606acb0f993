package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zenbook/service-booking/internal/domain/identity"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/platform/apperror"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name            string     `gorm:"type:varchar(255);not null"`
	Email           string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	Password        string     `gorm:"type:varchar(255);not null"`
	Role            string     `gorm:"type:varchar(20);not null;index"`
	Phone           string     `gorm:"type:varchar(20)"`
	Bio             string     `gorm:"type:text"`
	Address         string     `gorm:"type:text"`
	ProfileImage    string     `gorm:"type:varchar(500)"`
	EmailVerifiedAt *time.Time `gorm:""`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (UserModel) TableName() string { return "users" }

// GormUserRepository is the GORM-based implementation of user.Repository.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GormUserRepository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID retrieves an account by ID.
func (r *GormUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("User", id.String())
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return toUserDomain(&model)
}

// FindByIDs retrieves several accounts keyed by ID. Missing IDs are absent from the map.
func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*userDomain.User, error) {
	out := make(map[uuid.UUID]*userDomain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []UserModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	for i := range models {
		u, err := toUserDomain(&models[i])
		if err != nil {
			return nil, err
		}
		out[u.ID()] = u
	}
	return out, nil
}

// FindByEmail retrieves an account by its normalized email.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*userDomain.User, error) {
	email = userDomain.NormalizeEmail(email)
	var model UserModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("User", email)
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return toUserDomain(&model)
}

// ExistsByEmail reports whether an account other than exclude uses email.
func (r *GormUserRepository) ExistsByEmail(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", userDomain.NormalizeEmail(email))
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// List returns accounts with one of the given roles, newest first, with pagination.
func (r *GormUserRepository) List(ctx context.Context, roles []identity.Role, page, limit int) ([]*userDomain.User, int64, error) {
	tags := roleTags(roles)

	var total int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("role IN ?", tags).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var models []UserModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("role IN ?", tags).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*userDomain.User, len(models))
	for i := range models {
		u, err := toUserDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		users[i] = u
	}
	return users, total, nil
}

// CountByRole returns account counts per canonical role.
func (r *GormUserRepository) CountByRole(ctx context.Context) (map[identity.Role]int64, error) {
	type roleCount struct {
		Role  string
		Count int64
	}
	var results []roleCount
	if err := r.db.WithContext(ctx).Model(&UserModel{}).
		Select("role, count(*) as count").
		Group("role").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by role: %w", err)
	}

	counts := make(map[identity.Role]int64)
	for _, rc := range results {
		role, err := identity.ParseRole(rc.Role)
		if err != nil {
			continue
		}
		counts[role] += rc.Count
	}
	return counts, nil
}

// Save persists a new account.
func (r *GormUserRepository) Save(ctx context.Context, u *userDomain.User) error {
	if err := r.db.WithContext(ctx).Create(toUserModel(u)).Error; err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Update persists account changes.
func (r *GormUserRepository) Update(ctx context.Context, u *userDomain.User) error {
	model := toUserModel(u)
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"name":              model.Name,
			"email":             model.Email,
			"password":          model.Password,
			"role":              model.Role,
			"phone":             model.Phone,
			"bio":               model.Bio,
			"address":           model.Address,
			"profile_image":     model.ProfileImage,
			"email_verified_at": model.EmailVerifiedAt,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFoundError("User", model.ID.String())
	}
	return nil
}

// Delete removes the account, its bookings and its therapist profile in one transaction.
func (r *GormUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("customer_id = ? OR therapist_id = ?", id, id).
			Delete(&BookingModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete user bookings: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&TherapistProfileModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete therapist profile: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&UserModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete user: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NewNotFoundError("User", id.String())
		}
		return nil
	})
}

func roleTags(roles []identity.Role) []string {
	var tags []string
	for _, r := range roles {
		tags = append(tags, r.Tags()...)
	}
	return tags
}

// --- Conversions ---

func toUserModel(u *userDomain.User) *UserModel {
	return &UserModel{
		ID:              u.ID(),
		Name:            u.Name(),
		Email:           u.Email(),
		Password:        u.PasswordHash(),
		Role:            string(u.Role()),
		Phone:           u.Phone(),
		Bio:             u.Bio(),
		Address:         u.Address(),
		ProfileImage:    u.ProfileImage(),
		EmailVerifiedAt: u.EmailVerifiedAt(),
		CreatedAt:       u.CreatedAt(),
		UpdatedAt:       u.UpdatedAt(),
	}
}

func toUserDomain(m *UserModel) (*userDomain.User, error) {
	role, err := identity.ParseRole(m.Role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", m.ID, err)
	}
	return userDomain.Reconstruct(
		m.ID,
		m.Name, m.Email, m.Password,
		role,
		m.Phone, m.Bio, m.Address, m.ProfileImage,
		m.EmailVerifiedAt,
		m.CreatedAt, m.UpdatedAt,
	), nil
}
