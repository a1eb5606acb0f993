package application

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbook/service-booking/internal/domain/identity"
	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/storage"
)

// profileImageDir is the storage folder for profile images.
const profileImageDir = "profile-images"

// UpdateProfileRequest holds a partial profile update. Omitted fields are unchanged.
type UpdateProfileRequest struct {
	Name    *string `json:"name" binding:"omitempty,max=255"`
	Email   *string `json:"email" binding:"omitempty,email,max=255"`
	Phone   *string `json:"phone" binding:"omitempty,max=20"`
	Bio     *string `json:"bio" binding:"omitempty,max=1000"`
	Address *string `json:"address" binding:"omitempty,max=500"`
}

// ProfileService manages the caller's own account details and image.
type ProfileService struct {
	users    userDomain.Repository
	profiles therapistDomain.ProfileRepository
	store    storage.Store
	now      Clock
	logger   *zap.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(
	users userDomain.Repository,
	profiles therapistDomain.ProfileRepository,
	store storage.Store,
	now Clock,
	logger *zap.Logger,
) *ProfileService {
	if now == nil {
		now = SystemClock
	}
	return &ProfileService{users: users, profiles: profiles, store: store, now: now, logger: logger}
}

// Show returns the caller's profile.
func (s *ProfileService) Show(ctx context.Context, p identity.Principal) (*UserDTO, error) {
	u, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, u)
}

// Update changes the caller's account fields. Therapists' contact fields are mirrored
// onto their therapist profile.
func (s *ProfileService) Update(ctx context.Context, p identity.Principal, req UpdateProfileRequest) (*UserDTO, error) {
	u, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		if err := ensureEmailFree(ctx, s.users, userDomain.NormalizeEmail(*req.Email), u.ID()); err != nil {
			return nil, err
		}
	}

	if err := u.Apply(userDomain.Changes{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Bio:     req.Bio,
		Address: req.Address,
	}, s.now()); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	if u.Role() == identity.RoleTherapist && (req.Phone != nil || req.Bio != nil || req.Address != nil) {
		if err := s.updateTherapistProfile(ctx, u.ID(), req); err != nil {
			return nil, err
		}
	}

	s.logger.Info("profile updated", zap.String("user_id", u.ID().String()))
	return s.present(ctx, u)
}

// UploadImage stores a new profile image and removes the previous one.
func (s *ProfileService) UploadImage(ctx context.Context, p identity.Principal, r io.Reader) (*UserDTO, error) {
	u, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}

	img, err := storage.ReadImage(r)
	if err != nil {
		var errs apperror.FieldErrors
		errs.Add("image", err.Error())
		return nil, errs.Err()
	}

	path, err := s.store.Save(ctx, profileImageDir, uuid.NewString()+img.Extension, img.Reader())
	if err != nil {
		return nil, fmt.Errorf("failed to store profile image: %w", err)
	}

	old := u.ProfileImage()
	u.SetProfileImage(path, s.now())
	if err := s.users.Update(ctx, u); err != nil {
		s.removeImage(ctx, path)
		return nil, err
	}
	if old != "" {
		s.removeImage(ctx, old)
	}

	s.logger.Info("profile image uploaded",
		zap.String("user_id", u.ID().String()),
		zap.String("mime", img.MIME),
	)
	return s.present(ctx, u)
}

// DeleteImage removes the caller's profile image, if any.
func (s *ProfileService) DeleteImage(ctx context.Context, p identity.Principal) (*UserDTO, error) {
	u, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}
	if u.ProfileImage() == "" {
		return s.present(ctx, u)
	}

	old := u.ProfileImage()
	u.SetProfileImage("", s.now())
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.removeImage(ctx, old)

	s.logger.Info("profile image deleted", zap.String("user_id", u.ID().String()))
	return s.present(ctx, u)
}

func (s *ProfileService) load(ctx context.Context, p identity.Principal) (*userDomain.User, error) {
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	return s.users.FindByID(ctx, p.ID)
}

func (s *ProfileService) updateTherapistProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) error {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil
		}
		return err
	}
	if err := profile.Update(req.Phone, req.Address, req.Bio, s.now()); err != nil {
		return apperror.NewValidationError(err.Error())
	}
	return s.profiles.Update(ctx, profile)
}

// removeImage deletes a stored image; failures leave an orphan file and are only logged.
func (s *ProfileService) removeImage(ctx context.Context, path string) {
	if err := s.store.Delete(ctx, path); err != nil {
		s.logger.Error("failed to delete profile image",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func (s *ProfileService) present(ctx context.Context, u *userDomain.User) (*UserDTO, error) {
	dto := toUserDTO(u, s.store.URL)
	if u.Role() == identity.RoleTherapist {
		profile, err := s.profiles.FindByUserID(ctx, u.ID())
		if err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}
		dto = withProfile(dto, profile)
	}
	return &dto, nil
}
