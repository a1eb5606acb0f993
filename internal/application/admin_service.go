package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenbook/service-booking/internal/domain/identity"
	"github.com/zenbook/service-booking/internal/domain/policy"
	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/storage"
)

// CreateAccountRequest holds an administrator-created account.
type CreateAccountRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required"`
	Phone                string `json:"phone" binding:"max=20"`
	Bio                  string `json:"bio" binding:"max=1000"`
	Address              string `json:"address" binding:"max=500"`
	IsAvailable          *bool  `json:"is_available"`
}

// UpdateAccountRequest holds a partial account update by an administrator.
type UpdateAccountRequest struct {
	Name                 *string `json:"name" binding:"omitempty,max=255"`
	Email                *string `json:"email" binding:"omitempty,email,max=255"`
	Password             *string `json:"password" binding:"omitempty,min=8"`
	PasswordConfirmation *string `json:"password_confirmation"`
	Phone                *string `json:"phone" binding:"omitempty,max=20"`
	Bio                  *string `json:"bio" binding:"omitempty,max=1000"`
	Address              *string `json:"address" binding:"omitempty,max=500"`
	IsAvailable          *bool   `json:"is_available"`
}

// AdminDashboardDTO holds system-wide counts.
type AdminDashboardDTO struct {
	UsersByRole  map[string]int64 `json:"users_by_role"`
	TotalUsers   int64            `json:"total_users"`
	BookingStats *BookingStatsDTO `json:"booking_stats"`
}

// accountKind describes one administrated account category.
type accountKind struct {
	role   identity.Role
	action policy.Action
	entity string
}

var (
	customerAccounts  = accountKind{role: identity.RoleCustomer, action: policy.ActionManageUsers, entity: "User"}
	therapistAccounts = accountKind{role: identity.RoleTherapist, action: policy.ActionManageTherapists, entity: "Therapist"}
	adminAccounts     = accountKind{role: identity.RoleStaff, action: policy.ActionManageAdmins, entity: "Admin"}
)

// AdminService serves the staff and super admin back office.
type AdminService struct {
	users    userDomain.Repository
	profiles therapistDomain.ProfileRepository
	bookings *BookingService
	store    storage.Store
	hashCost int
	now      Clock
	logger   *zap.Logger
}

// NewAdminService creates a new AdminService. store may be nil.
func NewAdminService(
	users userDomain.Repository,
	profiles therapistDomain.ProfileRepository,
	bookings *BookingService,
	store storage.Store,
	hashCost int,
	now Clock,
	logger *zap.Logger,
) *AdminService {
	if now == nil {
		now = SystemClock
	}
	if hashCost == 0 {
		hashCost = AuthConfig{}.withDefaults().HashCost
	}
	return &AdminService{
		users:    users,
		profiles: profiles,
		bookings: bookings,
		store:    store,
		hashCost: hashCost,
		now:      now,
		logger:   logger,
	}
}

// Dashboard returns users per role and bookings per status.
func (s *AdminService) Dashboard(ctx context.Context, p identity.Principal) (*AdminDashboardDTO, error) {
	if err := policy.Authorize(p, policy.ActionManageUsers, policy.Target{}); err != nil {
		return nil, err
	}

	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	byRole := make(map[string]int64, 4)
	var total int64
	for _, r := range []identity.Role{identity.RoleCustomer, identity.RoleTherapist, identity.RoleStaff, identity.RoleSuperAdmin} {
		byRole[r.String()] = counts[r]
		total += counts[r]
	}

	stats, err := s.bookings.Stats(ctx, p)
	if err != nil {
		return nil, err
	}
	return &AdminDashboardDTO{UsersByRole: byRole, TotalUsers: total, BookingStats: stats}, nil
}

// --- Customers ---

func (s *AdminService) ListUsers(ctx context.Context, p identity.Principal, page, limit int) (*apperror.PaginatedResult[UserDTO], error) {
	return s.list(ctx, p, customerAccounts, page, limit)
}

func (s *AdminService) GetUser(ctx context.Context, p identity.Principal, id uuid.UUID) (*UserDTO, error) {
	return s.get(ctx, p, customerAccounts, id)
}

func (s *AdminService) CreateUser(ctx context.Context, p identity.Principal, req CreateAccountRequest) (*UserDTO, error) {
	return s.create(ctx, p, customerAccounts, req)
}

func (s *AdminService) UpdateUser(ctx context.Context, p identity.Principal, id uuid.UUID, req UpdateAccountRequest) (*UserDTO, error) {
	return s.update(ctx, p, customerAccounts, id, req)
}

func (s *AdminService) DeleteUser(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	return s.delete(ctx, p, customerAccounts, id)
}

// --- Therapists ---

func (s *AdminService) ListTherapists(ctx context.Context, p identity.Principal, page, limit int) (*apperror.PaginatedResult[UserDTO], error) {
	return s.list(ctx, p, therapistAccounts, page, limit)
}

func (s *AdminService) GetTherapist(ctx context.Context, p identity.Principal, id uuid.UUID) (*UserDTO, error) {
	return s.get(ctx, p, therapistAccounts, id)
}

// CreateTherapist provisions a therapist account and its profile. New therapists are available
// unless the request says otherwise.
func (s *AdminService) CreateTherapist(ctx context.Context, p identity.Principal, req CreateAccountRequest) (*UserDTO, error) {
	return s.create(ctx, p, therapistAccounts, req)
}

func (s *AdminService) UpdateTherapist(ctx context.Context, p identity.Principal, id uuid.UUID, req UpdateAccountRequest) (*UserDTO, error) {
	return s.update(ctx, p, therapistAccounts, id, req)
}

func (s *AdminService) DeleteTherapist(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	return s.delete(ctx, p, therapistAccounts, id)
}

// --- Admins (super admin only) ---

func (s *AdminService) ListAdmins(ctx context.Context, p identity.Principal, page, limit int) (*apperror.PaginatedResult[UserDTO], error) {
	return s.list(ctx, p, adminAccounts, page, limit)
}

func (s *AdminService) GetAdmin(ctx context.Context, p identity.Principal, id uuid.UUID) (*UserDTO, error) {
	return s.get(ctx, p, adminAccounts, id)
}

func (s *AdminService) CreateAdmin(ctx context.Context, p identity.Principal, req CreateAccountRequest) (*UserDTO, error) {
	return s.create(ctx, p, adminAccounts, req)
}

func (s *AdminService) UpdateAdmin(ctx context.Context, p identity.Principal, id uuid.UUID, req UpdateAccountRequest) (*UserDTO, error) {
	return s.update(ctx, p, adminAccounts, id, req)
}

// DeleteAdmin removes a staff account. Super admins cannot delete themselves.
func (s *AdminService) DeleteAdmin(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	if err := policy.Authorize(p, policy.ActionDeleteAdmin, policy.Target{UserID: id}); err != nil {
		return err
	}
	return s.delete(ctx, p, adminAccounts, id)
}

// --- Bookings ---

// ListBookings lists every booking, optionally filtered by status.
func (s *AdminService) ListBookings(ctx context.Context, p identity.Principal, status string, page, limit int) (*apperror.PaginatedResult[BookingDTO], error) {
	if err := policy.Authorize(p, policy.ActionViewAllBookings, policy.Target{}); err != nil {
		return nil, err
	}
	return s.bookings.ListBookings(ctx, p, status, page, limit)
}

// DeleteBooking removes a booking in any state.
func (s *AdminService) DeleteBooking(ctx context.Context, p identity.Principal, id uuid.UUID) error {
	return s.bookings.ForceDelete(ctx, p, id)
}

// EnsureSuperAdmin creates the bootstrap super admin if the address is not yet registered.
func (s *AdminService) EnsureSuperAdmin(ctx context.Context, name, email, password string) error {
	email = userDomain.NormalizeEmail(email)
	exists, err := s.users.ExistsByEmail(ctx, email, uuid.Nil)
	if err != nil {
		return fmt.Errorf("failed to check super admin: %w", err)
	}
	if exists {
		return nil
	}
	if err := userDomain.ValidatePassword(password, password).Err(); err != nil {
		return err
	}

	hash, err := hashPassword(password, s.hashCost)
	if err != nil {
		return err
	}
	u, err := userDomain.NewUser(name, email, hash, identity.RoleSuperAdmin, s.now())
	if err != nil {
		return err
	}
	u.MarkVerified(s.now())
	if err := s.users.Save(ctx, u); err != nil {
		return fmt.Errorf("failed to save super admin: %w", err)
	}

	s.logger.Info("super admin created", zap.String("user_id", u.ID().String()))
	return nil
}

// --- Shared account handling ---

func (s *AdminService) list(ctx context.Context, p identity.Principal, kind accountKind, page, limit int) (*apperror.PaginatedResult[UserDTO], error) {
	if err := policy.Authorize(p, kind.action, policy.Target{}); err != nil {
		return nil, err
	}

	page, limit = normalizePage(page, limit)
	users, total, err := s.users.List(ctx, []identity.Role{kind.role}, page, limit)
	if err != nil {
		return nil, err
	}

	profiles := map[uuid.UUID]*therapistDomain.Profile{}
	if kind.role == identity.RoleTherapist && len(users) > 0 {
		ids := make([]uuid.UUID, len(users))
		for i, u := range users {
			ids[i] = u.ID()
		}
		if profiles, err = s.profiles.FindByUserIDs(ctx, ids); err != nil {
			return nil, err
		}
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = withProfile(toUserDTO(u, s.imageURL()), profiles[u.ID()])
	}
	result := apperror.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

func (s *AdminService) get(ctx context.Context, p identity.Principal, kind accountKind, id uuid.UUID) (*UserDTO, error) {
	if err := policy.Authorize(p, kind.action, policy.Target{}); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, u)
}

func (s *AdminService) create(ctx context.Context, p identity.Principal, kind accountKind, req CreateAccountRequest) (*UserDTO, error) {
	if err := policy.Authorize(p, kind.action, policy.Target{}); err != nil {
		return nil, err
	}

	email := userDomain.NormalizeEmail(req.Email)
	errs := userDomain.ValidateIdentity(req.Name, email)
	errs = append(errs, userDomain.ValidatePassword(req.Password, req.PasswordConfirmation)...)
	errs = append(errs, userDomain.ValidateContact(req.Phone, req.Bio, req.Address)...)
	if err := errs.Err(); err != nil {
		return nil, err
	}
	if err := ensureEmailFree(ctx, s.users, email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password, s.hashCost)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u, err := userDomain.NewUser(req.Name, email, hash, kind.role, now)
	if err != nil {
		return nil, err
	}
	if err := u.Apply(userDomain.Changes{Phone: &req.Phone, Bio: &req.Bio, Address: &req.Address}, now); err != nil {
		return nil, err
	}
	u.MarkVerified(now)

	if err := s.users.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	if kind.role == identity.RoleTherapist {
		if err := s.createProfile(ctx, u, req); err != nil {
			if delErr := s.users.Delete(ctx, u.ID()); delErr != nil {
				s.logger.Error("failed to roll back therapist account",
					zap.String("user_id", u.ID().String()),
					zap.Error(delErr),
				)
			}
			return nil, err
		}
	}

	s.logger.Info("account created",
		zap.String("user_id", u.ID().String()),
		zap.String("role", kind.role.String()),
		zap.String("created_by", p.ID.String()),
	)
	return s.present(ctx, u)
}

func (s *AdminService) update(ctx context.Context, p identity.Principal, kind accountKind, id uuid.UUID, req UpdateAccountRequest) (*UserDTO, error) {
	if err := policy.Authorize(p, kind.action, policy.Target{}); err != nil {
		return nil, err
	}
	u, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		if err := ensureEmailFree(ctx, s.users, userDomain.NormalizeEmail(*req.Email), u.ID()); err != nil {
			return nil, err
		}
	}

	now := s.now()
	if err := u.Apply(userDomain.Changes{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Bio:     req.Bio,
		Address: req.Address,
	}, now); err != nil {
		return nil, err
	}
	if req.Password != nil && *req.Password != "" {
		confirmation := ""
		if req.PasswordConfirmation != nil {
			confirmation = *req.PasswordConfirmation
		}
		if err := userDomain.ValidatePassword(*req.Password, confirmation).Err(); err != nil {
			return nil, err
		}
		hash, err := hashPassword(*req.Password, s.hashCost)
		if err != nil {
			return nil, err
		}
		u.SetPasswordHash(hash, now)
	}

	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}

	if kind.role == identity.RoleTherapist {
		if err := s.updateProfile(ctx, u.ID(), req); err != nil {
			return nil, err
		}
	}

	s.logger.Info("account updated",
		zap.String("user_id", u.ID().String()),
		zap.String("updated_by", p.ID.String()),
	)
	return s.present(ctx, u)
}

func (s *AdminService) delete(ctx context.Context, p identity.Principal, kind accountKind, id uuid.UUID) error {
	if err := policy.Authorize(p, kind.action, policy.Target{}); err != nil {
		return err
	}
	u, err := s.load(ctx, kind, id)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, u.ID()); err != nil {
		return err
	}
	if u.ProfileImage() != "" && s.store != nil {
		if err := s.store.Delete(ctx, u.ProfileImage()); err != nil {
			s.logger.Error("failed to delete profile image", zap.String("path", u.ProfileImage()), zap.Error(err))
		}
	}

	s.logger.Info("account deleted",
		zap.String("user_id", u.ID().String()),
		zap.String("role", kind.role.String()),
		zap.String("deleted_by", p.ID.String()),
	)
	return nil
}

// load fetches an account of the given kind; accounts of other roles are reported as not found.
func (s *AdminService) load(ctx context.Context, kind accountKind, id uuid.UUID) (*userDomain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.NewNotFoundError(kind.entity, id.String())
		}
		return nil, err
	}
	if u.Role() != kind.role {
		return nil, apperror.NewNotFoundError(kind.entity, id.String())
	}
	return u, nil
}

func (s *AdminService) createProfile(ctx context.Context, u *userDomain.User, req CreateAccountRequest) error {
	profile, err := therapistDomain.NewProfile(u.ID(), req.Phone, req.Address, req.Bio, s.now())
	if err != nil {
		return apperror.NewValidationError(err.Error())
	}
	if req.IsAvailable != nil {
		profile.SetAvailability(*req.IsAvailable, s.now())
	}
	if err := s.profiles.Save(ctx, profile); err != nil {
		return fmt.Errorf("failed to save therapist profile: %w", err)
	}
	return nil
}

func (s *AdminService) updateProfile(ctx context.Context, userID uuid.UUID, req UpdateAccountRequest) error {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if !apperror.Is(err, apperror.KindNotFound) {
			return err
		}
		profile, err = therapistDomain.NewProfile(userID, deref(req.Phone), deref(req.Address), deref(req.Bio), s.now())
		if err != nil {
			return apperror.NewValidationError(err.Error())
		}
		if req.IsAvailable != nil {
			profile.SetAvailability(*req.IsAvailable, s.now())
		}
		return s.profiles.Save(ctx, profile)
	}

	if req.Phone != nil || req.Address != nil || req.Bio != nil {
		if err := profile.Update(req.Phone, req.Address, req.Bio, s.now()); err != nil {
			return apperror.NewValidationError(err.Error())
		}
		if err := s.profiles.Update(ctx, profile); err != nil {
			return err
		}
	}
	if req.IsAvailable != nil && *req.IsAvailable != profile.IsAvailable() {
		return s.profiles.SetAvailability(ctx, userID, *req.IsAvailable, s.now())
	}
	return nil
}

func (s *AdminService) imageURL() urlFunc {
	if s.store == nil {
		return nil
	}
	return s.store.URL
}

func (s *AdminService) present(ctx context.Context, u *userDomain.User) (*UserDTO, error) {
	dto := toUserDTO(u, s.imageURL())
	if u.Role() == identity.RoleTherapist {
		profile, err := s.profiles.FindByUserID(ctx, u.ID())
		if err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}
		dto = withProfile(dto, profile)
	}
	return &dto, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
