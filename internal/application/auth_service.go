package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/zenbook/service-booking/internal/domain/identity"
	therapistDomain "github.com/zenbook/service-booking/internal/domain/therapist"
	userDomain "github.com/zenbook/service-booking/internal/domain/user"
	"github.com/zenbook/service-booking/internal/messages"
	"github.com/zenbook/service-booking/internal/platform/apperror"
	"github.com/zenbook/service-booking/internal/platform/auth"
)

const (
	maxOTPAttempts = 5
	otpDigits      = 6
	resetTokenSize = 32
)

const errInvalidOTP = "Invalid or expired verification code."

// AuthConfig tunes the authentication flows.
type AuthConfig struct {
	FrontendURL string
	OTPTTL      time.Duration
	ResetTTL    time.Duration
	HashCost    int
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.OTPTTL <= 0 {
		c.OTPTTL = 10 * time.Minute
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = 60 * time.Minute
	}
	if c.HashCost == 0 {
		c.HashCost = bcrypt.DefaultCost
	}
	return c
}

// RegisterRequest holds the self-registration form.
type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required"`
}

// ResetPasswordRequest holds the password reset form.
type ResetPasswordRequest struct {
	Token                string `json:"token" binding:"required"`
	Email                string `json:"email" binding:"required,email"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required"`
}

// RegisterResult is returned after self-registration.
type RegisterResult struct {
	User                 UserDTO `json:"user"`
	RequiresVerification bool    `json:"requires_verification"`
}

// LoginResult is a token pair plus the signed-in account.
type LoginResult struct {
	*auth.TokenPair
	User UserDTO `json:"user"`
}

// AuthService handles registration, verification, sessions and password recovery.
type AuthService struct {
	users    userDomain.Repository
	profiles therapistDomain.ProfileRepository
	tokens   userDomain.TokenStore
	jwt      *auth.JWTManager
	cfg      AuthConfig
	url      urlFunc
	events   eventSink
	now      Clock
	logger   *zap.Logger

	// generateOTP returns a fresh numeric verification code.
	generateOTP func() (string, error)
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users userDomain.Repository,
	profiles therapistDomain.ProfileRepository,
	tokens userDomain.TokenStore,
	jwt *auth.JWTManager,
	cfg AuthConfig,
	url func(path string) string,
	publisher EventPublisher,
	now Clock,
	logger *zap.Logger,
) *AuthService {
	if now == nil {
		now = SystemClock
	}
	return &AuthService{
		users:       users,
		profiles:    profiles,
		tokens:      tokens,
		jwt:         jwt,
		cfg:         cfg.withDefaults(),
		url:         url,
		events:      eventSink{publisher: publisher, logger: logger},
		now:         now,
		logger:      logger,
		generateOTP: randomDigits,
	}
}

// Register creates an unverified customer account and sends a verification code.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	email := userDomain.NormalizeEmail(req.Email)
	errs := userDomain.ValidateIdentity(req.Name, email)
	errs = append(errs, userDomain.ValidatePassword(req.Password, req.PasswordConfirmation)...)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := ensureEmailFree(ctx, s.users, email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	u, err := userDomain.NewUser(req.Name, email, hash, identity.RoleCustomer, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID().String()))

	if err := s.sendOTP(ctx, u); err != nil {
		return nil, err
	}
	return &RegisterResult{User: toUserDTO(u, s.url), RequiresVerification: true}, nil
}

// VerifyOTP confirms an email address with the code sent to it.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (*UserDTO, error) {
	email = userDomain.NormalizeEmail(email)
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, otpError(errInvalidOTP)
		}
		return nil, err
	}
	if u.IsVerified() {
		dto := toUserDTO(u, s.url)
		return &dto, nil
	}

	attempts, err := s.tokens.Incr(ctx, otpAttemptsKey(email), s.cfg.OTPTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to count otp attempts: %w", err)
	}
	if attempts > maxOTPAttempts {
		if err := s.tokens.Delete(ctx, otpKey(email), otpAttemptsKey(email)); err != nil {
			return nil, fmt.Errorf("failed to clear otp: %w", err)
		}
		return nil, otpError("Too many attempts. Please request a new verification code.")
	}

	ok, err := s.matchStored(ctx, otpKey(email), strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, otpError(errInvalidOTP)
	}

	u.MarkVerified(s.now())
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	if err := s.tokens.Delete(ctx, otpKey(email), otpAttemptsKey(email)); err != nil {
		s.logger.Error("failed to clear otp", zap.Error(err))
	}

	s.logger.Info("email verified", zap.String("user_id", u.ID().String()))
	dto := toUserDTO(u, s.url)
	return &dto, nil
}

// ResendOTP issues a new verification code, replacing the previous one.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, userDomain.NormalizeEmail(email))
	if err != nil {
		return err
	}
	if u.IsVerified() {
		var errs apperror.FieldErrors
		errs.Add("email", "Email is already verified.")
		return errs.Err()
	}
	return s.sendOTP(ctx, u)
}

// Login checks credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.FindByEmail(ctx, userDomain.NormalizeEmail(email))
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.NewUnauthenticatedError("Invalid credentials")
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash()), []byte(password)) != nil {
		return nil, apperror.NewUnauthenticatedError("Invalid credentials")
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", zap.String("user_id", u.ID().String()))
	dto, err := s.present(ctx, u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: pair, User: dto}, nil
}

// Refresh rotates a registered refresh token into a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperror.NewUnauthenticatedError("Invalid refresh token")
	}

	owner, err := s.tokens.Get(ctx, refreshKey(claims.ID))
	if err != nil {
		if errors.Is(err, userDomain.ErrTokenNotFound) {
			return nil, apperror.NewUnauthenticatedError("Invalid refresh token")
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if owner != claims.UserID.String() {
		return nil, apperror.NewUnauthenticatedError("Invalid refresh token")
	}
	if err := s.tokens.Delete(ctx, refreshKey(claims.ID)); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil, apperror.NewUnauthenticatedError("Invalid refresh token")
		}
		return nil, err
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return nil, err
	}
	dto, err := s.present(ctx, u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{TokenPair: pair, User: dto}, nil
}

// Logout revokes a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return apperror.NewUnauthenticatedError("Invalid refresh token")
	}
	if err := s.tokens.Delete(ctx, refreshKey(claims.ID)); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.UserID.String()))
	return nil
}

// ForgotPassword sends a reset link to a known address. Unknown addresses succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = userDomain.NormalizeEmail(email)
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := randomHex(resetTokenSize)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	hash, err := s.hash(token)
	if err != nil {
		return err
	}
	if err := s.tokens.Put(ctx, resetKey(email), hash, s.cfg.ResetTTL); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	s.events.publish(ctx, messages.TopicNotificationEvents, messages.NotificationPasswordReset, u.ID(), messages.PasswordResetNotification{
		Email:            u.Email(),
		Name:             u.Name(),
		ResetURL:         s.resetURL(token, email),
		ExpiresInMinutes: int(s.cfg.ResetTTL / time.Minute),
	})
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email := userDomain.NormalizeEmail(req.Email)
	if err := userDomain.ValidatePassword(req.Password, req.PasswordConfirmation).Err(); err != nil {
		return err
	}

	ok, err := s.matchStored(ctx, resetKey(email), req.Token)
	if err != nil {
		return err
	}
	if !ok {
		var errs apperror.FieldErrors
		errs.Add("token", "This password reset token is invalid.")
		return errs.Err()
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return err
	}
	u.SetPasswordHash(hash, s.now())
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	if err := s.tokens.Delete(ctx, resetKey(email)); err != nil {
		s.logger.Error("failed to clear reset token", zap.Error(err))
	}

	s.logger.Info("password reset", zap.String("user_id", u.ID().String()))
	return nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, p identity.Principal) (*UserDTO, error) {
	if p.IsZero() {
		return nil, apperror.NewUnauthenticatedError("Unauthenticated.")
	}
	u, err := s.users.FindByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	dto, err := s.present(ctx, u)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// --- Helpers ---

func (s *AuthService) sendOTP(ctx context.Context, u *userDomain.User) error {
	code, err := s.generateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}
	hash, err := s.hash(code)
	if err != nil {
		return err
	}
	if err := s.tokens.Put(ctx, otpKey(u.Email()), hash, s.cfg.OTPTTL); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	if err := s.tokens.Delete(ctx, otpAttemptsKey(u.Email())); err != nil {
		return fmt.Errorf("failed to reset otp attempts: %w", err)
	}

	s.events.publish(ctx, messages.TopicNotificationEvents, messages.NotificationEmailOTP, u.ID(), messages.EmailOTPNotification{
		Email:            u.Email(),
		Name:             u.Name(),
		Code:             code,
		ExpiresInMinutes: int(s.cfg.OTPTTL / time.Minute),
	})
	return nil
}

// matchStored compares secret with the bcrypt hash stored under key. A missing key never matches.
func (s *AuthService) matchStored(ctx context.Context, key, secret string) (bool, error) {
	hash, err := s.tokens.Get(ctx, key)
	if err != nil {
		if errors.Is(err, userDomain.ErrTokenNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load token: %w", err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil, nil
}

func (s *AuthService) issue(ctx context.Context, u *userDomain.User) (*auth.TokenPair, error) {
	pair, err := s.jwt.GenerateTokenPair(u.ID(), u.Role().String())
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}
	if err := s.tokens.Put(ctx, refreshKey(pair.RefreshID), u.ID().String(), s.jwt.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("failed to register refresh token: %w", err)
	}
	return pair, nil
}

func (s *AuthService) present(ctx context.Context, u *userDomain.User) (UserDTO, error) {
	dto := toUserDTO(u, s.url)
	if u.Role() != identity.RoleTherapist {
		return dto, nil
	}
	profile, err := s.profiles.FindByUserID(ctx, u.ID())
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return UserDTO{}, err
	}
	return withProfile(dto, profile), nil
}

func (s *AuthService) hash(secret string) (string, error) {
	return hashPassword(secret, s.cfg.HashCost)
}

func (s *AuthService) resetURL(token, email string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password?" + q.Encode()
}

func hashPassword(secret string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

func otpError(message string) error {
	var errs apperror.FieldErrors
	errs.Add("otp", message)
	return errs.Err()
}

func otpKey(email string) string         { return "otp:" + email }
func otpAttemptsKey(email string) string { return "otp_attempts:" + email }
func resetKey(email string) string       { return "reset:" + email }
func refreshKey(jti string) string       { return "refresh:" + jti }

func randomDigits() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

func randomHex(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
