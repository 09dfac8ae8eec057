package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minPasswordLength = 6

// AuthServiceImpl implements ports.AuthService over the user directory.
type AuthServiceImpl struct {
	users    ports.UserRepository
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	now      func() time.Time
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	users ports.UserRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:    users,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// Signup creates an account. Riders get the default vehicle profile and
// start available for matching.
func (s *AuthServiceImpl) Signup(ctx context.Context, req ports.SignupRequest) (*domain.UserAccount, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" {
		return nil, apperror.Validation("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("email is invalid")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperror.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	role := req.Role
	if role == "" {
		role = domain.RoleSender
	}
	if !role.IsValid() {
		return nil, apperror.Validation("role must be sender or rider")
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.UserAccount{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Avatar:       domain.AvatarURL(name),
		Phone:        strings.TrimSpace(req.Phone),
		CreatedAt:    s.now(),
	}
	if user.IsRider() {
		user.VehicleType = domain.DefaultVehicleType
		user.PlateNumber = domain.DefaultPlateNumber
		user.IsAvailable = true
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ports.ErrDuplicateEmail) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("account created")
	return user, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(user.ID, user.Role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return &ports.LoginResult{Token: token, ExpiresAt: expiry, User: user}, nil
}

// Authenticate resolves a bearer token to the account it was issued for.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (*domain.UserAccount, error) {
	claims, err := s.tokenSvc.Validate(token)
	if err != nil {
		return nil, apperror.ErrInvalidToken()
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil || user.Role != claims.Role {
		return nil, apperror.ErrInvalidToken()
	}
	return user, nil
}

// UpdateProfile edits the caller's display name, phone and, for riders, the
// vehicle details. A new name regenerates the avatar.
func (s *AuthServiceImpl) UpdateProfile(ctx context.Context, user *domain.UserAccount, req ports.ProfileUpdate) (*domain.UserAccount, error) {
	if !user.IsRider() && (req.VehicleType != nil || req.PlateNumber != nil) {
		return nil, apperror.Validation("vehicle details apply to riders only")
	}

	updated := user.Clone()
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.Validation("name must not be empty")
		}
		updated.Name = name
		updated.Avatar = domain.AvatarURL(name)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.VehicleType != nil {
		vehicle := strings.TrimSpace(*req.VehicleType)
		if vehicle == "" {
			return nil, apperror.Validation("vehicle_type must not be empty")
		}
		updated.VehicleType = vehicle
	}
	if req.PlateNumber != nil {
		plate := strings.ToUpper(strings.TrimSpace(*req.PlateNumber))
		if plate == "" {
			return nil, apperror.Validation("plate_number must not be empty")
		}
		updated.PlateNumber = plate
	}

	if err := s.save(ctx, updated); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", updated.ID).Msg("profile updated")
	return updated, nil
}

// SetAvailability marks a rider on or off duty. Off-duty riders are skipped
// by matching; jobs they already hold are unaffected.
func (s *AuthServiceImpl) SetAvailability(ctx context.Context, user *domain.UserAccount, available bool) (*domain.UserAccount, error) {
	if !user.IsRider() {
		return nil, apperror.ErrForbidden()
	}

	updated := user.Clone()
	updated.IsAvailable = available
	if err := s.save(ctx, updated); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", updated.ID).Bool("available", available).Msg("rider availability changed")
	return updated, nil
}

func (s *AuthServiceImpl) save(ctx context.Context, u *domain.UserAccount) error {
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return apperror.ErrNotFound("User")
		}
		return apperror.InternalError(fmt.Errorf("update user: %w", err))
	}
	return nil
}
