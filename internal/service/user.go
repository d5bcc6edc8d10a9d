package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/model"
	"shop-service/internal/store"
	"shop-service/pkg/config"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

// UserService manages accounts and issues login tokens.
type UserService struct {
	store   *store.Store
	jwt     *jwtutil.JWTUtil
	hasher  *auth.PasswordHasher
	metrics *prometheus.Metrics
}

// NewUserService creates a UserService.
func NewUserService(st *store.Store, jwt *jwtutil.JWTUtil, hasher *auth.PasswordHasher, metrics *prometheus.Metrics) *UserService {
	return &UserService{
		store:   st,
		jwt:     jwt,
		hasher:  hasher,
		metrics: metrics,
	}
}

// RegisterInput holds a sign-up request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UserPatch holds the fields to change; nil fields are kept.
type UserPatch struct {
	Name     *string
	Email    *string
	Password *string
	Role     *model.Role
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register creates a regular user account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("name, email and password are required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	user := &model.User{
		Name:   name,
		Email:  email,
		Role:   model.RoleUser,
		Status: model.UserActive,
	}
	if err := s.createUser(ctx, user, in.Password); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("User registered", zap.Uint("user_id", user.ID), zap.String("email", user.Email))
	return user, nil
}

// Login verifies credentials and issues a token. Blocked users are rejected.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	log := logger.FromContext(ctx)
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, internalError(ctx, "Failed to find user", err)
	}
	if user == nil || !s.hasher.Verify(password, user.Password) {
		s.metrics.RecordAuthError("invalid_credentials")
		log.Warn("Login failed", zap.String("email", email))
		return nil, apperr.Unauthorized("invalid email or password")
	}
	if user.IsBlocked() {
		s.metrics.RecordAuthError("blocked_user")
		log.Warn("Blocked user attempted login", zap.Uint("user_id", user.ID))
		return nil, apperr.Forbidden("account is blocked")
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, internalError(ctx, "Failed to generate token", err)
	}

	log.Info("User logged in", zap.Uint("user_id", user.ID))
	return &LoginResult{Token: token, User: user}, nil
}

// ListUsers returns one page of users.
func (s *UserService) ListUsers(ctx context.Context, page store.Page) ([]model.User, int64, error) {
	users, total, err := s.store.Users().List(ctx, page)
	if err != nil {
		return nil, 0, internalError(ctx, "Failed to list users", err)
	}
	return users, total, nil
}

// GetUser returns a user the caller may see: themselves, or anyone for an admin.
func (s *UserService) GetUser(ctx context.Context, p auth.Principal, id uint) (*model.User, error) {
	if !p.CanAccess(id) {
		return nil, apperr.Forbidden("you can only view your own account")
	}
	return s.findUser(ctx, id)
}

// UpdateUser changes a user's profile. Only admins may change roles.
func (s *UserService) UpdateUser(ctx context.Context, p auth.Principal, id uint, patch UserPatch) (*model.User, error) {
	if !p.CanAccess(id) {
		return nil, apperr.Forbidden("you can only update your own account")
	}
	if patch.Role != nil && !p.IsAdmin() {
		return nil, apperr.Forbidden("only admins can change roles")
	}

	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		user.Name = name
	}
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		taken, err := s.store.Users().EmailTaken(ctx, email, user.ID)
		if err != nil {
			return nil, internalError(ctx, "Failed to check email", err)
		}
		if taken {
			return nil, apperr.Conflict("email already registered")
		}
		user.Email = email
	}
	if patch.Password != nil {
		if len(*patch.Password) < minPasswordLength {
			return nil, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, internalError(ctx, "Failed to hash password", err)
		}
		user.Password = hash
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, apperr.Validation("invalid role")
		}
		user.Role = *patch.Role
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("email already registered")
		}
		return nil, internalError(ctx, "Failed to update user", err)
	}

	logger.FromContext(ctx).Info("User updated", zap.Uint("user_id", user.ID), zap.Uint("by", p.UserID))
	return user, nil
}

// DeleteUser removes a non-admin user without orders, with their cart and comments.
func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		user, err := tx.Users().Find(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return userNotFound(id)
		}
		if err != nil {
			return err
		}
		if user.IsAdmin() {
			return apperr.Conflict("admin accounts cannot be deleted")
		}

		hasOrders, err := tx.Orders().HasUserOrders(ctx, id)
		if err != nil {
			return err
		}
		if hasOrders {
			return apperr.Conflict("user has orders and cannot be deleted")
		}

		if err := tx.Carts().Clear(ctx, id); err != nil {
			return err
		}
		if err := tx.Comments().DeleteByUser(ctx, id); err != nil {
			return err
		}
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		return internalError(ctx, "Failed to delete user", err)
	}

	logger.FromContext(ctx).Info("User deleted", zap.Uint("user_id", id))
	return nil
}

// ToggleStatus flips a non-admin user between active and blocked.
func (s *UserService) ToggleStatus(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return nil, apperr.Conflict("admin accounts cannot be blocked")
	}

	if user.IsBlocked() {
		user.Status = model.UserActive
	} else {
		user.Status = model.UserBlocked
	}
	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, internalError(ctx, "Failed to update user status", err)
	}

	logger.FromContext(ctx).Info("User status changed", zap.Uint("user_id", user.ID), zap.String("status", string(user.Status)))
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *UserService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	log := logger.FromContext(ctx)
	if cfg.Password == "" {
		log.Warn("ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	email := normalizeEmail(cfg.Email)
	if err := validateEmail(email); err != nil {
		return fmt.Errorf("invalid ADMIN_EMAIL: %w", err)
	}

	_, err := s.store.Users().FindByEmail(ctx, email)
	if err == nil {
		log.Info("Admin account already exists", zap.String("email", email))
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	admin := &model.User{
		Name:   cfg.Name,
		Email:  email,
		Role:   model.RoleAdmin,
		Status: model.UserActive,
	}
	if err := s.createUser(ctx, admin, cfg.Password); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	log.Info("Admin account created", zap.Uint("user_id", admin.ID), zap.String("email", email))
	return nil
}

func (s *UserService) createUser(ctx context.Context, user *model.User, password string) error {
	taken, err := s.store.Users().EmailTaken(ctx, user.Email, 0)
	if err != nil {
		return internalError(ctx, "Failed to check email", err)
	}
	if taken {
		return apperr.Conflict("email already registered")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return internalError(ctx, "Failed to hash password", err)
	}
	user.Password = hash

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict("email already registered")
		}
		return internalError(ctx, "Failed to create user", err)
	}
	return nil
}

func (s *UserService) findUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.store.Users().Find(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, userNotFound(id)
	}
	if err != nil {
		return nil, internalError(ctx, "Failed to get user", err)
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return apperr.Validation("invalid email address")
	}
	return nil
}

func userNotFound(id uint) error {
	return apperr.NotFound(fmt.Sprintf("user %d not found", id))
}
