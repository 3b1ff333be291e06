package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const (
	minPasswordLength = 6
	defaultStoreLogo  = "default-store-logo.jpg"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// AuthService handles identities and bearer tokens
type AuthService struct {
	users  UserStore
	hasher auth.PasswordHasher
	tokens auth.TokenMaker
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, hasher auth.PasswordHasher, tokens auth.TokenMaker) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: util.GetLogger(),
	}
}

// RegisterRequest represents a request to create an account
type RegisterRequest struct {
	Name     string         `json:"name" binding:"required,max=50"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=6"`
	Address  models.Address `json:"address"`
	Phone    string         `json:"phone"`
}

// LoginRequest represents a credential check
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a fresh token and the user it belongs to
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UpdateProfileRequest is a partial profile update; nil fields are kept
type UpdateProfileRequest struct {
	Name      *string           `json:"name"`
	Address   *models.Address   `json:"address"`
	Phone     *string           `json:"phone"`
	StoreInfo *models.StoreInfo `json:"store_info"`
}

// ChangePasswordRequest represents a password rotation
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

// BecomeSellerRequest upgrades a customer to a seller
type BecomeSellerRequest struct {
	StoreName   string `json:"store_name"`
	Description string `json:"description"`
}

// Register creates a customer account and signs a token for it
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	if err := validateCredentials(req.Email, req.Password); err != nil {
		util.AuthAttemptsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}
	if req.Phone != "" && !phonePattern.MatchString(req.Phone) {
		util.AuthAttemptsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, apperr.Validation("Please add a valid phone number")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Internal("failed to hash password", err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleCustomer,
		Address:      req.Address,
		Phone:        req.Phone,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			util.AuthAttemptsTotal.WithLabelValues("register", "duplicate").Inc()
			return nil, apperr.Validation("User already exists")
		}
		return nil, apperr.Internal("failed to create user", err)
	}

	util.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return s.issue(user)
}

// Login checks credentials and signs a token. Unknown emails and wrong
// passwords fail identically.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		util.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		util.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	util.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return s.issue(user)
}

// Me returns the caller's own record
func (s *AuthService) Me(ctx context.Context, p auth.Principal) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	return user, nil
}

// UpdateProfile applies a partial update. Store info is only accepted from
// sellers and is ignored otherwise.
func (s *AuthService) UpdateProfile(ctx context.Context, p auth.Principal, req *UpdateProfileRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.UpdateProfile")
	defer span.End()

	user, err := s.users.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		user.Address = *req.Address
	}
	if req.Phone != nil && *req.Phone != "" {
		if !phonePattern.MatchString(*req.Phone) {
			return nil, apperr.Validation("Please add a valid phone number")
		}
		user.Phone = *req.Phone
	}
	if req.StoreInfo != nil && user.Role == models.RoleSeller {
		user.StoreInfo = *req.StoreInfo
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storeErr(err, "User not found")
	}
	return user, nil
}

// ChangePassword replaces the credential after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, p auth.Principal, req *ChangePasswordRequest) error {
	ctx, span := util.StartSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	if len(req.NewPassword) < minPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}

	user, err := s.users.GetUserByID(ctx, p.ID)
	if err != nil {
		return storeErr(err, "User not found")
	}
	if !s.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return storeErr(err, "User not found")
	}

	s.logger.Info("Password changed", zap.String("user_id", user.ID.String()))
	return nil
}

// BecomeSeller upgrades a customer and attaches a store profile
func (s *AuthService) BecomeSeller(ctx context.Context, p auth.Principal, req *BecomeSellerRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.BecomeSeller")
	defer span.End()

	if strings.TrimSpace(req.StoreName) == "" {
		return nil, apperr.Validation("Please provide a store name")
	}

	user, err := s.users.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	if user.Role != models.RoleCustomer {
		return nil, apperr.Validation("Only customers can upgrade to seller accounts")
	}

	user.Role = models.RoleSeller
	user.StoreInfo = models.StoreInfo{
		StoreName:   strings.TrimSpace(req.StoreName),
		Description: req.Description,
		Logo:        defaultStoreLogo,
	}
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storeErr(err, "User not found")
	}

	s.logger.Info("User upgraded to seller", zap.String("user_id", user.ID.String()))
	return user, nil
}

// ResolvePrincipal verifies a bearer token and loads the identity behind
// it. The role is read from the store on every call.
func (s *AuthService) ResolvePrincipal(ctx context.Context, token string) (auth.Principal, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return auth.Principal{}, apperr.Unauthorized("Not authorized to access this route")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return auth.Principal{}, apperr.Unauthorized("Not authorized to access this route")
	}
	if err != nil {
		s.logger.Error("Failed to load principal", zap.String("user_id", claims.UserID.String()), zap.Error(err))
		return auth.Principal{}, apperr.Internal("failed to load principal", err)
	}
	return auth.Principal{ID: user.ID, Role: user.Role}, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	token, _, err := s.tokens.CreateToken(user.ID)
	if err != nil {
		return nil, apperr.Internal("failed to sign token", err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

func validateCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || !strings.Contains(email, "@") {
		return apperr.Validation("Please add a valid email")
	}
	if len(password) < minPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}
	return nil
}
