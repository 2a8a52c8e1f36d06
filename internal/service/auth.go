package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/traildig/traildig-server/internal/auth"
	"github.com/traildig/traildig-server/internal/domain"
	domainerrors "github.com/traildig/traildig-server/internal/errors"
	"github.com/traildig/traildig-server/internal/id"
	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/normalize"
	"github.com/traildig/traildig-server/internal/store"
	"github.com/traildig/traildig-server/internal/validation"
)

// AuthService handles signup, login and token verification.
type AuthService struct {
	store          store.Store
	tokenService   *auth.TokenService
	sessionService *SessionService
	validator      *validation.Validator
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store store.Store,
	tokenService *auth.TokenService,
	sessionService *SessionService,
	m *metrics.Metrics,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:          store,
		tokenService:   tokenService,
		sessionService: sessionService,
		validator:      validation.New(),
		metrics:        m,
		logger:         orDiscard(logger),
	}
}

// RegisterRequest contains the data for creating a new account.
type RegisterRequest struct {
	Email      string          `json:"email" validate:"required,email,max=254"`
	Password   string          `json:"password" validate:"required,min=8,max=1024"`
	FirstName  string          `json:"first_name" validate:"max=150"`
	LastName   string          `json:"last_name" validate:"max=150"`
	DeviceInfo auth.DeviceInfo `json:"device_info"`
	IPAddress  string          `json:"-"`
}

// LoginRequest contains credentials for authentication.
type LoginRequest struct {
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required"`
	DeviceInfo auth.DeviceInfo `json:"device_info"`
	IPAddress  string          `json:"-"`
}

// RefreshRequest contains a refresh token for token rotation.
type RefreshRequest struct {
	RefreshToken string          `json:"refresh_token" validate:"required"`
	DeviceInfo   auth.DeviceInfo `json:"device_info"`
	IPAddress    string          `json:"-"`
}

// AuthResponse contains the authenticated user and their tokens.
type AuthResponse struct {
	User *domain.User `json:"user"`
	SessionResponse
}

// Register creates a member account and logs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.newMember(ctx, req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionService.CreateSession(ctx, user, req.DeviceInfo, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID, "email", user.Email)
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// CreateMember creates a member account without opening a session.
// The seed command uses it to load fixtures.
func (s *AuthService) CreateMember(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	req := RegisterRequest{Email: strings.TrimSpace(email), Password: password}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	return s.newMember(ctx, req.Email, password, firstName, lastName)
}

func (s *AuthService) newMember(ctx context.Context, email, password, firstName, lastName string) (*domain.User, error) {
	user := &domain.User{
		Email:     email,
		Role:      domain.RoleMember,
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}
	user.DisplayName = user.FullName()
	if err := s.createUser(ctx, user, password); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateSuperuser creates an administrator account. Used by the CLI.
func (s *AuthService) CreateSuperuser(ctx context.Context, email, password string) (*domain.User, error) {
	if len(password) < 8 {
		return nil, domainerrors.InvalidField("password", "must be at least 8 characters", nil)
	}

	user := &domain.User{Email: email, Role: domain.RoleAdmin, IsRoot: true}
	if err := s.createUser(ctx, user, password); err != nil {
		return nil, err
	}

	s.logger.Info("Superuser created", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// createUser normalizes the email, hashes the password, assigns an id and
// stores user.
func (s *AuthService) createUser(ctx context.Context, user *domain.User, password string) error {
	normalized, err := normalize.Email(user.Email)
	if err != nil {
		return domainerrors.InvalidField("email", "The email must be set", user.Email)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return fmt.Errorf("generate user ID: %w", err)
	}

	user.ID = userID
	user.Email = normalized
	user.PasswordHash = passwordHash
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return domainerrors.AlreadyExists("email already in use")
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Login verifies credentials and opens a new session for the device.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Match the cost of a failed password check.
			_, _ = auth.HashPassword(req.Password)
			s.metrics.LoginAttempt(false)
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.metrics.LoginAttempt(false)
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	if auth.NeedsRehash(user.PasswordHash, auth.DefaultPasswordParams) {
		if hash, hashErr := auth.HashPassword(req.Password); hashErr == nil {
			user.PasswordHash = hash
		}
	}
	user.LastLoginAt = time.Now()
	user.Touch()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}

	session, err := s.sessionService.CreateSession(ctx, user, req.DeviceInfo, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.metrics.LoginAttempt(true)
	s.logger.Info("User logged in", "user_id", user.ID, "session_id", session.SessionID)
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// RefreshTokens rotates the token pair of an existing session.
func (s *AuthService) RefreshTokens(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, user, err := s.sessionService.RefreshSession(ctx, req.RefreshToken, req.DeviceInfo, req.IPAddress)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, SessionResponse: *session}, nil
}

// Logout ends a session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domainerrors.InvalidField("session_id", "is required", nil)
	}
	return s.sessionService.DeleteSession(ctx, sessionID)
}

// VerifyAccessToken validates a token and loads the user it belongs to.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, domainerrors.Unauthorized("user not found").WithCause(err)
	}
	return user, claims, nil
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
