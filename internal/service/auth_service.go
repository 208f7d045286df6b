package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/observability/metrics"
	"github.com/aryan0dhankhar/leavedesk/internal/security/auth"
	"github.com/aryan0dhankhar/leavedesk/internal/security/password"
)

// AuthService handles authentication operations
type AuthService struct {
	users  domain.UserRepository
	tokens *auth.TokenManager
	logger *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	tokens *auth.TokenManager,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// LoginResult represents login response
type LoginResult struct {
	Token string `json:"token"`
}

// Login checks the credentials and issues a token carrying the user id and role
func (s *AuthService) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || pass == "" {
		return nil, domain.NewValidationError("Missing email or password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// unknown emails pay for one derivation like a wrong password does
			password.Hash(pass, email)
			s.logger.Info("login attempt with unknown email", slog.String("email", email))
			metrics.ObserveLogin("failure")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if !password.Verify(pass, user.Salt, user.PasswordHash) {
		s.logger.Info("login failed with wrong password", slog.Int64("user_id", user.ID))
		metrics.ObserveLogin("failure")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.logger.Error("failed to sign token", slog.String("error", err.Error()))
		return nil, fmt.Errorf("generate token: %w", err)
	}

	metrics.ObserveLogin("success")
	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)

	return &LoginResult{Token: token}, nil
}

// CurrentUser resolves a bearer token to the caller's profile
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*domain.Profile, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	p, err := s.tokens.Authenticate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return s.Profile(ctx, p.UserID)
}

// Profile returns the redacted profile of an already verified caller
func (s *AuthService) Profile(ctx context.Context, userID int64) (*domain.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := domain.ProfileOf(user)
	return &profile, nil
}
