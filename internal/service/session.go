// Package service implements the session lifecycle: signup, login, refresh,
// logout and profile lookup.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/sessionauth/internal/auth"
	"github.com/utafrali/sessionauth/internal/domain"
	"github.com/utafrali/sessionauth/internal/repository"
	apperrors "github.com/utafrali/sessionauth/pkg/errors"
)

// Client-facing messages for rejected credentials.
const (
	MsgUserExists          = "User already exists"
	MsgInvalidCredentials  = "Invalid email or password"
	MsgNoRefreshToken      = "No refresh token provided"
	MsgInvalidRefreshToken = "Invalid refresh token"
	MsgPasswordTooLong     = "Password must be at most 72 bytes"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// EventPublisher publishes session lifecycle events. Failures are logged by
// the service and never fail the operation.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, user *domain.User) error
	PublishSessionStarted(ctx context.Context, userID, method string) error
	PublishSessionEnded(ctx context.Context, userID string) error
}

// SessionService issues, rotates and revokes session credentials.
type SessionService struct {
	users      repository.UserRepository
	tokens     repository.RefreshTokenStore
	minter     *auth.Minter
	events     EventPublisher
	bcryptCost int
	logger     *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(
	users repository.UserRepository,
	tokens repository.RefreshTokenStore,
	minter *auth.Minter,
	events EventPublisher,
	bcryptCost int,
	logger *slog.Logger,
) *SessionService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &SessionService{
		users:      users,
		tokens:     tokens,
		minter:     minter,
		events:     events,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// SignupInput holds the parameters for creating an account.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the parameters for logging in.
type LoginInput struct {
	Email    string
	Password string
}

// Signup creates a user and starts a session for it. An existing email is
// rejected before anything is written. A user created without a persisted
// refresh token is left in place; logging in recovers it.
func (s *SessionService) Signup(ctx context.Context, input SignupInput) (*domain.User, domain.TokenPair, error) {
	if len(input.Password) > maxPasswordBytes {
		return nil, domain.TokenPair{}, apperrors.InvalidInput(MsgPasswordTooLong)
	}

	existing, err := s.users.GetByEmail(ctx, input.Email)
	switch {
	case err == nil && existing != nil:
		authFailures.WithLabelValues("signup", "user_exists").Inc()
		return nil, domain.TokenPair{}, apperrors.AlreadyExists(MsgUserExists)
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return nil, domain.TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, domain.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			authFailures.WithLabelValues("signup", "user_exists").Inc()
			return nil, domain.TokenPair{}, err
		}
		return nil, domain.TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.events.PublishUserRegistered(ctx, user); err != nil {
		s.logPublishFailure(ctx, "user.registered", user.ID, err)
	}

	pair, err := s.startSession(ctx, user.ID, domain.SessionMethodSignup)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	s.logger.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
	return user, pair, nil
}

// Login checks email and password and starts a session. An unknown email and
// a wrong password are reported identically.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*domain.User, domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			authFailures.WithLabelValues("login", "unknown_email").Inc()
			return nil, domain.TokenPair{}, apperrors.InvalidInput(MsgInvalidCredentials)
		}
		return nil, domain.TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		authFailures.WithLabelValues("login", "wrong_password").Inc()
		return nil, domain.TokenPair{}, apperrors.InvalidInput(MsgInvalidCredentials)
	}

	pair, err := s.startSession(ctx, user.ID, domain.SessionMethodLogin)
	if err != nil {
		return nil, domain.TokenPair{}, err
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return user, pair, nil
}

// Logout revokes the session identified by refreshToken. A missing token and
// a token that fails verification both mean there is no session to end, so
// neither is an error and the store is not called. Only a store failure
// is returned.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	userID, err := s.minter.VerifyRefresh(refreshToken)
	if err != nil {
		authFailures.WithLabelValues("logout", "invalid_token").Inc()
		s.logger.WarnContext(ctx, "logout with invalid refresh token",
			slog.String("error", err.Error()),
		)
		return nil
	}

	if err := s.tokens.Delete(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	sessionsEnded.Inc()

	if err := s.events.PublishSessionEnded(ctx, userID); err != nil {
		s.logPublishFailure(ctx, "session.ended", userID, err)
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// Refresh rotates the token pair. refreshToken must verify and match the
// stored token for its user.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	if refreshToken == "" {
		authFailures.WithLabelValues("refresh", "missing_token").Inc()
		return domain.TokenPair{}, apperrors.Unauthorized(MsgNoRefreshToken)
	}

	userID, err := s.minter.VerifyRefresh(refreshToken)
	if err != nil {
		authFailures.WithLabelValues("refresh", "invalid_token").Inc()
		s.logger.WarnContext(ctx, "refresh with invalid token", slog.String("error", err.Error()))
		return domain.TokenPair{}, apperrors.Unauthorized(MsgInvalidRefreshToken)
	}

	stored, err := s.tokens.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			authFailures.WithLabelValues("refresh", "revoked").Inc()
			return domain.TokenPair{}, apperrors.Unauthorized(MsgInvalidRefreshToken)
		}
		return domain.TokenPair{}, fmt.Errorf("load refresh token: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		authFailures.WithLabelValues("refresh", "superseded").Inc()
		s.logger.WarnContext(ctx, "refresh token does not match stored token",
			slog.String("user_id", userID),
		)
		return domain.TokenPair{}, apperrors.Unauthorized(MsgInvalidRefreshToken)
	}

	return s.startSession(ctx, userID, domain.SessionMethodRefresh)
}

// Profile returns the user behind an authenticated request.
func (s *SessionService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}

// startSession mints a pair and persists the refresh half, overwriting any
// previous session of the user.
func (s *SessionService) startSession(ctx context.Context, userID, method string) (domain.TokenPair, error) {
	pair, err := s.minter.Mint(userID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("mint tokens: %w", err)
	}

	if err := s.tokens.Put(ctx, userID, pair.RefreshToken); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	sessionsStarted.WithLabelValues(method).Inc()

	if err := s.events.PublishSessionStarted(ctx, userID, method); err != nil {
		s.logPublishFailure(ctx, "session.started", userID, err)
	}
	return pair, nil
}

func (s *SessionService) logPublishFailure(ctx context.Context, eventType, userID string, err error) {
	s.logger.ErrorContext(ctx, "failed to publish "+eventType+" event",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
}
