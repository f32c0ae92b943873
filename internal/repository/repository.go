package repository

import (
	"context"

	"github.com/utafrali/sessionauth/internal/domain"
)

// UserRepository persists user accounts.
type UserRepository interface {
	// Create inserts a user, assigning ID and timestamps. A duplicate email
	// yields an error matching apperrors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByEmail returns apperrors.ErrNotFound when no user has the email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByID returns apperrors.ErrNotFound when the user does not exist.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// RefreshTokenStore keeps the single current refresh token of each user.
type RefreshTokenStore interface {
	// Put stores token for userID, replacing any previous token, with the
	// store's TTL.
	Put(ctx context.Context, userID, token string) error

	// Get returns the current token or apperrors.ErrNotFound.
	Get(ctx context.Context, userID string) (string, error)

	// Delete removes the token. Deleting a missing token is not an error.
	Delete(ctx context.Context, userID string) error
}
