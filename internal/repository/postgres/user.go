package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/sessionauth/internal/domain"
	"github.com/utafrali/sessionauth/pkg/database"
	apperrors "github.com/utafrali/sessionauth/pkg/errors"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts u. Missing ID, role and timestamps are filled in first, and
// the email is stored lower-cased.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	if !domain.IsValidRole(u.Role) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown role %q", u.Role))
	}
	u.Email = NormalizeEmail(u.Email)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Role,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("User already exists")
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByEmail looks a user up by case-insensitive email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (u *domain.User, err error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	ctx, end := database.TraceQuery(ctx, "GetUserByEmail", query)
	defer func() { end(ignoreNotFound(err)) }()

	email = NormalizeEmail(email)
	return r.scanUser(ctx, "email", email, query, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (u *domain.User, err error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetUserByID", query)
	defer func() { end(ignoreNotFound(err)) }()

	return r.scanUser(ctx, "id", id, query, id)
}

func (r *UserRepository) scanUser(ctx context.Context, field, value, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("user", value)
		}
		return nil, fmt.Errorf("get user by %s: %w", field, err)
	}
	return &u, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// A lookup miss is an expected outcome and should not mark the span as failed.
func ignoreNotFound(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}
