package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/sessionauth/internal/domain"
	"github.com/utafrali/sessionauth/pkg/database"
	apperrors "github.com/utafrali/sessionauth/pkg/errors"
)

func newUserTestFixture(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserRepository(mock), mock
}

func sampleUser() *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:           "6f0c1f52-7a0d-4a53-9a55-0f8a2b6b1c11",
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "$2a$12$hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "created_at", "updated_at"}).
		AddRow(u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
}

func TestUserRepository_Create_FillsDefaults(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := &domain.User{Name: "Ada", Email: "  Ada@Example.COM ", PasswordHash: "$2a$12$hash"}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "Ada", "ada@example.com", "$2a$12$hash", domain.RoleCustomer, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, domain.RoleCustomer, u.Role)
	assert.False(t, u.CreatedAt.IsZero())
	assert.Equal(t, u.CreatedAt, u.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_UnknownRole(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	u := sampleUser()
	u.Role = "seller"

	err := repo.Create(context.Background(), u)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), sampleUser())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "User already exists", appErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_DBError(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), sampleUser())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert user")
	assert.NotErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	want := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(userRow(want))

	got, err := repo.GetByEmail(context.Background(), "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("nobody@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepository_GetByID(t *testing.T) {
	repo, mock := newUserTestFixture(t)
	want := sampleUser()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id = \\$1").
		WithArgs(want.ID).
		WillReturnRows(userRow(want))

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.Email, got.Email)
}

func TestUserRepository_GetByID_QueryError(t *testing.T) {
	repo, mock := newUserTestFixture(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").
		WithArgs("u-1").
		WillReturnError(errors.New("timeout"))

	_, err := repo.GetByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get user by id")
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail(" Ada@Example.com\t"))
}
