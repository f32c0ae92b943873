package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/sessionauth/internal/auth"
	"github.com/utafrali/sessionauth/internal/domain"
	apperrors "github.com/utafrali/sessionauth/pkg/errors"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// --- Mock Refresh Token Store ---

type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) Put(ctx context.Context, userID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *mockTokenStore) Get(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *mockTokenStore) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Event Publisher ---

type mockEvents struct {
	mock.Mock
}

func (m *mockEvents) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockEvents) PublishSessionStarted(ctx context.Context, userID, method string) error {
	return m.Called(ctx, userID, method).Error(0)
}

func (m *mockEvents) PublishSessionEnded(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// --- Test Helpers ---

type fixture struct {
	svc    *SessionService
	users  *mockUserRepository
	tokens *mockTokenStore
	events *mockEvents
	minter *auth.Minter
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	minter, err := auth.NewMinter(
		"access-secret-access-secret-0001",
		"refresh-secret-refresh-secret-01",
		domain.DefaultTokenTTL(),
	)
	require.NoError(t, err)

	f := &fixture{
		users:  new(mockUserRepository),
		tokens: new(mockTokenStore),
		events: new(mockEvents),
		minter: minter,
	}
	f.svc = NewSessionService(f.users, f.tokens, minter, f.events, bcrypt.MinCost, newTestLogger())
	return f
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func existingUser(t *testing.T) *domain.User {
	return &domain.User{
		ID:           "u-1",
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: hashed(t, "correct horse"),
		Role:         domain.RoleCustomer,
	}
}

// --- Signup ---

func TestSignup_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(nil, apperrors.NotFound("user", "ada@example.com"))
	f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { args.Get(1).(*domain.User).ID = "u-new" }).
		Return(nil)
	f.tokens.On("Put", ctx, "u-new", mock.AnythingOfType("string")).Return(nil)
	f.events.On("PublishUserRegistered", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
	f.events.On("PublishSessionStarted", ctx, "u-new", domain.SessionMethodSignup).Return(nil)

	before := testutil.ToFloat64(sessionsStarted.WithLabelValues(domain.SessionMethodSignup))

	user, pair, err := f.svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	assert.Equal(t, "u-new", user.ID)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")))

	id, err := f.minter.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u-new", id)
	f.tokens.AssertCalled(t, "Put", ctx, "u-new", pair.RefreshToken)

	assert.Equal(t, before+1, testutil.ToFloat64(sessionsStarted.WithLabelValues(domain.SessionMethodSignup)))
	f.users.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestSignup_ExistingEmailHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(existingUser(t), nil)

	_, pair, err := f.svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Equal(t, 400, apperrors.HTTPStatus(err))
	assert.Empty(t, pair.AccessToken)

	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.tokens.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignup_CreateRaceReportsExisting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(nil, apperrors.NotFound("user", "ada@example.com"))
	f.users.On("Create", ctx, mock.Anything).Return(apperrors.AlreadyExists(MsgUserExists))

	_, _, err := f.svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	f.tokens.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignup_PasswordLimitCountsBytes(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Signup(context.Background(), SignupInput{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: strings.Repeat("é", 40),
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Status)
	assert.Equal(t, MsgPasswordTooLong, appErr.Message)
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSignup_SingleCharacterPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "a@x.com").Return(nil, apperrors.NotFound("user", "a@x.com"))
	f.users.On("Create", ctx, mock.Anything).Return(nil)
	f.tokens.On("Put", ctx, mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishUserRegistered", ctx, mock.Anything).Return(nil)
	f.events.On("PublishSessionStarted", ctx, mock.Anything, domain.SessionMethodSignup).Return(nil)

	_, _, err := f.svc.Signup(ctx, SignupInput{Name: "A", Email: "a@x.com", Password: "p"})
	assert.NoError(t, err)
}

func TestSignup_LookupFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(nil, errors.New("connection refused"))

	_, _, err := f.svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSignup_StoreFailureKeepsUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(nil, apperrors.NotFound("user", "ada@example.com"))
	f.users.On("Create", ctx, mock.Anything).Return(nil)
	f.events.On("PublishUserRegistered", ctx, mock.Anything).Return(nil)
	f.tokens.On("Put", ctx, mock.Anything, mock.Anything).
		Return(apperrors.ServiceUnavailable("refresh token store", errors.New("dial tcp: refused")))

	_, _, err := f.svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	f.users.AssertCalled(t, "Create", ctx, mock.Anything)
	f.events.AssertNotCalled(t, "PublishSessionStarted", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignup_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.users.On("GetByEmail", ctx, mock.Anything).Return(nil, apperrors.NotFound("user", "x"))
	f.users.On("Create", ctx, mock.Anything).Return(nil)
	f.tokens.On("Put", ctx, mock.Anything, mock.Anything).Return(nil)
	f.events.On("PublishUserRegistered", ctx, mock.Anything).Return(errors.New("broker down"))
	f.events.On("PublishSessionStarted", ctx, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	_, _, err := f.svc.Signup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "pw"})
	assert.NoError(t, err)
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.users.On("GetByEmail", ctx, "ada@example.com").Return(u, nil)
	f.tokens.On("Put", ctx, "u-1", mock.AnythingOfType("string")).Return(nil)
	f.events.On("PublishSessionStarted", ctx, "u-1", domain.SessionMethodLogin).Return(nil)

	user, pair, err := f.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	id, err := f.minter.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
	f.tokens.AssertExpectations(t)
}

func TestLogin_RejectsWithSameMessage(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		pw    string
	}{
		{
			name: "unknown email",
			setup: func(f *fixture) {
				f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, apperrors.NotFound("user", "ada@example.com"))
			},
			pw: "correct horse",
		},
		{
			name: "wrong password",
			setup: func(f *fixture) {
				f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(existingUser(t), nil)
			},
			pw: "wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, _, err := f.svc.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: tt.pw})
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, 400, appErr.Status)
			assert.Equal(t, MsgInvalidCredentials, appErr.Message)
			f.tokens.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// --- Logout ---

func TestLogout_ValidTokenDeletesEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.minter.Mint("u-1")
	require.NoError(t, err)

	f.tokens.On("Delete", ctx, "u-1").Return(nil)
	f.events.On("PublishSessionEnded", ctx, "u-1").Return(nil)

	before := testutil.ToFloat64(sessionsEnded)
	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	assert.Equal(t, before+1, testutil.ToFloat64(sessionsEnded))
	f.tokens.AssertExpectations(t)
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.minter.Mint("u-1")
	require.NoError(t, err)

	f.tokens.On("Delete", ctx, "u-1").Return(nil).Twice()
	f.events.On("PublishSessionEnded", ctx, "u-1").Return(nil)

	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	f.tokens.AssertNumberOfCalls(t, "Delete", 2)
}

func TestLogout_WithoutSessionSkipsStore(t *testing.T) {
	tests := []struct {
		name  string
		token func(f *fixture) string
	}{
		{"no token", func(*fixture) string { return "" }},
		{"garbage", func(*fixture) string { return "not-a-jwt" }},
		{"access token in refresh slot", func(f *fixture) string {
			p, _ := f.minter.Mint("u-1")
			return p.AccessToken
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			assert.NoError(t, f.svc.Logout(context.Background(), tt.token(f)))
			f.tokens.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
		})
	}
}

func TestLogout_StoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.minter.Mint("u-1")
	require.NoError(t, err)
	f.tokens.On("Delete", ctx, "u-1").Return(errors.New("redis del: i/o timeout"))

	err = f.svc.Logout(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
	f.events.AssertNotCalled(t, "PublishSessionEnded", mock.Anything, mock.Anything)
}

// --- Refresh ---

func TestRefresh_RotatesPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.minter.Mint("u-1")
	require.NoError(t, err)

	f.tokens.On("Get", ctx, "u-1").Return(old.RefreshToken, nil)
	f.tokens.On("Put", ctx, "u-1", mock.AnythingOfType("string")).Return(nil)
	f.events.On("PublishSessionStarted", ctx, "u-1", domain.SessionMethodRefresh).Return(nil)

	pair, err := f.svc.Refresh(ctx, old.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, old.RefreshToken, pair.RefreshToken)
	f.tokens.AssertCalled(t, "Put", ctx, "u-1", pair.RefreshToken)
}

func TestRefresh_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		token   func(f *fixture) string
		stored  func(f *fixture, token string)
		message string
	}{
		{
			name:    "missing",
			token:   func(*fixture) string { return "" },
			message: MsgNoRefreshToken,
		},
		{
			name:    "unverifiable",
			token:   func(*fixture) string { return "garbage" },
			message: MsgInvalidRefreshToken,
		},
		{
			name: "revoked",
			token: func(f *fixture) string {
				p, _ := f.minter.Mint("u-1")
				return p.RefreshToken
			},
			stored: func(f *fixture, _ string) {
				f.tokens.On("Get", mock.Anything, "u-1").Return("", apperrors.NotFound("refresh token", "u-1"))
			},
			message: MsgInvalidRefreshToken,
		},
		{
			name: "superseded",
			token: func(f *fixture) string {
				p, _ := f.minter.Mint("u-1")
				return p.RefreshToken
			},
			stored: func(f *fixture, _ string) {
				newer, _ := f.minter.Mint("u-1")
				f.tokens.On("Get", mock.Anything, "u-1").Return(newer.RefreshToken, nil)
			},
			message: MsgInvalidRefreshToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			token := tt.token(f)
			if tt.stored != nil {
				tt.stored(f, token)
			}

			_, err := f.svc.Refresh(context.Background(), token)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, 401, appErr.Status)
			assert.Equal(t, tt.message, appErr.Message)
			f.tokens.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRefresh_StoreFailureIsServerError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.minter.Mint("u-1")
	require.NoError(t, err)
	f.tokens.On("Get", ctx, "u-1").Return("", apperrors.ServiceUnavailable("refresh token store", errors.New("timeout")))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
}

// --- Profile ---

func TestProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := existingUser(t)

	f.users.On("GetByID", ctx, "u-1").Return(u, nil)
	f.users.On("GetByID", ctx, "u-gone").Return(nil, apperrors.NotFound("user", "u-gone"))

	got, err := f.svc.Profile(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = f.svc.Profile(ctx, "u-gone")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
