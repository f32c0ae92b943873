package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/sessionauth/internal/domain"
	apperrors "github.com/utafrali/sessionauth/pkg/errors"
)

const issuer = "sessionauth"

// Claims is the payload of both token kinds.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Minter issues and verifies access/refresh token pairs. Each kind is signed
// with its own HS256 secret, so a token of one kind never verifies as the other.
type Minter struct {
	accessSecret  []byte
	refreshSecret []byte
	ttl           domain.TokenTTL
	now           func() time.Time
}

// Option configures a Minter.
type Option func(*Minter)

// WithClock replaces time.Now for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Minter) { m.now = now }
}

// NewMinter validates the secrets and returns a Minter. Empty or identical
// secrets are configuration errors.
func NewMinter(accessSecret, refreshSecret string, ttl domain.TokenTTL, opts ...Option) (*Minter, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	if ttl.Access <= 0 || ttl.Refresh <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive, got access=%s refresh=%s", ttl.Access, ttl.Refresh)
	}

	m := &Minter{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		ttl:           ttl,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured token lifetimes.
func (m *Minter) TTL() domain.TokenTTL {
	return m.ttl
}

// Mint issues a new access and refresh token for userID.
func (m *Minter) Mint(userID string) (domain.TokenPair, error) {
	if userID == "" {
		return domain.TokenPair{}, apperrors.InvalidInput("user id is required to mint tokens")
	}

	now := m.now().UTC()

	access, err := m.sign(userID, now, m.ttl.Access, m.accessSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := m.sign(userID, now, m.ttl.Refresh, m.refreshSecret)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess returns the user ID carried by a valid access token.
func (m *Minter) VerifyAccess(token string) (string, error) {
	claims, err := m.parse(token, m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("verify access token: %w", err)
	}
	return claims.UserID, nil
}

// VerifyRefresh returns the user ID carried by a valid refresh token.
func (m *Minter) VerifyRefresh(token string) (string, error) {
	claims, err := m.parse(token, m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("verify refresh token: %w", err)
	}
	return claims.UserID, nil
}

func (m *Minter) sign(userID string, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Minter) parse(token string, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, errors.Join(apperrors.ErrInvalidToken, errors.New("token is empty"))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(apperrors.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, errors.Join(apperrors.ErrInvalidToken, errors.New("token carries no user id"))
	}
	return claims, nil
}
