package domain

import "time"

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenPair is always issued as a unit.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenTTL holds the validity windows of the two tokens. The refresh window is
// also the TTL of the stored refresh token and the refresh cookie's Max-Age.
type TokenTTL struct {
	Access  time.Duration
	Refresh time.Duration
}

// DefaultTokenTTL returns 15 minutes for access and 7 days for refresh.
func DefaultTokenTTL() TokenTTL {
	return TokenTTL{Access: DefaultAccessTTL, Refresh: DefaultRefreshTTL}
}
