// Package transport carries session credentials between the service and the
// browser as cookies.
package transport

import (
	"net/http"

	"github.com/utafrali/sessionauth/internal/domain"
)

// Cookie names read and written by the service.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Cookies writes and reads the token pair. Every cookie is HttpOnly,
// SameSite=Strict and scoped to "/".
type Cookies struct {
	ttl    domain.TokenTTL
	secure bool
}

// NewCookies returns a transport whose cookie lifetimes follow ttl. secure sets
// the Secure attribute and is expected to be true only in production.
func NewCookies(ttl domain.TokenTTL, secure bool) *Cookies {
	return &Cookies{ttl: ttl, secure: secure}
}

// Attach sets both token cookies on the response.
func (c *Cookies) Attach(w http.ResponseWriter, pair domain.TokenPair) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, pair.AccessToken, int(c.ttl.Access.Seconds())))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, pair.RefreshToken, int(c.ttl.Refresh.Seconds())))
}

// Clear expires both token cookies.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, "", -1))
}

// RefreshToken returns the refresh cookie value, or "" when absent.
func (c *Cookies) RefreshToken(r *http.Request) string {
	return value(r, RefreshTokenCookie)
}

// AccessToken returns the access cookie value, or "" when absent.
func (c *Cookies) AccessToken(r *http.Request) string {
	return value(r, AccessTokenCookie)
}

func (c *Cookies) cookie(name, val string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    val,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func value(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
