package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/sessionauth/pkg/httputil"
	"github.com/utafrali/sessionauth/pkg/logger"
)

type contextKeyType string

const userIDKey contextKeyType = "user_id"

// TokenVerifier validates an access token and returns the user ID it was issued for.
type TokenVerifier func(token string) (string, error)

// TokenSource extracts a token from a request, returning "" when absent.
type TokenSource func(r *http.Request) string

// Auth authenticates requests with an access token taken from fromCookie or,
// failing that, from an "Authorization: Bearer" header. The user ID is stored
// in the request context and on the request-scoped logger.
func Auth(verify TokenVerifier, fromCookie TokenSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, fromCookie)
			if token == "" {
				httputil.WriteMessage(w, http.StatusUnauthorized, "No access token provided")
				return
			}

			userID, err := verify(token)
			if err != nil || userID == "" {
				httputil.WriteMessage(w, http.StatusUnauthorized, "Invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = logger.WithUserID(ctx, userID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request, fromCookie TokenSource) string {
	if fromCookie != nil {
		if token := fromCookie(r); token != "" {
			return token
		}
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserIDFromContext returns the authenticated user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
