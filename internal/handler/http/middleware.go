package http

import (
	"net/http"
	"strings"

	"github.com/utafrali/sessionauth/pkg/httputil"
)

// ContentTypeJSON rejects requests carrying a body that is not declared as
// application/json. Bodiless requests such as logout pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteMessage(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
