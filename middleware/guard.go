package middleware

import (
	"net/http"

	"github.com/MrEthical07/goSession/permission"
)

// RequireLevel admits requests whose identity level lies within [min, max].
// Anonymous callers below min get 401; everyone else outside the range
// gets 403. It must run after Authenticate.
func RequireLevel(min, max permission.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			level := IdentityFromContext(r.Context()).Level
			if permission.Allows(level, min, max) {
				next.ServeHTTP(w, r)
				return
			}
			if level == permission.Stranger && min > permission.Stranger {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// RequireAtLeast is RequireLevel(min, permission.Admin).
func RequireAtLeast(min permission.Level) func(http.Handler) http.Handler {
	return RequireLevel(min, permission.Admin)
}
