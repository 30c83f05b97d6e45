package auth

import (
	"net/http"
	"strings"
)

// JWTAuth validates the bearer token and attaches its claims to the
// request context. Tokens are self-validating and non-revocable within
// their 2-hour lifetime (§5 "Resource policy"), so there is no
// session-table lookup here — that is a deliberate simplification from
// the teacher's revocable-session middleware, not an oversight.
func JWTAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimPrefix(h, "Bearer ")
			claims, err := Verify(raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
