package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/ayudame/internal/auth"
	"github.com/dukerupert/ayudame/internal/identity"
	"github.com/dukerupert/ayudame/internal/store"
)

// SessionCookieName carries the session token for browser clients. Other
// clients send it as a bearer token.
const SessionCookieName = "ayudame_session"

// SessionToken extracts the session token from the cookie or the
// Authorization header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireAuth validates the session token and populates AuthContext. The
// role is left empty when the user has credentials but no profile yet.
func RequireAuth(provider *identity.Provider, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			sess, err := provider.Authenticate(r.Context(), token)
			if err != nil {
				deny(w, http.StatusUnauthorized, "unauthenticated", "not signed in")
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
				Token:     token,
			}
			u, err := userStore.GetByID(r.Context(), sess.UserID)
			if err != nil {
				deny(w, http.StatusServiceUnavailable, "unavailable", "store unavailable")
				return
			}
			if u != nil {
				ac.Role = string(u.Role)
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireProfile rejects signed-in users who have not created their
// helper or elder profile.
func RequireProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.HasProfile(r.Context()) {
			deny(w, http.StatusForbidden, "profile_required", "complete your profile first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
