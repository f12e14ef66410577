package middleware

import (
	"net/http"
	"strings"

	"github.com/filedrop/filedrop/internal/ctxkeys"
	"github.com/filedrop/filedrop/internal/service"
)

const SessionCookieName = "session_id"

// SessionAuth resolves the caller's session and adds the user to the request
// context. The session id comes from the session cookie or, for API clients,
// from an Authorization bearer header. Requests without a valid session
// continue unauthenticated.
func SessionAuth(userService *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, ok := userService.CurrentUser(sessionID)
			if !ok {
				// Unknown, expired, or orphaned session: clear the cookie
				// and continue without auth.
				clearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			// The password salt and hash never travel in request context.
			user.PasswordSalt = nil
			user.PasswordHash = nil

			ctx := ctxkeys.WithUser(r.Context(), user)
			ctx = ctxkeys.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects unauthenticated requests. Browser requests are
// redirected to the login page; API requests get a JSON 401.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := ctxkeys.User(r.Context())
		if user == nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// RequireGuest redirects authenticated users away from login/signup pages.
func RequireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) != nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
