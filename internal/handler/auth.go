package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/filedrop/filedrop/internal/ctxkeys"
	"github.com/filedrop/filedrop/internal/middleware"
	"github.com/filedrop/filedrop/internal/service"
)

type authHandler struct {
	userService *service.UserService
	sessionTTL  time.Duration
	secure      bool
}

func NewAuthHandler(userService *service.UserService, sessionTTL time.Duration, secure bool) *authHandler {
	return &authHandler{
		userService: userService,
		sessionTTL:  sessionTTL,
		secure:      secure,
	}
}

// Signup creates an account from form values and logs it in.
func (h *authHandler) Signup(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	email := r.FormValue("email")
	name := r.FormValue("name")
	password := r.FormValue("password")

	user, sessionID, err := h.userService.Register(username, email, name, password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, sessionID)
	slog.Info("signup completed", "user_id", user.ID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")

	_, sessionID, err := h.userService.Login(username, password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, sessionID)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := ctxkeys.SessionID(r.Context()); sessionID != "" {
		h.userService.Logout(sessionID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LoginPage exists so unauthenticated redirects land somewhere meaningful.
func (h *authHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "POST username and password to /login",
	})
}

func (h *authHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		MaxAge:   int(h.sessionTTL.Seconds()),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
