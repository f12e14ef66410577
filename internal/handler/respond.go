package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/filedrop/filedrop/internal/model"
	"github.com/filedrop/filedrop/internal/repository"
	"github.com/filedrop/filedrop/internal/service"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type fileResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	Public     bool      `json:"public"`
	ShareToken *string   `json:"share_token,omitempty"`
	ShareURL   *string   `json:"share_url,omitempty"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

func newFileResponse(f *model.File) fileResponse {
	resp := fileResponse{
		ID:         f.ID,
		Filename:   f.Filename,
		UploadedAt: f.UploadedAt,
		Public:     f.Public,
		ShareToken: f.ShareToken,
	}
	if f.ShareToken != nil {
		url := "/shared/" + *f.ShareToken + "/download"
		resp.ShareURL = &url
	}
	return resp
}

func newFileResponses(files []*model.File) []fileResponse {
	resp := make([]fileResponse, 0, len(files))
	for _, f := range files {
		resp = append(resp, newFileResponse(f))
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// writeServiceError maps service and repository errors onto HTTP statuses.
// Validation failures enumerate every violated rule; authentication and
// not-found responses stay deliberately vague.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, repository.ErrFileNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrDuplicateUsername),
		errors.Is(err, repository.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrFileShared):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoFileSelected),
		errors.Is(err, service.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, "validation failed", validationDetails(err)...)
	default:
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "something went wrong")
	}
}

func isValidationError(err error) bool {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return true
	}
	return false
}

// validationDetails flattens an errors.Join tree into one message per rule.
func validationDetails(err error) []string {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []string{err.Error()}
	}

	var details []string
	for _, e := range joined.Unwrap() {
		details = append(details, validationDetails(e)...)
	}
	return details
}
