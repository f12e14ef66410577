package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/filedrop/filedrop/internal/ctxkeys"
	"github.com/filedrop/filedrop/internal/formdata"
	"github.com/filedrop/filedrop/internal/service"
)

// apiHandler serves the JSON API under /api/v1. Clients authenticate with
// the session id as a bearer token.
type apiHandler struct {
	userService    *service.UserService
	fileService    *service.FileService
	maxUploadBytes int64
}

func NewAPIHandler(userService *service.UserService, fileService *service.FileService, maxUploadBytes int64) *apiHandler {
	return &apiHandler{
		userService:    userService,
		fileService:    fileService,
		maxUploadBytes: maxUploadBytes,
	}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateAccountRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type visibilityRequest struct {
	Public bool `json:"public"`
}

func (h *apiHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, sessionID, err := h.userService.Register(req.Username, req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{Token: sessionID, User: newUserResponse(user)})
}

func (h *apiHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, sessionID, err := h.userService.Login(req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{Token: sessionID, User: newUserResponse(user)})
}

func (h *apiHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := ctxkeys.SessionID(r.Context()); sessionID != "" {
		h.userService.Logout(sessionID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserResponse(ctxkeys.User(r.Context())))
}

func (h *apiHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user := ctxkeys.User(r.Context())
	updated, err := h.userService.Update(user.ID, req.Email, req.Name, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(updated))
}

func (h *apiHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.userService.Delete(user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if sessionID := ctxkeys.SessionID(r.Context()); sessionID != "" {
		h.userService.Logout(sessionID)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	files, err := h.fileService.List(user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": newFileResponses(files)})
}

func (h *apiHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	boundary, ok := formdata.Boundary(r.Header.Get("Content-Type"))
	if !ok {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		slog.Error("failed to read upload body", "error", err, "user_id", user.ID)
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	part, ok := formdata.Extract(body, boundary)
	if !ok {
		writeServiceError(w, r, service.ErrNoFileSelected)
		return
	}

	file, err := h.fileService.Upload(user.ID, part.Filename, part.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newFileResponse(file))
}

func (h *apiHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	filename, rc, err := h.fileService.Download(user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	streamAttachment(w, filename, rc)
}

func (h *apiHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.fileService.Delete(user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetVisibility drives a file to an explicit visibility instead of toggling,
// so retried API requests stay idempotent.
func (h *apiHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user := ctxkeys.User(r.Context())
	file, err := h.fileService.SetVisibility(user.ID, r.PathValue("id"), req.Public)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newFileResponse(file))
}

// SharedFile returns public metadata for a share token.
func (h *apiHandler) SharedFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.fileService.ResolvePublic(r.PathValue("token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	owner, err := h.userService.ByID(file.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":    file.Filename,
		"uploaded_at": file.UploadedAt,
		"shared_by":   owner.Name,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
