package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/filedrop/filedrop/internal/ctxkeys"
	"github.com/filedrop/filedrop/internal/formdata"
	"github.com/filedrop/filedrop/internal/service"
)

type fileHandler struct {
	fileService    *service.FileService
	maxUploadBytes int64
}

func NewFileHandler(fileService *service.FileService, maxUploadBytes int64) *fileHandler {
	return &fileHandler{
		fileService:    fileService,
		maxUploadBytes: maxUploadBytes,
	}
}

// Dashboard lists the caller's files, newest upload first.
func (h *fileHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	files, err := h.fileService.List(user.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":  newUserResponse(user),
		"files": newFileResponses(files),
	})
}

// Upload reads the raw multipart body and stores the first file part.
func (h *fileHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	slog.Info("file uploaded", "file_id", file.ID, "user_id", user.ID, "filename", file.Filename)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Download streams a file the caller owns.
func (h *fileHandler) Download(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	filename, rc, err := h.fileService.Download(user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	streamAttachment(w, filename, rc)
}

func (h *fileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.fileService.Delete(user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// ToggleShare flips a file between private and public.
func (h *fileHandler) ToggleShare(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	file, err := h.fileService.ToggleVisibility(user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("file visibility changed", "file_id", file.ID, "public", file.Public)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// SharedDownload streams a publicly shared file. No authentication; the
// token is the only credential.
func (h *fileHandler) SharedDownload(w http.ResponseWriter, r *http.Request) {
	filename, rc, owner, err := h.fileService.FetchShared(r.PathValue("token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("X-Shared-By", owner)
	streamAttachment(w, filename, rc)
}

func streamAttachment(w http.ResponseWriter, filename string, rc io.ReadCloser) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Type", "application/octet-stream")

	_, err := io.Copy(w, rc)
	if err != nil {
		slog.Error("failed to stream file", "error", err)
	}
}
