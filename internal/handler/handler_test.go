package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedrop/filedrop/internal/middleware"
	"github.com/filedrop/filedrop/internal/model"
	"github.com/filedrop/filedrop/internal/repository"
	"github.com/filedrop/filedrop/internal/service"
	"github.com/filedrop/filedrop/internal/session"
	"github.com/filedrop/filedrop/internal/storage"
)

// --- in-memory fixtures ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (m *memUserRepo) Create(user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserRepo) ByID(id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) ByUsername(username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUserRepo) Update(user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUserRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

type memFileRepo struct {
	mu    sync.Mutex
	files map[string]*model.File
}

func (m *memFileRepo) Create(file *model.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *file
	m.files[file.ID] = &cp
	return nil
}

func (m *memFileRepo) ByID(id string) (*model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memFileRepo) ByOwner(userID string) ([]*model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.File
	for _, f := range m.files {
		if f.UserID == userID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (m *memFileRepo) ByShareToken(token string) (*model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.Public && f.ShareToken != nil && *f.ShareToken == token {
			cp := *f
			return &cp, nil
		}
	}
	return nil, repository.ErrFileNotFound
}

func (m *memFileRepo) MakePublic(id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.ShareToken != nil && *f.ShareToken == token {
			return repository.ErrDuplicateShareToken
		}
	}
	f, ok := m.files[id]
	if !ok || f.Public {
		return repository.ErrVisibilityChanged
	}
	f.MakePublic(token)
	return nil
}

func (m *memFileRepo) MakePrivate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[id]
	if !ok || !f.Public {
		return repository.ErrVisibilityChanged
	}
	f.MakePrivate()
	return nil
}

func (m *memFileRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[id]; !ok {
		return repository.ErrFileNotFound
	}
	delete(m.files, id)
	return nil
}

// newTestServer wires the full web and API surface against in-memory
// repositories and a temp-dir storage root.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	local, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	sessions := session.NewMemoryStore(time.Hour)
	t.Cleanup(sessions.Close)

	userRepo := &memUserRepo{users: make(map[string]*model.User)}
	fileRepo := &memFileRepo{files: make(map[string]*model.File)}

	fileService := service.NewFileService(fileRepo, userRepo, local)
	userService := service.NewUserService(userRepo, fileService, sessions)

	auth := NewAuthHandler(userService, time.Hour, false)
	files := NewFileHandler(fileService, 1<<20)
	api := NewAPIHandler(userService, fileService, 1<<20)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", middleware.RequireGuest(auth.LoginPage))
	mux.HandleFunc("POST /login", middleware.RequireGuest(auth.Login))
	mux.HandleFunc("POST /signup", middleware.RequireGuest(auth.Signup))
	mux.HandleFunc("POST /logout", auth.Logout)
	mux.HandleFunc("GET /dashboard", middleware.RequireAuth(files.Dashboard))
	mux.HandleFunc("POST /files", middleware.RequireAuth(files.Upload))
	mux.HandleFunc("GET /files/{id}/download", middleware.RequireAuth(files.Download))
	mux.HandleFunc("POST /files/{id}/delete", middleware.RequireAuth(files.Delete))
	mux.HandleFunc("POST /files/{id}/share", middleware.RequireAuth(files.ToggleShare))
	mux.HandleFunc("GET /shared/{token}/download", files.SharedDownload)
	mux.HandleFunc("POST /api/v1/signup", api.Signup)
	mux.HandleFunc("POST /api/v1/login", api.Login)
	mux.HandleFunc("POST /api/v1/logout", middleware.RequireAuth(api.Logout))
	mux.HandleFunc("GET /api/v1/me", middleware.RequireAuth(api.Me))
	mux.HandleFunc("PUT /api/v1/me", middleware.RequireAuth(api.UpdateMe))
	mux.HandleFunc("DELETE /api/v1/me", middleware.RequireAuth(api.DeleteMe))
	mux.HandleFunc("GET /api/v1/files", middleware.RequireAuth(api.ListFiles))
	mux.HandleFunc("POST /api/v1/files", middleware.RequireAuth(api.UploadFile))
	mux.HandleFunc("GET /api/v1/files/{id}/content", middleware.RequireAuth(api.DownloadFile))
	mux.HandleFunc("DELETE /api/v1/files/{id}", middleware.RequireAuth(api.DeleteFile))
	mux.HandleFunc("PUT /api/v1/files/{id}/visibility", middleware.RequireAuth(api.SetVisibility))
	mux.HandleFunc("GET /api/v1/shared/{token}", api.SharedFile)

	return middleware.Chain(mux, middleware.SessionAuth(userService))
}

func signupForm(username, email, name, password string) string {
	return fmt.Sprintf("username=%s&email=%s&name=%s&password=%s", username, email, name, password)
}

// signup registers an account through the web form and returns its session cookie.
func signup(t *testing.T, srv http.Handler, username string) *http.Cookie {
	t.Helper()

	form := signupForm(username, username+"@example.com", "Test User", "Sup3rSecret")
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set on signup")
	return nil
}

// uploadFile uploads content through the web form and returns the file id.
func uploadFile(t *testing.T, srv http.Handler, cookie *http.Cookie, filename, content string) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	dash := dashboard(t, srv, cookie)
	require.NotEmpty(t, dash.Files)
	return dash.Files[0].ID
}

type dashboardResponse struct {
	User  userResponse   `json:"user"`
	Files []fileResponse `json:"files"`
}

func dashboard(t *testing.T, srv http.Handler, cookie *http.Cookie) dashboardResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dashboardResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func do(srv http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// --- web flow ---

func TestSignupAndDashboard(t *testing.T) {
	srv := newTestServer(t)
	cookie := signup(t, srv, "alice")

	dash := dashboard(t, srv, cookie)
	assert.Equal(t, "alice", dash.User.Username)
	assert.Empty(t, dash.Files)
}

func TestSignup_ValidationErrorsEnumerated(t *testing.T) {
	srv := newTestServer(t)

	form := signupForm("", "not-an-email", "Test", "weak")
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(srv, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "validation failed", resp.Error)
	// Missing username, bad email, and every violated password rule
	// reported together.
	assert.GreaterOrEqual(t, len(resp.Details), 4)
}

func TestSignup_DuplicateUsernameConflict(t *testing.T) {
	srv := newTestServer(t)
	signup(t, srv, "alice")

	form := signupForm("alice", "other@example.com", "Other", "Sup3rSecret")
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(srv, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_GenericFailure(t *testing.T) {
	srv := newTestServer(t)
	signup(t, srv, "alice")

	badPassword := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader("username=alice&password=Wr0ngPassword"))
	badPassword.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recA := do(srv, badPassword)

	unknownUser := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader("username=nobody&password=Wr0ngPassword"))
	unknownUser.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recB := do(srv, unknownUser)

	// The two failure modes are indistinguishable from outside.
	assert.Equal(t, http.StatusUnauthorized, recA.Code)
	assert.Equal(t, http.StatusUnauthorized, recB.Code)
	assert.Equal(t, recA.Body.String(), recB.Body.String())
}

func TestDashboard_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestLogout_SessionRevoked(t *testing.T) {
	srv := newTestServer(t)
	cookie := signup(t, srv, "alice")

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := do(srv, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookie)
	rec = do(srv, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	cookie := signup(t, srv, "alice")

	id := uploadFile(t, srv, cookie, "report.pdf", "pdf bytes")

	req := httptest.NewRequest(http.MethodGet, "/files/"+id+"/download", nil)
	req.AddCookie(cookie)
	rec := do(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="report.pdf"`)
}

func TestUpload_NoFilePart(t *testing.T) {
	srv := newTestServer(t)
	cookie := signup(t, srv, "alice")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "just a text field"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := do(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownload_OtherOwnerLooksAbsent(t *testing.T) {
	srv := newTestServer(t)
	alice := signup(t, srv, "alice")
	bob := signup(t, srv, "bob")

	id := uploadFile(t, srv, alice, "secret.txt", "for alice only")

	req := httptest.NewRequest(http.MethodGet, "/files/"+id+"/download", nil)
	req.AddCookie(bob)
	rec := do(srv, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShareToggleAndAnonymousDownload(t *testing.T) {
	srv := newTestServer(t)
	cookie := signup(t, srv, "alice")
	id := uploadFile(t, srv, cookie, "notes.txt", "shared content")

	req := httptest.NewRequest(http.MethodPost, "/files/"+id+"/share", nil)
	req.AddCookie(cookie)
	require.Equal(t, http.StatusSeeOther, do(srv, req).Code)

	dash := dashboard(t, srv, cookie)
	require.Len(t, dash.Files, 1)
	require.True(t, dash.Files[0].Public)
	require.NotNil(t, dash.Files[0].ShareToken)
	token := *dash.Files[0].ShareToken
	assert.Len(t, token, 20)

	// Anonymous download, no cookie.
	rec := do(srv, httptest.NewRequest(http.MethodGet, "/shared/"+token+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shared content", rec.Body.String())
	assert.Equal(t, "Test User", rec.Header().Get("X-Shared-By"))

	// Toggling back revokes the link immediately.
	req = httptest.NewRequest(http.MethodPost, "/files/"+id+"/share", nil)
	req.AddCookie(cookie)
	require.Equal(t, http.StatusSeeOther, do(srv, req).Code)

	rec = do(srv, httptest.NewRequest(http.MethodGet, "/shared/"+token+"/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete_SharedFileForbidden(t *testing.T) {
	srv := newTestServer(t)
	cookie := signup(t, srv, "alice")
	id := uploadFile(t, srv, cookie, "keep.txt", "shared")

	req := httptest.NewRequest(http.MethodPost, "/files/"+id+"/share", nil)
	req.AddCookie(cookie)
	require.Equal(t, http.StatusSeeOther, do(srv, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/files/"+id+"/delete", nil)
	req.AddCookie(cookie)
	rec := do(srv, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "can't delete a shared file")
}

func TestDelete_PrivateFile(t *testing.T) {
	srv := newTestServer(t)
	cookie := signup(t, srv, "alice")
	id := uploadFile(t, srv, cookie, "gone.txt", "bye")

	req := httptest.NewRequest(http.MethodPost, "/files/"+id+"/delete", nil)
	req.AddCookie(cookie)
	require.Equal(t, http.StatusSeeOther, do(srv, req).Code)

	assert.Empty(t, dashboard(t, srv, cookie).Files)
}

// --- JSON API ---

func apiSignup(t *testing.T, srv http.Handler, username string) sessionResponse {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"email":%q,"name":"API User","password":"Sup3rSecret"}`,
		username, username+"@example.com")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := do(srv, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp
}

func TestAPI_SignupAndMe(t *testing.T) {
	srv := newTestServer(t)
	sess := apiSignup(t, srv, "carol")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := do(srv, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user userResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "carol", user.Username)
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/files", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_LogoutInvalidatesToken(t *testing.T) {
	srv := newTestServer(t)
	sess := apiSignup(t, srv, "carol")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/logout", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	require.Equal(t, http.StatusNoContent, do(srv, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	assert.Equal(t, http.StatusUnauthorized, do(srv, req).Code)
}

func TestAPI_UploadAndExplicitVisibility(t *testing.T) {
	srv := newTestServer(t)
	sess := apiSignup(t, srv, "carol")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "data.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("a,b,c"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := do(srv, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var file fileResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&file))
	assert.False(t, file.Public)

	// Publishing is an idempotent PUT: repeating it keeps the same token.
	setPublic := func() fileResponse {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/files/"+file.ID+"/visibility",
			strings.NewReader(`{"public":true}`))
		req.Header.Set("Authorization", "Bearer "+sess.Token)
		rec := do(srv, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var out fileResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		return out
	}

	first := setPublic()
	require.NotNil(t, first.ShareToken)
	second := setPublic()
	require.NotNil(t, second.ShareToken)
	assert.Equal(t, *first.ShareToken, *second.ShareToken)

	// Public metadata resolves without authentication.
	rec = do(srv, httptest.NewRequest(http.MethodGet, "/api/v1/shared/"+*first.ShareToken, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var meta map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&meta))
	assert.Equal(t, "data.csv", meta["filename"])
	assert.Equal(t, "API User", meta["shared_by"])
}

func TestAPI_DeleteAccountCascades(t *testing.T) {
	srv := newTestServer(t)
	sess := apiSignup(t, srv, "carol")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	require.Equal(t, http.StatusNoContent, do(srv, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	assert.Equal(t, http.StatusUnauthorized, do(srv, req).Code)
}
