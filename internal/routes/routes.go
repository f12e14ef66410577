package routes

import (
	"net/http"

	"github.com/filedrop/filedrop/internal/app"
	"github.com/filedrop/filedrop/internal/handler"
	"github.com/filedrop/filedrop/internal/middleware"
)

func SetupRoutes(a *app.App) http.Handler {
	auth := handler.NewAuthHandler(a.UserService, a.Cfg.SessionTTL, a.Cfg.IsProduction())
	files := handler.NewFileHandler(a.FileService, a.Cfg.MaxUploadBytes)
	api := handler.NewAPIHandler(a.UserService, a.FileService, a.Cfg.MaxUploadBytes)

	mux := http.NewServeMux()

	rateLimitAuth := middleware.RateLimitAuth()
	rateLimitUpload := middleware.RateLimitUpload()

	// Web: auth flow
	mux.HandleFunc("GET /login", middleware.RequireGuest(auth.LoginPage))
	mux.HandleFunc("POST /login", rateLimitAuth(middleware.RequireGuest(auth.Login)))
	mux.HandleFunc("POST /signup", rateLimitAuth(middleware.RequireGuest(auth.Signup)))
	mux.HandleFunc("POST /logout", auth.Logout)

	// Web: file management
	mux.HandleFunc("GET /dashboard", middleware.RequireAuth(files.Dashboard))
	mux.HandleFunc("POST /files", rateLimitUpload(middleware.RequireAuth(files.Upload)))
	mux.HandleFunc("GET /files/{id}/download", middleware.RequireAuth(files.Download))
	mux.HandleFunc("POST /files/{id}/delete", middleware.RequireAuth(files.Delete))
	mux.HandleFunc("POST /files/{id}/share", middleware.RequireAuth(files.ToggleShare))

	// Public share link, no authentication
	mux.HandleFunc("GET /shared/{token}/download", files.SharedDownload)

	// JSON API, bearer session token
	mux.HandleFunc("POST /api/v1/signup", rateLimitAuth(api.Signup))
	mux.HandleFunc("POST /api/v1/login", rateLimitAuth(api.Login))
	mux.HandleFunc("POST /api/v1/logout", middleware.RequireAuth(api.Logout))
	mux.HandleFunc("GET /api/v1/me", middleware.RequireAuth(api.Me))
	mux.HandleFunc("PUT /api/v1/me", middleware.RequireAuth(api.UpdateMe))
	mux.HandleFunc("DELETE /api/v1/me", middleware.RequireAuth(api.DeleteMe))
	mux.HandleFunc("GET /api/v1/files", middleware.RequireAuth(api.ListFiles))
	mux.HandleFunc("POST /api/v1/files", rateLimitUpload(middleware.RequireAuth(api.UploadFile)))
	mux.HandleFunc("GET /api/v1/files/{id}/content", middleware.RequireAuth(api.DownloadFile))
	mux.HandleFunc("DELETE /api/v1/files/{id}", middleware.RequireAuth(api.DeleteFile))
	mux.HandleFunc("PUT /api/v1/files/{id}/visibility", middleware.RequireAuth(api.SetVisibility))
	mux.HandleFunc("GET /api/v1/shared/{token}", api.SharedFile)

	return middleware.Chain(
		mux,
		middleware.SessionAuth(a.UserService),
		middleware.RequestLogging,
	)
}
