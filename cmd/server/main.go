package main

import (
	"log/slog"
	"net/http"

	"github.com/filedrop/filedrop/internal/app"
	"github.com/filedrop/filedrop/internal/config"
	"github.com/filedrop/filedrop/internal/logger"
	"github.com/filedrop/filedrop/internal/routes"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	a, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		panic(err)
	}
	defer func() {
		closeErr := a.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	handler := routes.SetupRoutes(a)
	slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)

	err = http.ListenAndServe(":"+cfg.Port, handler)
	if err != nil {
		slog.Error("server failed", "error", err)
		panic(err)
	}
}
