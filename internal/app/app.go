package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/filedrop/filedrop/internal/config"
	"github.com/filedrop/filedrop/internal/db"
	"github.com/filedrop/filedrop/internal/repository"
	"github.com/filedrop/filedrop/internal/service"
	"github.com/filedrop/filedrop/internal/session"
	"github.com/filedrop/filedrop/internal/storage"
)

type App struct {
	Cfg         *config.Config
	DB          *sqlx.DB
	Sessions    *session.MemoryStore
	UserService *service.UserService
	FileService *service.FileService
}

func New(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	userRepository := repository.NewUserRepository(database)
	fileRepository := repository.NewFileRepository(database)

	fileStorage, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	sessions := session.NewMemoryStore(cfg.SessionTTL)
	fileService := service.NewFileService(fileRepository, userRepository, fileStorage)
	userService := service.NewUserService(userRepository, fileService, sessions)

	return &App{
		Cfg:         cfg,
		DB:          database,
		Sessions:    sessions,
		UserService: userService,
		FileService: fileService,
	}, nil
}

func (a *App) Close() error {
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
