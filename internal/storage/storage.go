package storage

import (
	"errors"
	"fmt"
	"io"

	"github.com/filedrop/filedrop/internal/config"
)

// ErrNotExist reports that no bytes live at the given path. Callers decide
// whether a missing payload is tolerable (delete) or an error (download).
var ErrNotExist = errors.New("file does not exist in storage")

// Storage is the byte-storage collaborator. It owns the physical bytes;
// file records hold only the opaque path handed out by the service layer.
type Storage interface {
	// Save durably stores the bytes at the given path, creating any
	// intermediate scope (directory, prefix) as needed.
	Save(path string, r io.Reader) error

	// Open returns the bytes at the given path. Wraps ErrNotExist when the
	// payload is missing.
	Open(path string) (io.ReadCloser, error)

	// Delete removes the bytes. Wraps ErrNotExist when already absent.
	Delete(path string) error
}

// New selects a storage driver from app config.
func New(cfg *config.Config) (Storage, error) {
	switch cfg.StorageDriver {
	case "local":
		return NewLocal(cfg.StoragePath)
	case "s3":
		return NewS3Storage(S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
