package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores bytes on the filesystem under a single root directory.
// Paths are relative to the root; the first segment scopes a user's area.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	err := os.MkdirAll(root, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Save(path string, r io.Reader) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(full), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}

	// Sync before the record becomes visible to readers.
	err = f.Sync()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}

	return f.Close()
}

func (l *Local) Open(path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

func (l *Local) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}

	err = os.Remove(full)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// resolve joins the path under the root and rejects traversal outside it.
func (l *Local) resolve(path string) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(path))
	if !strings.HasPrefix(full, filepath.Clean(l.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return full, nil
}
