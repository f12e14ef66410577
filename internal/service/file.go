package service

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/filedrop/filedrop/internal/model"
	"github.com/filedrop/filedrop/internal/repository"
	"github.com/filedrop/filedrop/internal/storage"
	"github.com/google/uuid"
)

var (
	ErrNoFileSelected = errors.New("please select a file to upload")
	ErrEmptyFile      = errors.New("selected file is empty")
	ErrFileShared     = errors.New("can't delete a shared file")
)

// shareTokenBytes matches the original token length: 10 random bytes, 20 hex chars.
const shareTokenBytes = 10

// maxTokenAttempts bounds the generate-and-commit retry loop. With 80-bit
// tokens a single conflict is already vanishingly rare.
const maxTokenAttempts = 10

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

type FileService struct {
	fileRepository repository.FileRepository
	userRepository repository.UserRepository
	storage        storage.Storage
}

func NewFileService(fileRepository repository.FileRepository, userRepository repository.UserRepository, store storage.Storage) *FileService {
	return &FileService{
		fileRepository: fileRepository,
		userRepository: userRepository,
		storage:        store,
	}
}

// Upload persists the bytes first, then the record, so a record never
// references missing bytes at creation time. New files start private.
func (s *FileService) Upload(userID, filename string, content []byte) (*model.File, error) {
	if filename == "" {
		return nil, ErrNoFileSelected
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}

	now := time.Now()

	// The display filename is preserved unmodified; only the stored name is
	// sanitized, and timestamped to avoid collisions.
	safe := unsafePathChars.ReplaceAllString(filename, "_")
	storagePath := fmt.Sprintf("%s/%s_%s", userID, now.Format("20060102_150405"), safe)

	err := s.storage.Save(storagePath, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	file := &model.File{
		ID:          uuid.New().String(),
		UserID:      userID,
		Filename:    filename,
		StoragePath: storagePath,
		UploadedAt:  now,
		CreatedAt:   now,
	}

	err = s.fileRepository.Create(file)
	if err != nil {
		// If the record insert fails, clean up the stored bytes.
		delErr := s.storage.Delete(storagePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	return file, nil
}

// Download returns the display filename and a reader over the bytes. Unknown
// ids, files owned by someone else, and bytes missing from storage all
// surface the same not-found error to avoid existence disclosure.
func (s *FileService) Download(userID, fileID string) (string, io.ReadCloser, error) {
	file, err := s.ownedFile(userID, fileID)
	if err != nil {
		return "", nil, err
	}

	rc, err := s.storage.Open(file.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			slog.Warn("file record references missing bytes", "file_id", file.ID, "path", file.StoragePath)
			return "", nil, fmt.Errorf("%w: bytes missing from storage", repository.ErrFileNotFound)
		}
		return "", nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file.Filename, rc, nil
}

// Delete removes bytes and record. Shared files must be unshared first;
// bytes already absent from storage do not block record deletion.
func (s *FileService) Delete(userID, fileID string) error {
	file, err := s.ownedFile(userID, fileID)
	if err != nil {
		return err
	}

	if !file.CanBeDeleted() {
		return ErrFileShared
	}

	err = s.storage.Delete(file.StoragePath)
	if err != nil && !errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if err != nil {
		slog.Warn("deleting record whose bytes were already gone", "file_id", file.ID, "path", file.StoragePath)
	}

	err = s.fileRepository.Delete(file.ID)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	return nil
}

// ToggleVisibility flips the file between private and public.
func (s *FileService) ToggleVisibility(userID, fileID string) (*model.File, error) {
	file, err := s.ownedFile(userID, fileID)
	if err != nil {
		return nil, err
	}

	return s.SetVisibility(userID, fileID, !file.Public)
}

// SetVisibility drives the file to the requested visibility. Going public
// mints a fresh token, committed under the unique index and retried on
// conflict; going private clears the token. Already being in the requested
// state is not an error.
func (s *FileService) SetVisibility(userID, fileID string, public bool) (*model.File, error) {
	for {
		file, err := s.ownedFile(userID, fileID)
		if err != nil {
			return nil, err
		}

		if file.Public == public {
			return file, nil
		}

		if public {
			err = s.makePublic(file)
		} else {
			err = s.fileRepository.MakePrivate(file.ID)
		}

		if errors.Is(err, repository.ErrVisibilityChanged) {
			// A concurrent request changed the record first; reload and
			// re-decide against the fresh state.
			continue
		}
		if err != nil {
			return nil, err
		}

		return s.fileRepository.ByID(file.ID)
	}
}

func (s *FileService) makePublic(file *model.File) error {
	for range maxTokenAttempts {
		token, err := newShareToken()
		if err != nil {
			return err
		}

		err = s.fileRepository.MakePublic(file.ID, token)
		if errors.Is(err, repository.ErrDuplicateShareToken) {
			continue
		}
		return err
	}

	return fmt.Errorf("could not allocate a unique share token after %d attempts", maxTokenAttempts)
}

// List returns the user's files, newest upload first.
func (s *FileService) List(userID string) ([]*model.File, error) {
	return s.fileRepository.ByOwner(userID)
}

// ResolvePublic returns the record for a share token only while the record
// is public. Revocation is immediate: the same token string resolves to
// nothing once the file is private again.
func (s *FileService) ResolvePublic(token string) (*model.File, error) {
	return s.fileRepository.ByShareToken(token)
}

// FetchShared resolves a share token to the filename, bytes, and owner
// display name for anonymous download.
func (s *FileService) FetchShared(token string) (string, io.ReadCloser, string, error) {
	file, err := s.ResolvePublic(token)
	if err != nil {
		return "", nil, "", err
	}

	owner, err := s.userRepository.ByID(file.UserID)
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to get file owner: %w", err)
	}

	rc, err := s.storage.Open(file.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			slog.Warn("shared file references missing bytes", "file_id", file.ID, "path", file.StoragePath)
			return "", nil, "", fmt.Errorf("%w: bytes missing from storage", repository.ErrFileNotFound)
		}
		return "", nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	return file.Filename, rc, owner.Name, nil
}

// RemoveAllBytes deletes the stored bytes of every file the user owns.
// Best effort: records are expected to go away with the owning account.
func (s *FileService) RemoveAllBytes(userID string) error {
	files, err := s.fileRepository.ByOwner(userID)
	if err != nil {
		return fmt.Errorf("failed to list user files: %w", err)
	}

	for _, file := range files {
		err = s.storage.Delete(file.StoragePath)
		if err != nil && !errors.Is(err, storage.ErrNotExist) {
			slog.Warn("failed to delete file from storage", "storage_path", file.StoragePath, "error", err)
		}
	}

	return nil
}

// ownedFile fetches a record and enforces exclusive ownership. A file owned
// by another account yields the same error as a file that does not exist.
func (s *FileService) ownedFile(userID, fileID string) (*model.File, error) {
	file, err := s.fileRepository.ByID(fileID)
	if err != nil {
		return nil, err
	}

	if file.UserID != userID {
		return nil, repository.ErrFileNotFound
	}

	return file, nil
}

func newShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
