package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/filedrop/filedrop/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrFileNotFound = errors.New("file not found")

	// ErrDuplicateShareToken reports that the candidate token lost the race
	// against the unique index. Callers generate a fresh token and retry.
	ErrDuplicateShareToken = errors.New("share token already exists")

	// ErrVisibilityChanged reports that a conditional visibility update
	// matched no row because a concurrent request changed the record first.
	ErrVisibilityChanged = errors.New("file visibility changed concurrently")
)

type FileRepository interface {
	Create(file *model.File) error
	ByID(id string) (*model.File, error)
	ByOwner(userID string) ([]*model.File, error)
	ByShareToken(token string) (*model.File, error)
	MakePublic(id, token string) error
	MakePrivate(id string) error
	Delete(id string) error
}

type fileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(file *model.File) error {
	query := `INSERT INTO files (id, user_id, filename, storage_path, uploaded_at, public, share_token, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		file.ID,
		file.UserID,
		file.Filename,
		file.StoragePath,
		file.UploadedAt,
		file.Public,
		file.ShareToken,
		file.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateShareToken
		}
		return err
	}

	return nil
}

func (r *fileRepository) ByID(id string) (*model.File, error) {
	file := &model.File{}
	query := `SELECT * FROM files WHERE id = $1`

	err := r.db.Get(file, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}

	return file, err
}

func (r *fileRepository) ByOwner(userID string) ([]*model.File, error) {
	var files []*model.File
	query := `SELECT * FROM files WHERE user_id = $1 ORDER BY uploaded_at DESC`

	err := r.db.Select(&files, query, userID)
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ByShareToken matches only records that are currently public: a token
// belonging to a since-unshared file resolves to nothing.
func (r *fileRepository) ByShareToken(token string) (*model.File, error) {
	file := &model.File{}
	query := `SELECT * FROM files WHERE share_token = $1 AND public = TRUE`

	err := r.db.Get(file, query, token)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}

	return file, err
}

// MakePublic commits the visibility flag and token in one statement, guarded
// on the record still being private. Token uniqueness is enforced by the
// unique index at commit time, not by a pre-check.
func (r *fileRepository) MakePublic(id, token string) error {
	query := `UPDATE files SET public = TRUE, share_token = $1 WHERE id = $2 AND public = FALSE`

	result, err := r.db.Exec(query, token, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateShareToken
		}
		return err
	}

	return checkVisibilityRows(result)
}

func (r *fileRepository) MakePrivate(id string) error {
	query := `UPDATE files SET public = FALSE, share_token = NULL WHERE id = $1 AND public = TRUE`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	return checkVisibilityRows(result)
}

func (r *fileRepository) Delete(id string) error {
	query := `DELETE FROM files WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrFileNotFound
	}

	return nil
}

func checkVisibilityRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrVisibilityChanged
	}

	return nil
}

func isUniqueViolation(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value")
}
