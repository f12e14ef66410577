package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/filedrop/filedrop/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
)

type UserRepository interface {
	Create(user *model.User) error
	ByID(id string) (*model.User, error)
	ByUsername(username string) (*model.User, error)
	Update(user *model.User) error
	Delete(id string) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	query := `INSERT INTO users (id, username, email, name, password_salt, password_hash, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		user.ID,
		user.Username,
		user.Email,
		user.Name,
		user.PasswordSalt,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		return mapUserConstraint(err)
	}

	return nil
}

func (r *userRepository) ByID(id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.Get(user, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByUsername(username string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE username = $1`

	err := r.db.Get(user, query, username)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) Update(user *model.User) error {
	query := `UPDATE users SET email = $1, name = $2, password_salt = $3, password_hash = $4 WHERE id = $5`

	_, err := r.db.Exec(query, user.Email, user.Name, user.PasswordSalt, user.PasswordHash, user.ID)
	if err != nil {
		return mapUserConstraint(err)
	}

	return nil
}

func (r *userRepository) Delete(id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// mapUserConstraint translates a unique-constraint violation into the
// field-specific sentinel. The message check works for both SQLite
// ("UNIQUE constraint failed: users.username") and PostgreSQL
// ("duplicate key value violates unique constraint \"users_username_key\"").
func mapUserConstraint(err error) error {
	errStr := err.Error()
	if !strings.Contains(errStr, "UNIQUE constraint failed") && !strings.Contains(errStr, "duplicate key value") {
		return err
	}
	if strings.Contains(errStr, "username") {
		return ErrDuplicateUsername
	}
	if strings.Contains(errStr, "email") {
		return ErrDuplicateEmail
	}
	return err
}
