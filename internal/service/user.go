package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/filedrop/filedrop/internal/credential"
	"github.com/filedrop/filedrop/internal/model"
	"github.com/filedrop/filedrop/internal/repository"
	"github.com/filedrop/filedrop/internal/session"
	"github.com/filedrop/filedrop/internal/validation"
	"github.com/google/uuid"
)

// ErrInvalidCredentials is the single outward error for any login failure.
// It never reveals whether the username exists or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

type UserService struct {
	userRepository repository.UserRepository
	fileService    *FileService
	sessions       session.Store
}

func NewUserService(userRepository repository.UserRepository, fileService *FileService, sessions session.Store) *UserService {
	return &UserService{
		userRepository: userRepository,
		fileService:    fileService,
		sessions:       sessions,
	}
}

// Register creates an account and logs it in. Validation failures are
// reported together, one per violated field rule.
func (s *UserService) Register(username, email, name, password string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	var errs []error
	if err := validation.ValidateUsername(username); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidateName(name); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, "", err
	}

	salt, err := credential.NewSalt()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate salt: %w", err)
	}

	user := &model.User{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now(),
	}
	user.SetCredentials(salt, credential.Hash(password, salt))

	err = s.userRepository.Create(user)
	if err != nil {
		// Duplicate username/email surface from the unique constraint at
		// commit time, never from a pre-check.
		return nil, "", err
	}

	sessionID, err := s.sessions.Create(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, sessionID, nil
}

// Login authenticates by username and password and opens a session.
func (s *UserService) Login(username, password string) (*model.User, string, error) {
	user, err := s.userRepository.ByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() || !credential.Verify(*user.PasswordHash, *user.PasswordSalt, password) {
		return nil, "", ErrInvalidCredentials
	}

	sessionID, err := s.sessions.Create(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in", "user_id", user.ID)
	return user, sessionID, nil
}

// Logout destroys the session. Unknown session ids are a no-op.
func (s *UserService) Logout(sessionID string) {
	s.sessions.Destroy(sessionID)
}

// CurrentUser resolves a session to its account. The account is re-fetched
// by id so a since-deleted account resolves to nothing.
func (s *UserService) CurrentUser(sessionID string) (*model.User, bool) {
	userID, ok := s.sessions.Resolve(sessionID)
	if !ok {
		return nil, false
	}

	user, err := s.userRepository.ByID(userID)
	if err != nil {
		return nil, false
	}

	return user, true
}

func (s *UserService) ByID(id string) (*model.User, error) {
	return s.userRepository.ByID(id)
}

func (s *UserService) ByUsername(username string) (*model.User, error) {
	return s.userRepository.ByUsername(username)
}

// Update changes email and name, and optionally the password. A blank
// password means "leave unchanged", not "clear password".
func (s *UserService) Update(userID, email, name, password string) (*model.User, error) {
	user, err := s.userRepository.ByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	var errs []error
	if err := validation.ValidateEmail(email); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidateName(name); err != nil {
		errs = append(errs, err)
	}
	if password != "" {
		if err := validation.ValidatePassword(password); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	user.Email = email
	user.Name = name

	if password != "" {
		salt, err := credential.NewSalt()
		if err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		user.SetCredentials(salt, credential.Hash(password, salt))
	}

	err = s.userRepository.Update(user)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Delete removes the account, its stored bytes, and, via the cascading
// foreign key, all owned file records.
func (s *UserService) Delete(userID string) error {
	err := s.fileService.RemoveAllBytes(userID)
	if err != nil {
		// Orphaned bytes are better than a failed deletion.
		slog.Warn("failed to delete user files from storage", "user_id", userID, "error", err)
	}

	err = s.userRepository.Delete(userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", "user_id", userID)
	return nil
}
