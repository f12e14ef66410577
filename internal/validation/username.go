package validation

import (
	"errors"
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrUsernameTooLong  = errors.New("username is too long (max 64 characters)")
)

func ValidateUsername(username string) error {
	if username == "" {
		return ErrUsernameRequired
	}

	if len(username) > 64 {
		return ErrUsernameTooLong
	}

	return nil
}
