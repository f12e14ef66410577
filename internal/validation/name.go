package validation

import (
	"errors"
	"strings"
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrNameTooLong  = errors.New("name is too long (max 100 characters)")
)

func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return ErrNameRequired
	}

	if len(trimmed) > 100 {
		return ErrNameTooLong
	}

	return nil
}
