package validation

import (
	"errors"
	"net/mail"
)

var (
	ErrEmailRequired = errors.New("email is required")
	ErrEmailInvalid  = errors.New("invalid email address format")
	ErrEmailTooLong  = errors.New("email address is too long (max 254 characters)")
)

// ValidateEmail checks the address against the RFC 5322 grammar via net/mail.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}

	if len(email) > 254 {
		return ErrEmailTooLong
	}

	_, err := mail.ParseAddress(email)
	if err != nil {
		return ErrEmailInvalid
	}

	return nil
}
