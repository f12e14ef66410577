package validation

import (
	"errors"
	"unicode"
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 9 characters long")
	ErrPasswordNoUpper  = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLower  = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain at least one digit")
	ErrPasswordRequired = errors.New("password is required")
)

// ValidatePassword checks the password policy. All violated rules are reported
// together in the returned error, not just the first one.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	var errs []error
	if len(password) < 9 {
		errs = append(errs, ErrPasswordTooShort)
	}
	if !hasUpper {
		errs = append(errs, ErrPasswordNoUpper)
	}
	if !hasLower {
		errs = append(errs, ErrPasswordNoLower)
	}
	if !hasDigit {
		errs = append(errs, ErrPasswordNoDigit)
	}

	return errors.Join(errs...)
}
