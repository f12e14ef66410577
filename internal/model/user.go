package model

import (
	"time"
)

type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordSalt *string   `db:"password_salt"` // Nullable: salt and hash are set together or not at all
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (u *User) HasPassword() bool {
	return u.PasswordSalt != nil && *u.PasswordSalt != "" &&
		u.PasswordHash != nil && *u.PasswordHash != ""
}

// SetCredentials replaces the salt and hash as a pair. Callers compute the
// digest via the credential package; this is the only place both fields change.
func (u *User) SetCredentials(salt, hash string) {
	u.PasswordSalt = &salt
	u.PasswordHash = &hash
}
