package model

import (
	"time"
)

type File struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"` // Owning account, exclusive
	Filename    string    `db:"filename"`
	StoragePath string    `db:"storage_path"` // Opaque handle into the storage backend
	UploadedAt  time.Time `db:"uploaded_at"`
	Public      bool      `db:"public"`
	ShareToken  *string   `db:"share_token"` // Present iff Public
	CreatedAt   time.Time `db:"created_at"`
}

func (f *File) CanBeDeleted() bool {
	return !f.Public
}

// MakePublic sets the visibility flag and share token together. The token must
// be freshly generated; persistence enforces global uniqueness.
func (f *File) MakePublic(token string) {
	f.Public = true
	f.ShareToken = &token
}

func (f *File) MakePrivate() {
	f.Public = false
	f.ShareToken = nil
}
