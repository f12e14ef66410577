package service

import (
	"bytes"
	"io"
	"sort"
	"sync"

	"github.com/filedrop/filedrop/internal/model"
	"github.com/filedrop/filedrop/internal/repository"
	"github.com/filedrop/filedrop/internal/storage"
)

// --- fakes ---

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*model.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) ByID(id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) ByUsername(username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeUserRepo) Update(user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

type fakeFileRepo struct {
	mu        sync.Mutex
	files     map[string]*model.File
	createErr error

	// tokenConflicts makes the next N MakePublic calls fail with a
	// duplicate-token error, recording the rejected candidates.
	tokenConflicts int
	rejectedTokens []string

	// mintedTokens records every token ever committed by MakePublic.
	mintedTokens []string
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*model.File)}
}

func (f *fakeFileRepo) Create(file *model.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *file
	f.files[file.ID] = &cp
	return nil
}

func (f *fakeFileRepo) ByID(id string) (*model.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return nil, repository.ErrFileNotFound
	}
	cp := *file
	return &cp, nil
}

func (f *fakeFileRepo) ByOwner(userID string) ([]*model.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.File
	for _, file := range f.files {
		if file.UserID == userID {
			cp := *file
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (f *fakeFileRepo) ByShareToken(token string) (*model.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, file := range f.files {
		if file.Public && file.ShareToken != nil && *file.ShareToken == token {
			cp := *file
			return &cp, nil
		}
	}
	return nil, repository.ErrFileNotFound
}

func (f *fakeFileRepo) MakePublic(id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tokenConflicts > 0 {
		f.tokenConflicts--
		f.rejectedTokens = append(f.rejectedTokens, token)
		return repository.ErrDuplicateShareToken
	}
	for _, file := range f.files {
		if file.ShareToken != nil && *file.ShareToken == token {
			return repository.ErrDuplicateShareToken
		}
	}
	file, ok := f.files[id]
	if !ok || file.Public {
		return repository.ErrVisibilityChanged
	}
	file.MakePublic(token)
	f.mintedTokens = append(f.mintedTokens, token)
	return nil
}

func (f *fakeFileRepo) MakePrivate(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok || !file.Public {
		return repository.ErrVisibilityChanged
	}
	file.MakePrivate()
	return nil
}

func (f *fakeFileRepo) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[id]; !ok {
		return repository.ErrFileNotFound
	}
	delete(f.files, id)
	return nil
}

type fakeStorage struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saveErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: make(map[string][]byte)}
}

func (f *fakeStorage) Save(path string, r io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.blobs[path] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeStorage) Open(path string) (io.ReadCloser, error) {
	f.mu.Lock()
	data, ok := f.blobs[path]
	f.mu.Unlock()
	if !ok {
		return nil, storage.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[path]; !ok {
		return storage.ErrNotExist
	}
	delete(f.blobs, path)
	return nil
}
