package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// LocalStore keeps files on an afero filesystem rooted at the storage directory,
// normally an afero.BasePathFs over the OS filesystem.
type LocalStore struct {
	fs      afero.Fs
	baseURL string
}

// NewLocalStore creates a LocalStore. baseURL is the public prefix files are served under,
// for example http://localhost:8080/api/v1/storage.
func NewLocalStore(fs afero.Fs, baseURL string) *LocalStore {
	return &LocalStore{
		fs:      fs,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Resolve maps a public storage path to a file location under the root.
func (s *LocalStore) Resolve(p string) (string, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" || strings.Contains(p, "..") || strings.ContainsRune(p, '\\') {
		return "", ErrInvalidPath
	}
	full := path.Clean("/" + p)
	if full == "/" {
		return "", ErrInvalidPath
	}
	return full, nil
}

// Save writes the object and returns its relative path.
func (s *LocalStore) Save(_ context.Context, dir, name string, r io.Reader) (string, error) {
	rel := path.Join(dir, name)
	full, err := s.Resolve(rel)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage dir: %w", err)
	}
	if err := afero.WriteReader(s.fs, full, r); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return rel, nil
}

// Delete removes a stored file. Missing files are ignored.
func (s *LocalStore) Delete(_ context.Context, p string) error {
	full, err := s.Resolve(p)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// URL returns the public URL for a stored path.
func (s *LocalStore) URL(p string) string {
	if p == "" {
		return ""
	}
	return s.baseURL + "/" + strings.TrimPrefix(p, "/")
}

// Open opens a stored file for serving.
func (s *LocalStore) Open(p string) (afero.File, os.FileInfo, error) {
	full, err := s.Resolve(p)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.fs.Open(full)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, os.ErrNotExist
	}
	return f, info, nil
}
