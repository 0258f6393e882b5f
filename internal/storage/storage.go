package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage persists uploaded document files. Keys are opaque object names;
// the repository layer records them as the document's file path.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error

	// Localize makes the object available on the local filesystem for
	// tools that need a real path (pdftoppm, tesseract). cleanup removes
	// any temporary copy and is safe to call unconditionally.
	Localize(ctx context.Context, key string) (localPath string, cleanup func(), err error)
}

// NewKey generates an object name that keeps the original extension so
// recognition can route by file type.
func NewKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return uuid.NewString() + ext
}

// localStorage keeps objects in a flat directory on disk.
type localStorage struct {
	dir string
}

func NewLocalStorage(dir string) (Storage, error) {
	if dir == "" {
		dir = "./data/uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) path(key string) string {
	// keys are uuid-based, but never trust them as paths
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *localStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	dst := s.path(key)
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return f.Close()
}

func (s *localStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

func (s *localStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *localStorage) Localize(_ context.Context, key string) (string, func(), error) {
	p := s.path(key)
	if _, err := os.Stat(p); err != nil {
		return "", nil, fmt.Errorf("stat %s: %w", key, err)
	}
	return p, func() {}, nil
}
