package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs in per-kind directories under a base directory.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory and the per-kind directories if missing.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	for _, kind := range []Kind{KindBook, KindThumbnail} {
		if err := os.MkdirAll(filepath.Join(basePath, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", kind, err)
		}
	}
	return &LocalStore{basePath: basePath}, nil
}

// Locate returns the path a blob of the given kind and name is stored at.
func (s *LocalStore) Locate(kind Kind, name string) string {
	return filepath.Join(s.basePath, string(kind), filepath.Base(name))
}

// Write stores r under the kind directory and returns the stored path.
func (s *LocalStore) Write(_ context.Context, kind Kind, name string, r io.Reader) (string, error) {
	target := s.Locate(kind, name)
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close file: %w", err)
	}
	return target, nil
}

// Open opens a stored blob for reading.
func (s *LocalStore) Open(_ context.Context, p string) (io.ReadCloser, ObjectInfo, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, ObjectInfo{}, mapNotExist(err)
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, err
	}
	if stat.IsDir() {
		_ = f.Close()
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return f, ObjectInfo{Path: p, Size: stat.Size()}, nil
}

// Exists reports whether a regular file is present at p.
func (s *LocalStore) Exists(_ context.Context, p string) (bool, error) {
	stat, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !stat.IsDir(), nil
}

// Size returns the byte size of the blob at p.
func (s *LocalStore) Size(_ context.Context, p string) (int64, error) {
	stat, err := os.Stat(p)
	if err != nil {
		return 0, mapNotExist(err)
	}
	return stat.Size(), nil
}

// Remove deletes the blob at p. Missing blobs are not an error.
func (s *LocalStore) Remove(_ context.Context, p string) error {
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func mapNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
