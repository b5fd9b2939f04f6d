// Package storage persists uploaded feedback images and hands back the
// reference that dataset records point at.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrExists = errors.New("image already exists")

// ImageStore saves image bytes under a caller-chosen key. Keys are never overwritten.
type ImageStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
}

// LocalStore keeps images as plain files in one directory. Refs are the bare file names.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%s: %w", key, ErrExists)
		}
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to sync image file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	return key, nil
}

func (s *LocalStore) Load(_ context.Context, ref string) ([]byte, error) {
	if err := validKey(ref); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.dir, ref))
}

func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid image key %q", key)
	}
	return nil
}
