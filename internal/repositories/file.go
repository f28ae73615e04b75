package repositories

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// FileStorage implements [session.Storage] as a JSON file readable only by the owner.
type FileStorage struct {
	path string
}

// NewFileStorage creates a [FileStorage] at path, expanding a leading "~".
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: shared.ExpandHome(path)}
}

// Path returns the resolved file location.
func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) Load(ctx context.Context) (*session.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", shared.ErrStorage, f.path, err)
	}
	return session.DecodeSnapshot(data)
}

// Save writes to a temporary file and renames it over the previous snapshot.
func (f *FileStorage) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := session.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", shared.ErrStorage, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", shared.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to chmod temp file: %v", shared.ErrStorage, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write snapshot: %v", shared.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close temp file: %v", shared.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: failed to replace snapshot: %v", shared.ErrStorage, err)
	}
	return nil
}

func (f *FileStorage) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove %s: %v", shared.ErrStorage, f.path, err)
	}
	return nil
}
