package storageio

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

// Disk stores bytes on the local filesystem.
type Disk struct{}

var _ Storage = (*Disk)(nil)

// NewDisk creates a local filesystem storage.
func NewDisk() *Disk {
	return &Disk{}
}

func (d *Disk) Read(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (d *Disk) Write(_ context.Context, path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (d *Disk) Exists(_ context.Context, path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Disk) IsFile(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (d *Disk) EnsureDirectory(_ context.Context, path string) error {
	return os.MkdirAll(path, 0o755)
}
