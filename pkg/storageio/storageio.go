// Package storageio abstracts byte-level file IO over a path namespace
// so converters and serializers can write artifacts to local disk or an
// S3-compatible object store through one interface.
package storageio

import "context"

// Storage reads and writes bytes at a path. Implementations normalize
// paths but attach no further meaning to them.
type Storage interface {
	// Read returns the full content at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path, replacing any existing content.
	Write(ctx context.Context, path string, data []byte) error

	// Exists reports whether anything lives at path.
	Exists(ctx context.Context, path string) (bool, error)

	// IsFile reports whether path is a regular file with content,
	// rather than a directory or container.
	IsFile(ctx context.Context, path string) (bool, error)

	// EnsureDirectory creates the directory when the backend has
	// directories; object stores treat it as a no-op.
	EnsureDirectory(ctx context.Context, path string) error
}
