package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// FileStorage defines the interface for the media store backends.
type FileStorage interface {
	// Save writes the content of r under key and returns the number of bytes written.
	Save(ctx context.Context, key string, contentType string, r io.Reader) (int64, error)

	// Open returns a reader for the object stored under key. Callers must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object stored under key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// Error constants for storage layer
var (
	ErrObjectNotFound = errors.New("object not found in storage")
	ErrInvalidKey     = errors.New("invalid object key")
)

// CleanKey rejects keys that could escape the storage root. Keys are flat file names.
func CleanKey(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key != path.Base(key) || key == "." || key == ".." {
		return "", ErrInvalidKey
	}
	return key, nil
}
