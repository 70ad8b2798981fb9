// Package storage provides the public media file store used for user and
// project avatars. Backends: local filesystem (default) and S3-compatible
// object storage.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrMediaNotFound indicates the named media file does not exist.
var ErrMediaNotFound = errors.New("media file not found")

// MediaStore persists public files addressed by name. Names are generated
// by the owning entity (avatar file managers) and already carry the
// cache-busting hash component.
type MediaStore interface {
	// Put stores a file under the given name, replacing any previous
	// content.
	Put(ctx context.Context, name string, content io.Reader) error

	// Get opens a stored file. The caller must close the reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a stored file. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, name string) error

	// Exists checks whether the named file is stored.
	Exists(ctx context.Context, name string) (bool, error)

	// URL returns the public URL under which the file is served.
	URL(name string) string
}
