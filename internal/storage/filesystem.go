package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/serik1987/corefacility/internal/config"
)

// FilesystemStore implements MediaStore on a local directory.
type FilesystemStore struct {
	root    string
	baseURL string
	logger  zerolog.Logger
}

// NewFilesystemStore creates a filesystem media store rooted at
// media.root. The directory is created when missing.
func NewFilesystemStore(cfg config.MediaConfig, logger zerolog.Logger) (*FilesystemStore, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &FilesystemStore{
		root:    cfg.Root,
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		logger:  logger.With().Str("component", "media_fs").Logger(),
	}, nil
}

// path maps a media name to a filesystem path, rejecting traversal.
func (s *FilesystemStore) path(name string) (string, error) {
	clean := filepath.Clean("/" + name)
	if clean == "/" {
		return "", fmt.Errorf("empty media name")
	}
	return filepath.Join(s.root, clean), nil
}

// Put stores a file under the given name.
func (s *FilesystemStore) Put(ctx context.Context, name string, content io.Reader) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp media file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move media file into place: %w", err)
	}

	s.logger.Debug().Str("name", name).Msg("stored media file")
	return nil
}

// Get opens a stored file.
func (s *FilesystemStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	return f, nil
}

// Delete removes a stored file.
func (s *FilesystemStore) Delete(ctx context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// Exists checks whether the named file is stored.
func (s *FilesystemStore) Exists(ctx context.Context, name string) (bool, error) {
	path, err := s.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat media file: %w", err)
	}
	return true, nil
}

// URL returns the public URL of the file.
func (s *FilesystemStore) URL(name string) string {
	return s.baseURL + "/" + strings.TrimPrefix(name, "/")
}

// Ensure FilesystemStore implements MediaStore.
var _ MediaStore = (*FilesystemStore)(nil)
