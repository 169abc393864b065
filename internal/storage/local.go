package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/file-panel/backend/internal/models"
	"github.com/google/uuid"
)

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	*index
	uploadDir string
}

// NewLocalStore creates a new LocalStore.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		index:     newIndex(),
		uploadDir: uploadDir,
	}, nil
}

// Save writes the stream to a new file named by a generated id.
func (s *LocalStore) Save(_ context.Context, name string, r io.Reader, size int64) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id)

	in, err := inspect(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, in)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if size != UnknownSize && written != size {
		os.Remove(path)
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, written, size)
	}

	info := in.info(id, name, written)
	s.put(info)
	return info, nil
}

// Get retrieves file metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	return s.get(id)
}

// List returns the most recent files.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	return s.list(limit), nil
}

// Delete removes a file from storage.
func (s *LocalStore) Delete(_ context.Context, id string) error {
	if _, err := s.get(id); err != nil {
		return err
	}

	path := filepath.Join(s.uploadDir, id)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	s.remove(id)
	return nil
}
