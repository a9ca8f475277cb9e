// Package storage keeps uploaded support archives on the local
// filesystem, keyed by generated IDs.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pos-insight/backend/internal/models"
)

// ErrNotFound means no archive with the given ID is stored.
var ErrNotFound = errors.New("archive not found")

// Store defines the interface for archive storage.
type Store interface {
	Save(name string, r io.Reader) (*models.ArchiveInfo, error)
	Get(id string) (*models.ArchiveInfo, error)
	List(limit int) ([]*models.ArchiveInfo, error)
	Delete(id string) error
	Rename(id string, newName string) (*models.ArchiveInfo, error)
	GetFilePath(id string) (string, error)
	SetStatus(id string, status string) error
}

type storedArchive struct {
	info *models.ArchiveInfo
	path string
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	mu        sync.RWMutex
	uploadDir string
	archives  map[string]*storedArchive
}

// NewLocalStore creates a new LocalStore rooted at uploadDir.
func NewLocalStore(uploadDir string) (*LocalStore, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	return &LocalStore{
		uploadDir: uploadDir,
		archives:  make(map[string]*storedArchive),
	}, nil
}

// Save writes the uploaded archive to disk. The stored file keeps the
// original archive extension; the extractor selects the decompressor
// from it.
func (s *LocalStore) Save(name string, r io.Reader) (*models.ArchiveInfo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.uploadDir, id+archiveExt(name))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.ArchiveInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[id] = &storedArchive{info: info, path: path}

	return info, nil
}

// Get retrieves archive metadata by ID.
func (s *LocalStore) Get(id string) (*models.ArchiveInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.archives[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return a.info, nil
}

// List returns the most recently uploaded archives.
func (s *LocalStore) List(limit int) ([]*models.ArchiveInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.ArchiveInfo
	for _, a := range s.archives {
		list = append(list, a.info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UploadedAt.After(list[j].UploadedAt)
	})

	if len(list) > limit {
		list = list[:limit]
	}

	return list, nil
}

// Delete removes an archive from storage.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.archives[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}

	delete(s.archives, id)
	return nil
}

// Rename updates the display name of an archive.
func (s *LocalStore) Rename(id string, newName string) (*models.ArchiveInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.archives[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	a.info.Name = newName
	return a.info, nil
}

// GetFilePath returns the on-disk path of an archive.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.archives[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return a.path, nil
}

// SetStatus updates the archive lifecycle status.
func (s *LocalStore) SetStatus(id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.archives[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	a.info.Status = status
	return nil
}

// archiveExt preserves the compound .tar.gz suffix; everything else
// keeps its plain extension.
func archiveExt(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") {
		return ".tar.gz"
	}
	return strings.ToLower(filepath.Ext(name))
}
