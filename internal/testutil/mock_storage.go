// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pos-insight/backend/internal/models"
	"github.com/pos-insight/backend/internal/storage"
)

// MockStorage implements storage.Store entirely in memory.
type MockStorage struct {
	mu       sync.RWMutex
	archives map[string]*models.ArchiveInfo
	data     map[string][]byte
	paths    map[string]string
}

// NewMockStorage creates a new mock storage.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		archives: make(map[string]*models.ArchiveInfo),
		data:     make(map[string][]byte),
		paths:    make(map[string]string),
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.ArchiveInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := generateTestID()
	info := &models.ArchiveInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
	m.archives[id] = info
	m.data[id] = data
	return info, nil
}

func (m *MockStorage) Get(id string) (*models.ArchiveInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.archives[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return info, nil
}

func (m *MockStorage) List(limit int) ([]*models.ArchiveInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]*models.ArchiveInfo, 0, len(m.archives))
	for _, info := range m.archives {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UploadedAt.After(infos[j].UploadedAt)
	})
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.archives[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(m.archives, id)
	delete(m.data, id)
	delete(m.paths, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.ArchiveInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.archives[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	info.Name = newName
	return info, nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if path, ok := m.paths[id]; ok {
		return path, nil
	}
	if _, ok := m.archives[id]; !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return "/mock/path/" + id, nil
}

func (m *MockStorage) SetStatus(id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.archives[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	info.Status = status
	return nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddArchive registers an archive that points at a real file on disk,
// for tests that run the extractor against it.
func (m *MockStorage) AddArchive(id, name, path string) *models.ArchiveInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := &models.ArchiveInfo{
		ID:         id,
		Name:       name,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}
	m.archives[id] = info
	m.paths[id] = path
	return info
}

// ArchiveCount returns the number of stored archives.
func (m *MockStorage) ArchiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.archives)
}

var (
	testIDCounter int
	testIDMutex   sync.Mutex
)

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}
