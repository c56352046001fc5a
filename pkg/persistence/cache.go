package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheVersion is the current version of the cache format.
const CacheVersion = 1

// Cache is the persisted state of a host bridge.
type Cache struct {
	// Version is the cache format version.
	Version int `json:"version"`

	// SavedAt is when the cache was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Accessories contains the cached accessories.
	Accessories []CachedAccessory `json:"accessories,omitempty"`
}

// CachedAccessory is the persisted form of a host accessory.
type CachedAccessory struct {
	UUID        string          `json:"uuid"`
	DisplayName string          `json:"display_name"`
	Category    uint16          `json:"category"`
	Services    []CachedService `json:"services,omitempty"`
	Context     map[string]any  `json:"context,omitempty"`
}

// CachedService is the persisted form of a host service.
type CachedService struct {
	Type            string                 `json:"type"`
	Subtype         string                 `json:"subtype,omitempty"`
	IID             uint64                 `json:"iid,omitempty"`
	Name            string                 `json:"name,omitempty"`
	Primary         bool                   `json:"primary,omitempty"`
	Hidden          bool                   `json:"hidden,omitempty"`
	Linked          []string               `json:"linked,omitempty"`
	Characteristics []CachedCharacteristic `json:"characteristics,omitempty"`
}

// CachedCharacteristic is the persisted form of a host characteristic.
type CachedCharacteristic struct {
	Type  string          `json:"type"`
	IID   uint64          `json:"iid"`
	Value any             `json:"value,omitempty"`
	Props json.RawMessage `json:"props,omitempty"`
}

// Store persists a Cache.
type Store interface {
	Save(cache *Cache) error
	Load() (*Cache, error)
	Clear() error
}

// FileStore keeps the cache in a JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a new file store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}

// Save persists the cache to disk.
func (s *FileStore) Save(cache *Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	stamp(cache)

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}

	// Replace the cache file atomically.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the cache from disk.
// Returns nil, nil if the file doesn't exist (empty cache).
func (s *FileStore) Load() (*Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cache := &Cache{}
	if err := json.Unmarshal(data, cache); err != nil {
		return nil, err
	}

	return cache, nil
}

// Clear removes the cache file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func stamp(cache *Cache) {
	cache.Version = CacheVersion
	if cache.SavedAt.IsZero() {
		cache.SavedAt = time.Now()
	}
}

// Compile-time interface satisfaction check.
var _ Store = (*FileStore)(nil)
