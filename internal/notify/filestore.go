package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore is a flat JSON key-value file. It backs the settings cache
// when the database write fails and holds the scheduled-notification
// mirror entries used for inspection and cancellation.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// OpenFileStore loads (or creates) the store file at path.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &FileStore{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}
	if s.entries == nil {
		s.entries = make(map[string]string)
	}
	return s, nil
}

// Get returns the value for key and whether it was present.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.entries[key]
	return value, ok
}

// Set writes key=value and flushes the whole file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return s.save()
}

// Delete removes key if present.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.save()
}

// DeletePrefix removes every key starting with prefix and returns the
// removed keys.
func (s *FileStore) DeletePrefix(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			removed = append(removed, key)
			delete(s.entries, key)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, s.save()
}

// save must be called with the lock held.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	return nil
}
