package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	historiesFileName = "histories.json"
	filePerms         = 0600 // Owner read/write only
)

// FileStore persists histories as one JSON file keyed by account address.
type FileStore struct {
	mu       sync.Mutex
	filePath string
	data     map[string][]Entry
}

// NewFileStore loads (or initializes) the histories file under dataDir.
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &FileStore{
		filePath: filepath.Join(dataDir, historiesFileName),
		data:     make(map[string][]Entry),
	}

	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read histories file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse histories file: %w", err)
	}
	if s.data == nil {
		s.data = make(map[string][]Entry)
	}
	return s, nil
}

// Load returns the history list for account. Unknown accounts get an empty
// list, not an error.
func (s *FileStore) Load(account string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.data[account]...), nil
}

// Append adds an entry to account's list and rewrites the file.
func (s *FileStore) Append(account string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[account] = append(s.data[account], e)
	return s.save()
}

// save writes the file atomically via tmp+rename. Caller holds mu.
func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal histories: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, raw, filePerms); err != nil {
		return fmt.Errorf("failed to write histories file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save histories file: %w", err)
	}
	return nil
}
