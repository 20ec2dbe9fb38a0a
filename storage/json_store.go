package storage

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second
)

// JSONStore implements Store using a single JSON file, written atomically
// on every save. A corrupt or missing file loads as an empty queue rather
// than failing start-up.
type JSONStore struct {
	path string
	lock *FileLock
	log  *slog.Logger
	mu   sync.Mutex
}

// queueFile is the top-level JSON structure.
type queueFile struct {
	Version   string        `json:"version"`
	UpdatedAt time.Time     `json:"updated_at"`
	Entries   []*QueueEntry `json:"entries"`
}

// NewJSONStore creates a JSON file store at the given path and takes the
// cross-process file lock.
func NewJSONStore(path string, log *slog.Logger) (*JSONStore, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &JSONStore{
		path: path,
		lock: NewFileLock(path),
		log:  log,
	}

	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads the persisted queue record. Absent or corrupt files yield an
// empty queue: the engine should start, not crash, on a damaged record.
func (s *JSONStore) Load() ([]*QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*QueueEntry{}, nil
		}
		return nil, &StorageError{Op: "load", Err: err}
	}

	var file queueFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.log.Warn("queue file corrupt, starting with empty queue",
			"path", s.path, "err", err)
		return []*QueueEntry{}, nil
	}

	entries := file.Entries
	if entries == nil {
		entries = []*QueueEntry{}
	}
	return entries, nil
}

// Save atomically overwrites the persisted queue record.
func (s *JSONStore) Save(entries []*QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file := queueFile{
		Version:   schemaVersion,
		UpdatedAt: time.Now(),
		Entries:   entries,
	}

	writer, err := NewAtomicWriter(s.path)
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&file); err != nil {
		writer.Abort()
		return &StorageError{Op: "save", Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	return nil
}

// Close releases the file lock.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lock.Unlock()
}
