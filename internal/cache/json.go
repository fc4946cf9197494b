package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/starford/memex/internal/storage"
)

// JSONStore keeps the cache in a single JSON file with "embeddings" and
// "hashes" objects. A sibling .lock file serialises access across processes,
// e.g. the server and a CLI invocation sharing one checkout.
type JSONStore struct {
	path string
	lock *flock.Flock
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore returns a store for the file at path. The file is created on
// first Save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, lock: flock.New(path + ".lock")}
}

// Load reads the cache file. A missing file yields an empty cache.
func (s *JSONStore) Load() (*Data, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", s.path, err)
	}

	d := NewData()
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("cache: decode %s: %w", s.path, err)
	}
	if d.Embeddings == nil {
		d.Embeddings = make(map[string][]float32)
	}
	if d.Hashes == nil {
		d.Hashes = make(map[string]string)
	}
	return d, nil
}

// Save rewrites the cache file atomically while holding the file lock.
func (s *JSONStore) Save(d *Data) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("cache: lock: %w", err)
	}
	defer s.lock.Unlock() //nolint:errcheck
	return storage.WriteFileAtomic(s.path, payload)
}

// Close implements Store.
func (s *JSONStore) Close() error { return nil }
