// Package cache persists the semantic backend's embeddings and content hashes.
package cache

import (
	"fmt"
	"maps"
)

// Formats accepted by Open.
const (
	FormatJSON   = "json"
	FormatSQLite = "sqlite"
)

// Data is the full cache: path -> vector and path -> content hash.
// A path can carry a hash without a vector when its last embedding failed.
type Data struct {
	Embeddings map[string][]float32 `json:"embeddings"`
	Hashes     map[string]string    `json:"hashes"`
}

// NewData returns an empty cache.
func NewData() *Data {
	return &Data{
		Embeddings: make(map[string][]float32),
		Hashes:     make(map[string]string),
	}
}

// Clone returns a copy whose maps can be modified independently. Vectors
// are shared; they are never mutated in place.
func (d *Data) Clone() *Data {
	return &Data{
		Embeddings: maps.Clone(d.Embeddings),
		Hashes:     maps.Clone(d.Hashes),
	}
}

// Store loads and saves the whole cache at once.
type Store interface {
	Load() (*Data, error)
	Save(d *Data) error
	Close() error
}

// Open returns the store for format at path.
func Open(format, path string) (Store, error) {
	switch format {
	case "", FormatJSON:
		return NewJSONStore(path), nil
	case FormatSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("cache: unknown format %q", format)
	}
}
