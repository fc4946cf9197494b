// Package storage defines the document store abstraction.
package storage

import "time"

// Document describes one Markdown file found under the store root.
type Document struct {
	// Path is relative to the store root, using forward slashes.
	Path     string
	Checksum string
	ModTime  time.Time
}

// Provider is the document-fetch capability consumed by the knowledge index.
type Provider interface {
	// List returns every .md file under dir (relative to the store root).
	// A missing dir yields an error matching fs.ErrNotExist.
	List(dir string) ([]Document, error)
	// Read returns the raw bytes of the file at path (relative to the store root).
	Read(path string) ([]byte, error)
}
