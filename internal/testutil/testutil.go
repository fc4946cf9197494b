// Package testutil provides shared test helpers for setting up knowledge repositories.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/memex/internal/storage"
)

// TestRepo creates a temporary repository root with a storage.FS over it.
func TestRepo(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteFile writes content to rel under root, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteEntry writes a knowledge document with the given YAML frontmatter
// (without the --- markers) and body.
func WriteEntry(t *testing.T, root, rel, frontmatter, body string) {
	t.Helper()
	WriteFile(t, root, rel, "---\n"+frontmatter+"\n---\n"+body)
}
