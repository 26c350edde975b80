// Package testutil provides shared test helpers for setting up document
// directories and graph stores.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/storage"
)

// TestStore creates a temporary SQLite graph store that is automatically closed.
func TestStore(t *testing.T) *graphstore.SQLite {
	t.Helper()
	s, err := graphstore.OpenSQLite(filepath.Join(t.TempDir(), "historian-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

// TestDocs creates a temporary documents directory holding files and
// returns it with a storage.FS source.
func TestDocs(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		WriteDoc(t, dir, name, content)
	}
	src, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, src
}

// WriteDoc writes one document into dir.
func WriteDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
