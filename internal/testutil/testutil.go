// Package testutil provides shared test helpers for setting up books and databases.
package testutil

import (
	"log/slog"
	"os"
	"testing"

	"github.com/starford/quill/internal/bookstore"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/models"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "quill-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBook creates a new book in a temporary directory and returns its
// store and freshly created project.
func TestBook(t *testing.T, title string) (*bookstore.Store, *models.BookProject) {
	t.Helper()
	store, p, err := bookstore.Create(t.TempDir(), title, "Test Author", QuietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return store, p
}

// QuietLogger discards everything below Error.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
