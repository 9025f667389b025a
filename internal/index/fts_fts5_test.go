//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"
	"time"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM chapters_fts`).Scan(&count); err != nil {
		t.Fatalf("chapters_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := ChapterRow{
		BookPath:  "/books/fts",
		ChapterID: "01",
		BookTitle: "Index",
		Title:     "Search",
		Checksum:  "f1",
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertChapter(row, "Quill provides powerful full-text search across chapters."); err != nil {
		t.Fatalf("UpsertChapter: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Snippet, "<b>powerful</b>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
	if results[0].BookTitle != "Index" {
		t.Errorf("book title = %q", results[0].BookTitle)
	}
}

func TestFTS5_DeleteBookClearsFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertChapter(ChapterRow{BookPath: "/b", ChapterID: "01", Checksum: "1", UpdatedAt: time.Now()}, "ephemeral words")
	if err := db.DeleteBook("/b"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	results, err := db.Search("ephemeral", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}
