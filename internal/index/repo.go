package index

import (
	"fmt"
	"time"
)

// ChapterRow represents a row in the chapters table.
type ChapterRow struct {
	BookPath  string
	ChapterID string
	BookTitle string
	Title     string
	Checksum  string
	Words     int
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	BookPath  string `json:"bookPath"`
	BookTitle string `json:"bookTitle"`
	ChapterID string `json:"chapterId"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
}

// UpsertChapter inserts or replaces a chapter and its FTS entry within a transaction.
func (db *DB) UpsertChapter(c ChapterRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// The chapters table keeps the body for the LIKE fallback search.
	_, err = tx.Exec(`
		INSERT INTO chapters (book_path, chapter_id, book_title, title, checksum, words, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_path, chapter_id) DO UPDATE SET
			book_title = excluded.book_title,
			title      = excluded.title,
			checksum   = excluded.checksum,
			words      = excluded.words,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, c.BookPath, c.ChapterID, c.BookTitle, c.Title, c.Checksum, c.Words, body, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert chapter: %w", err)
	}

	if err := ftsUpsert(tx, c.BookPath, c.ChapterID, c.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteChapter removes one chapter and its FTS entry.
func (db *DB) DeleteChapter(bookPath, chapterID string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, bookPath, chapterID)
	if _, err := tx.Exec(`DELETE FROM chapters WHERE book_path = ? AND chapter_id = ?`, bookPath, chapterID); err != nil {
		return fmt.Errorf("index: delete chapter: %w", err)
	}
	return tx.Commit()
}

// DeleteBook removes every chapter of a book.
func (db *DB) DeleteBook(bookPath string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeleteBook(tx, bookPath)
	if _, err := tx.Exec(`DELETE FROM chapters WHERE book_path = ?`, bookPath); err != nil {
		return fmt.Errorf("index: delete book: %w", err)
	}
	return tx.Commit()
}

// BookChecksums returns chapter id → checksum for one book.
func (db *DB) BookChecksums(bookPath string) (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT chapter_id, checksum FROM chapters WHERE book_path = ?`, bookPath)
	if err != nil {
		return nil, fmt.Errorf("index: book checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Books returns every indexed book path.
func (db *DB) Books() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT book_path FROM chapters ORDER BY book_path`)
	if err != nil {
		return nil, fmt.Errorf("index: books: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// BookWords returns the indexed word total of a book.
func (db *DB) BookWords(bookPath string) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COALESCE(SUM(words), 0) FROM chapters WHERE book_path = ?`, bookPath).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("index: book words: %w", err)
	}
	return n, nil
}

// SetBookTitle refreshes the denormalized book title of every chapter row.
func (db *DB) SetBookTitle(bookPath, title string) error {
	if _, err := db.conn.Exec(`UPDATE chapters SET book_title = ? WHERE book_path = ? AND book_title <> ?`, title, bookPath, title); err != nil {
		return fmt.Errorf("index: set book title: %w", err)
	}
	return nil
}
