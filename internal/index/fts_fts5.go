//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chapters_fts USING fts5(
			book_path UNINDEXED,
			chapter_id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, bookPath, chapterID, title, body string) error {
	ftsDelete(tx, bookPath, chapterID)
	_, err := tx.Exec(`INSERT INTO chapters_fts (book_path, chapter_id, title, body) VALUES (?, ?, ?, ?)`,
		bookPath, chapterID, title, body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, bookPath, chapterID string) {
	_, _ = tx.Exec(`DELETE FROM chapters_fts WHERE book_path = ? AND chapter_id = ?`, bookPath, chapterID)
}

func ftsDeleteBook(tx *sql.Tx, bookPath string) {
	_, _ = tx.Exec(`DELETE FROM chapters_fts WHERE book_path = ?`, bookPath)
}

// Search performs an FTS5 full-text search and returns matching chapters with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.book_path,
		       COALESCE(c.book_title, ''),
		       f.chapter_id,
		       f.title,
		       snippet(chapters_fts, 3, '<b>', '</b>', '...', 32)
		FROM chapters_fts f
		LEFT JOIN chapters c ON c.book_path = f.book_path AND c.chapter_id = f.chapter_id
		WHERE chapters_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.BookPath, &r.BookTitle, &r.ChapterID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
