package index

// ChapterIndex is the set of index operations consumed by the services.
type ChapterIndex interface {
	UpsertChapter(c ChapterRow, body string) error
	DeleteChapter(bookPath, chapterID string) error
	DeleteBook(bookPath string) error
	BookChecksums(bookPath string) (map[string]string, error)
	Books() ([]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies ChapterIndex at compile time.
var _ ChapterIndex = (*DB)(nil)
