package models

// BookStatus is the derived progress label of a library entry.
type BookStatus string

const (
	StatusNew       BookStatus = "recien_creado"
	StatusAdvanced  BookStatus = "avanzado"
	StatusPublished BookStatus = "publicado"
)

// DefaultAdvancedChapterThreshold is the chapter count at which a book is
// considered advanced.
const DefaultAdvancedChapterThreshold = 6

// StatusRules parameterize status derivation.
type StatusRules struct {
	AdvancedChapterThreshold int `json:"advancedChapterThreshold"`
}

// LibraryIndex is the process-wide library.json catalog.
type LibraryIndex struct {
	Books       []LibraryBookEntry `json:"books"`
	StatusRules StatusRules        `json:"statusRules"`
	UpdatedAt   string             `json:"updatedAt"`
}

// LibraryBookEntry is one known book.
type LibraryBookEntry struct {
	ID           string     `json:"id"`
	Path         string     `json:"path"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	Status       BookStatus `json:"status"`
	ChapterCount int        `json:"chapterCount"`
	WordCount    int        `json:"wordCount"`
	CoverImage   string     `json:"coverImage"`
	IsPublished  bool       `json:"isPublished"`
	PublishedAt  string     `json:"publishedAt"`
	LastOpenedAt string     `json:"lastOpenedAt"`
	UpdatedAt    string     `json:"updatedAt"`
}
