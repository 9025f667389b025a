// Package library maintains library.json, the process-wide catalog of every
// known book. The file lives outside any book and its location is injected.
// Updates are read-modify-write of the whole file; writers in other
// processes are not coordinated.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/htmltext"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
	"github.com/starford/quill/internal/storage"
)

// FileName is the catalog file name inside the application data directory.
const FileName = "library.json"

// corruptSuffix names the copy kept when a corrupt library.json is
// replaced by an empty catalog.
const corruptSuffix = ".corrupt"

// UpsertOptions tune Upsert.
type UpsertOptions struct {
	// MarkOpened stamps lastOpenedAt with the current time.
	MarkOpened bool
}

// RemoveOptions tune Remove.
type RemoveOptions struct {
	// DeleteFiles also removes the book directory, which must pass the
	// book test.
	DeleteFiles bool
}

// Library reads and writes one library.json.
type Library struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// New returns a Library stored at path. The file is created lazily.
func New(path string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{path: path, logger: logger}
}

// DefaultPath returns <user config dir>/quill/library.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("library: locate config dir: %w", err)
	}
	return filepath.Join(dir, "quill", FileName), nil
}

// Path returns the library.json location.
func (l *Library) Path() string { return l.path }

// Load returns the catalog. A missing or corrupt file yields an empty one.
func (l *Library) Load() (*models.LibraryIndex, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Save writes the catalog.
func (l *Library) Save(idx *models.LibraryIndex) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(idx)
}

// Upsert records the project's current state, replacing any entry with the
// same normalized path. The entry id survives, and so does lastOpenedAt
// unless opts.MarkOpened is set. Entries are kept most recently opened first.
func (l *Library) Upsert(p *models.BookProject, opts UpsertOptions) (*models.LibraryBookEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, err := l.load()
	if err != nil {
		return nil, err
	}
	entry := Entry(p, idx.StatusRules)

	pos := find(idx, entry.Path)
	if pos >= 0 {
		prev := idx.Books[pos]
		entry.ID = prev.ID
		entry.LastOpenedAt = prev.LastOpenedAt
		idx.Books = append(idx.Books[:pos], idx.Books[pos+1:]...)
	} else {
		entry.ID = uuid.NewString()
	}
	if opts.MarkOpened {
		entry.LastOpenedAt = models.Now()
	}
	idx.Books = append(idx.Books, entry)
	sortByOpened(idx.Books)

	if err := l.save(idx); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Remove drops the entry for path. With opts.DeleteFiles the directory is
// deleted too, but only if it is recognizably a book; otherwise the call
// fails with ErrUnsafeDeletion and nothing is touched.
func (l *Library) Remove(path string, opts RemoveOptions) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	abs := absPath(path)
	if opts.DeleteFiles && !layout.IsBook(abs) {
		return apperr.New(apperr.ErrUnsafeDeletion, "library remove", abs,
			errors.New("folder has neither book.json nor chapters/, assets/, versions/"))
	}

	idx, err := l.load()
	if err != nil {
		return err
	}
	if opts.DeleteFiles {
		if err := os.RemoveAll(abs); err != nil {
			return apperr.New(apperr.ErrAccess, "library remove", abs, err)
		}
		l.logger.Info("book files deleted", slog.String("path", abs))
	}

	pos := find(idx, abs)
	if pos < 0 {
		return nil
	}
	idx.Books = append(idx.Books[:pos], idx.Books[pos+1:]...)
	return l.save(idx)
}

// Entry derives a catalog entry from a loaded project. ID and lastOpenedAt
// are left for the caller.
func Entry(p *models.BookProject, rules models.StatusRules) models.LibraryBookEntry {
	meta := p.Metadata
	count := len(meta.ChapterOrder)
	return models.LibraryBookEntry{
		Path:         absPath(p.Path),
		Title:        meta.Title,
		Author:       meta.Author,
		Status:       Status(meta.IsPublished, count, rules),
		ChapterCount: count,
		WordCount:    WordCount(p),
		CoverImage:   meta.CoverImage,
		IsPublished:  meta.IsPublished,
		PublishedAt:  meta.PublishedAt,
		UpdatedAt:    meta.UpdatedAt,
	}
}

// Status derives the catalog status of a book.
func Status(published bool, chapterCount int, rules models.StatusRules) models.BookStatus {
	threshold := rules.AdvancedChapterThreshold
	if threshold <= 0 {
		threshold = models.DefaultAdvancedChapterThreshold
	}
	switch {
	case published:
		return models.StatusPublished
	case chapterCount >= threshold:
		return models.StatusAdvanced
	default:
		return models.StatusNew
	}
}

// WordCount sums the words of every loaded chapter's de-tagged content.
func WordCount(p *models.BookProject) int {
	total := 0
	for _, c := range p.Chapters {
		if c != nil {
			total += htmltext.WordCount(c.Content)
		}
	}
	return total
}

// NormalizePath returns the key used to compare book paths: absolute and
// clean, case-folded on Windows.
func NormalizePath(p string) string {
	abs := absPath(p)
	if runtime.GOOS == "windows" {
		return strings.ToLower(abs)
	}
	return abs
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func find(idx *models.LibraryIndex, path string) int {
	key := NormalizePath(path)
	for i, b := range idx.Books {
		if NormalizePath(b.Path) == key {
			return i
		}
	}
	return -1
}

func sortByOpened(books []models.LibraryBookEntry) {
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].LastOpenedAt > books[j].LastOpenedAt
	})
}

func (l *Library) load() (*models.LibraryIndex, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return schema.DefaultLibrary(), nil
		}
		return nil, apperr.New(apperr.ErrAccess, "library load", l.path, err)
	}
	idx, err := schema.DecodeLibrary(data)
	if err != nil {
		backup, werr := l.backupCorrupt(data)
		if werr != nil {
			return nil, apperr.New(apperr.ErrAccess, "library backup", backup, werr)
		}
		l.logger.Warn("library index is corrupt, starting empty",
			slog.String("path", l.path),
			slog.String("backup", backup),
			slog.String("error", err.Error()),
		)
		return schema.DefaultLibrary(), nil
	}

	seen := make(map[string]struct{}, len(idx.Books))
	books := idx.Books[:0]
	for _, b := range idx.Books {
		key := NormalizePath(b.Path)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		books = append(books, b)
	}
	idx.Books = books
	return idx, nil
}

// backupCorrupt copies unreadable catalog bytes beside library.json so the
// next save does not lose them.
func (l *Library) backupCorrupt(data []byte) (string, error) {
	backup := l.path + corruptSuffix
	fsys, err := storage.NewFS(filepath.Dir(l.path))
	if err != nil {
		return backup, err
	}
	return backup, fsys.Write(filepath.Base(backup), data)
}

func (l *Library) save(idx *models.LibraryIndex) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.New(apperr.ErrAccess, "library save", dir, err)
	}
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return apperr.New(apperr.ErrAccess, "library save", dir, err)
	}
	idx.UpdatedAt = models.Now()
	if idx.Books == nil {
		idx.Books = []models.LibraryBookEntry{}
	}
	if err := storage.WriteJSON(fsys, filepath.Base(l.path), idx); err != nil {
		return apperr.New(apperr.ErrAccess, "library save", l.path, err)
	}
	return nil
}
