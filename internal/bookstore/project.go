package bookstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
)

const (
	untitled  = "Untitled"
	maxSuffix = 999
)

var unsafeFolderRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)

// LoadOptions tune Load.
type LoadOptions struct {
	// Reconcile adopts chapter files missing from the order and writes
	// default chapters for ordered ids without a file.
	Reconcile bool
}

// Load assembles the project. Chapters named in the order are loaded when
// present; missing or corrupt files are left out without failing the load.
func (s *Store) Load(opts LoadOptions) (*models.BookProject, error) {
	meta, err := s.readMetadata()
	if err != nil {
		return nil, err
	}

	chapters := make(map[string]*models.ChapterDocument, len(meta.ChapterOrder))
	for _, id := range meta.ChapterOrder {
		c, err := s.LoadChapter(id)
		switch {
		case err == nil:
			chapters[id] = c
		case errors.Is(err, apperr.ErrNotFound):
		default:
			s.logger.Warn("skipping chapter", slog.String("chapter", id), slog.String("error", err.Error()))
		}
	}

	if opts.Reconcile {
		if meta, err = s.reconcile(meta, chapters); err != nil {
			return nil, err
		}
	}
	meta.Chats = s.LoadChats(meta.Chats, meta.ChapterOrder)

	return &models.BookProject{
		Path:     s.Root(),
		Metadata: meta,
		Chapters: chapters,
	}, nil
}

func (s *Store) reconcile(meta *models.BookMetadata, chapters map[string]*models.ChapterDocument) (*models.BookMetadata, error) {
	onDisk, err := s.chapterIDsOnDisk()
	if err != nil {
		return nil, err
	}

	out := meta.Clone()
	adopted := false
	for _, id := range onDisk {
		if out.HasChapter(id) {
			continue
		}
		c, err := s.LoadChapter(id)
		if err != nil {
			s.logger.Warn("adopting unreadable chapter file with defaults",
				slog.String("chapter", id), slog.String("error", err.Error()))
			c = schema.DefaultChapter(id, schema.DefaultChapterTitle(id))
		}
		chapters[id] = c
		out.ChapterOrder = append(out.ChapterOrder, id)
		adopted = true
	}

	for _, id := range out.ChapterOrder {
		if _, ok := chapters[id]; ok || !layout.ValidID(id) {
			continue
		}
		if s.fs.Exists(layout.ChapterFile(id)) {
			// Present but corrupt; leave the bytes for manual recovery.
			continue
		}
		c, err := s.SaveChapter(schema.DefaultChapter(id, schema.DefaultChapterTitle(id)))
		if err != nil {
			return nil, err
		}
		chapters[id] = c
	}

	if !adopted {
		return out, nil
	}
	return s.SaveMetadata(out)
}

// Create scaffolds a new book under parentDir in a folder named after the
// title. An occupied folder name gets a numeric suffix (" 2", " 3", ...)
// until a free or reusable folder is found.
func Create(parentDir, title, author string, logger *slog.Logger) (*Store, *models.BookProject, error) {
	title = cleanTitle(title)
	base := FolderName(title)
	for n := 1; n <= maxSuffix; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s %d", base, n)
		}
		dir := filepath.Join(parentDir, name)
		ok, err := reusable(dir)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return create(dir, title, author, logger)
		}
	}
	return nil, nil, apperr.New(apperr.ErrPrecondition, "create book", filepath.Join(parentDir, base),
		errors.New("no free folder name"))
}

// CreateAt scaffolds a new book in exactly dir. It refuses a directory that
// already holds a book or unrelated content.
func CreateAt(dir, title, author string, logger *slog.Logger) (*Store, *models.BookProject, error) {
	ok, err := reusable(dir)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		if layout.HasMetadata(dir) {
			return nil, nil, apperr.New(apperr.ErrAlreadyExists, "create book", dir, nil)
		}
		return nil, nil, apperr.New(apperr.ErrPrecondition, "create book", dir,
			errors.New("folder is not empty and is not a book scaffold"))
	}
	return create(dir, cleanTitle(title), author, logger)
}

func create(dir, title, author string, logger *slog.Logger) (*Store, *models.BookProject, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, apperr.New(apperr.ErrAccess, "create book", dir, err)
	}
	s, err := Open(dir, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := s.mkdirs(layout.CreateDirs); err != nil {
		return nil, nil, err
	}

	// A reused scaffold keeps the chapters it already has.
	ids, err := s.chapterIDsOnDisk()
	if err != nil {
		return nil, nil, err
	}
	chapters := make(map[string]*models.ChapterDocument)
	if len(ids) == 0 {
		first, err := s.SaveChapter(schema.DefaultChapter("01", schema.DefaultChapterTitle("01")))
		if err != nil {
			return nil, nil, err
		}
		ids = []string{first.ID}
	}
	meta, err := s.SaveMetadata(schema.DefaultMetadata(title, strings.TrimSpace(author), ids))
	if err != nil {
		return nil, nil, err
	}
	if !s.fs.Exists(layout.ConfigFile) {
		if err := s.SaveAppConfig(schema.DefaultAppConfig()); err != nil {
			return nil, nil, err
		}
	}
	for _, id := range ids {
		if c, err := s.LoadChapter(id); err == nil {
			chapters[id] = c
		}
		meta.Chats.Chapters[id] = []models.ChatMessage{}
	}

	s.logger.Info("book created", slog.String("title", title), slog.Int("chapters", len(ids)))
	return s, &models.BookProject{
		Path:     s.Root(),
		Metadata: meta,
		Chapters: chapters,
	}, nil
}

// reusable reports whether dir is absent, empty, or a scaffold without
// book.json.
func reusable(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, apperr.New(apperr.ErrAccess, "create book", dir, err)
	}
	if !info.IsDir() {
		return false, nil
	}
	if layout.HasMetadata(dir) {
		return false, nil
	}
	if layout.IsScaffold(dir) {
		return true, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, apperr.New(apperr.ErrAccess, "create book", dir, err)
	}
	return len(entries) == 0, nil
}

// FolderName turns a title into a portable directory name.
func FolderName(title string) string {
	name := unsafeFolderRe.ReplaceAllString(title, "-")
	name = strings.Trim(strings.TrimSpace(name), ". ")
	if name == "" {
		return untitled
	}
	return name
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return untitled
	}
	return title
}
