// Package bookservice coordinates the per-book stores with the library
// catalog, the chapter index and change notifications. Every transport
// (HTTP, MCP, CLI) goes through a Service.
package bookservice

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/bookstore"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/library"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/resolver"
)

// Publisher receives book and library change notifications. Chapter file
// events come from the index watcher, not from the service.
type Publisher interface {
	PublishBookUpdated(bookPath string)
	PublishLibraryUpdated()
}

// Watcher follows external edits of opened books.
type Watcher interface {
	Add(root string) error
	Remove(root string)
}

// Options wire a Service. Library and Resolver are required; DB, Events and
// Watcher may be nil.
type Options struct {
	Resolver *resolver.Resolver
	Library  *library.Library
	DB       *index.DB
	Events   Publisher
	Watcher  Watcher
	Logger   *slog.Logger
}

// Service is the application layer over a library of books.
type Service struct {
	resolver *resolver.Resolver
	library  *library.Library
	db       *index.DB
	events   Publisher
	watcher  Watcher
	logger   *slog.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver: opts.Resolver,
		library:  opts.Library,
		db:       opts.DB,
		events:   opts.Events,
		watcher:  opts.Watcher,
		logger:   logger,
	}
}

// Resolve lists every book reachable from raw, newest first.
func (s *Service) Resolve(_ context.Context, raw string) ([]resolver.Candidate, error) {
	return s.resolver.ResolveAll(raw)
}

// OpenBook resolves raw to a book root, loads it with reconciliation, marks
// it opened in the library and starts following it.
func (s *Service) OpenBook(_ context.Context, raw string) (*models.BookProject, error) {
	root, err := s.resolver.Resolve(raw)
	if err != nil {
		return nil, err
	}
	store, err := bookstore.Open(root, s.logger)
	if err != nil {
		return nil, err
	}
	p, err := store.Load(bookstore.LoadOptions{Reconcile: true})
	if err != nil {
		return nil, err
	}
	if _, err := s.library.Upsert(p, library.UpsertOptions{MarkOpened: true}); err != nil {
		return nil, err
	}
	s.follow(store)
	s.publishLibrary()
	return p, nil
}

// CreateBook creates a new book folder under parentDir and registers it.
func (s *Service) CreateBook(_ context.Context, parentDir, title, author string) (*models.BookProject, error) {
	store, p, err := bookstore.Create(parentDir, title, author, s.logger)
	if err != nil {
		return nil, err
	}
	if _, err := s.library.Upsert(p, library.UpsertOptions{MarkOpened: true}); err != nil {
		return nil, err
	}
	s.follow(store)
	s.publishLibrary()
	return p, nil
}

// LoadBook loads the book at path without touching the library.
func (s *Service) LoadBook(_ context.Context, path string) (*models.BookProject, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	return store.Load(bookstore.LoadOptions{})
}

// SaveMetadata replaces the book's descriptor. Chats in meta are ignored;
// they are saved through UpdateChats.
func (s *Service) SaveMetadata(ctx context.Context, path string, meta *models.BookMetadata) (*models.BookMetadata, error) {
	if meta == nil {
		return nil, apperr.New(apperr.ErrPrecondition, "save metadata", path, nil)
	}
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	if err := checkChapterOrder(store, meta.ChapterOrder); err != nil {
		return nil, apperr.New(apperr.ErrPrecondition, "save metadata", store.Root(), err)
	}
	current, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	next := meta.Clone()
	next.Chats = current.Chats
	next.CreatedAt = current.CreatedAt
	saved, err := store.SaveMetadata(next)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, store)
	return saved, nil
}

// checkChapterOrder requires every id to be valid, listed once and backed by
// a chapter file.
func checkChapterOrder(store *bookstore.Store, order []string) error {
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if !layout.ValidID(id) {
			return errInvalidChapterID(id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("chapter %q is listed twice in chapterOrder", id)
		}
		seen[id] = struct{}{}
		if !store.Files().Exists(layout.ChapterFile(id)) {
			return fmt.Errorf("chapter %q has no chapter file", id)
		}
	}
	return nil
}

// SetPublished toggles the published flag. publishedAt is stamped when the
// book becomes published and cleared when it is withdrawn.
func (s *Service) SetPublished(ctx context.Context, path string, published bool) (*models.BookMetadata, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	if meta.IsPublished != published {
		meta.IsPublished = published
		meta.PublishedAt = ""
		if published {
			meta.PublishedAt = models.Now()
		}
	}
	saved, err := store.SaveMetadata(meta)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, store)
	return saved, nil
}

// SaveCover stores a front or back cover image and records it in book.json.
func (s *Service) SaveCover(ctx context.Context, path string, kind bookstore.CoverKind, ext string, data []byte) (*models.BookMetadata, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	saved, err := store.SaveCoverImage(meta, kind, ext, data)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, store)
	return saved, nil
}

// Cover returns the cover image bytes and their file name.
func (s *Service) Cover(_ context.Context, path string, kind bookstore.CoverKind) ([]byte, string, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, "", err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, "", err
	}
	rel, ok := store.CoverFile(meta, kind)
	if !ok {
		return nil, "", apperr.New(apperr.ErrNotFound, "cover", store.Root(), nil)
	}
	data, err := store.ReadAsset(rel)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Base(rel), nil
}

// UpdateChats normalizes and persists the book's conversations.
func (s *Service) UpdateChats(_ context.Context, path string, chats *models.BookChats) (*models.BookChats, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	saved, err := store.UpdateBookChats(meta, chats)
	if err != nil {
		return nil, err
	}
	s.publishBook(store.Root())
	return saved.Chats, nil
}

// AppConfig returns the book's config.json, defaults when absent.
func (s *Service) AppConfig(_ context.Context, path string) (models.AppConfig, error) {
	store, err := s.open(path)
	if err != nil {
		return models.AppConfig{}, err
	}
	return store.LoadAppConfig(), nil
}

// SaveAppConfig writes the book's config.json.
func (s *Service) SaveAppConfig(_ context.Context, path string, cfg models.AppConfig) (models.AppConfig, error) {
	store, err := s.open(path)
	if err != nil {
		return models.AppConfig{}, err
	}
	if err := store.SaveAppConfig(cfg); err != nil {
		return models.AppConfig{}, err
	}
	return store.LoadAppConfig(), nil
}

// ListLibrary returns the library catalog.
func (s *Service) ListLibrary(_ context.Context) (*models.LibraryIndex, error) {
	return s.library.Load()
}

// RemoveBook drops a book from the library, optionally deleting its folder.
func (s *Service) RemoveBook(_ context.Context, path string, deleteFiles bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return apperr.New(apperr.ErrPrecondition, "remove book", path, err)
	}
	if err := s.library.Remove(abs, library.RemoveOptions{DeleteFiles: deleteFiles}); err != nil {
		return err
	}
	if s.watcher != nil {
		s.watcher.Remove(abs)
	}
	if s.db != nil {
		if err := s.db.DeleteBook(abs); err != nil {
			s.logger.Warn("index: drop book failed", slog.String("path", abs), slog.String("error", err.Error()))
		}
	}
	s.publishLibrary()
	return nil
}

// Search runs a full-text query over every indexed chapter.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return []index.SearchResult{}, nil
	}
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []index.SearchResult{}
	}
	return res, nil
}

// SyncIndex re-indexes every library book and drops books no longer listed.
func (s *Service) SyncIndex(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	idx, err := s.library.Load()
	if err != nil {
		return err
	}
	roots := make([]string, 0, len(idx.Books))
	for _, b := range idx.Books {
		roots = append(roots, b.Path)
	}
	return index.SyncLibrary(ctx, s.db, roots, s.logger)
}

// WatchLibrary follows every library book that still exists on disk.
func (s *Service) WatchLibrary(_ context.Context) error {
	if s.watcher == nil {
		return nil
	}
	idx, err := s.library.Load()
	if err != nil {
		return err
	}
	for _, b := range idx.Books {
		if !layout.IsBook(b.Path) {
			continue
		}
		if err := s.watcher.Add(b.Path); err != nil {
			s.logger.Warn("watch book failed", slog.String("path", b.Path), slog.String("error", err.Error()))
		}
	}
	return nil
}

// open returns a store for an existing book root. Unlike OpenBook, path is
// taken literally and must already be a book.
func (s *Service) open(path string) (*bookstore.Store, error) {
	if path == "" {
		return nil, apperr.New(apperr.ErrPrecondition, "open book", path, errEmptyPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperr.New(apperr.ErrPrecondition, "open book", path, err)
	}
	if !layout.IsBook(abs) {
		return nil, apperr.New(apperr.ErrNotFound, "open book", abs, errNotBook)
	}
	return bookstore.Open(abs, s.logger)
}

// changed refreshes the index and library entry after a mutation and
// announces it.
func (s *Service) changed(_ context.Context, store *bookstore.Store) {
	s.reindex(store)
	p, err := store.Load(bookstore.LoadOptions{})
	if err != nil {
		s.logger.Warn("library refresh failed", slog.String("path", store.Root()), slog.String("error", err.Error()))
	} else if _, err := s.library.Upsert(p, library.UpsertOptions{}); err != nil {
		s.logger.Warn("library refresh failed", slog.String("path", store.Root()), slog.String("error", err.Error()))
	}
	s.publishBook(store.Root())
	s.publishLibrary()
}

func (s *Service) reindex(store *bookstore.Store) {
	if s.db == nil {
		return
	}
	if err := index.Sync(s.db, store.Files(), s.logger); err != nil {
		s.logger.Warn("index sync failed", slog.String("path", store.Root()), slog.String("error", err.Error()))
	}
}

func (s *Service) follow(store *bookstore.Store) {
	s.reindex(store)
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Add(store.Root()); err != nil {
		s.logger.Warn("watch book failed", slog.String("path", store.Root()), slog.String("error", err.Error()))
	}
}

func (s *Service) publishBook(path string) {
	if s.events != nil {
		s.events.PublishBookUpdated(path)
	}
}

func (s *Service) publishLibrary() {
	if s.events != nil {
		s.events.PublishLibraryUpdated()
	}
}
