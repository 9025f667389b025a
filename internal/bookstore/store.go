// Package bookstore persists one book project: metadata, chapters, snapshots,
// chats, cover assets and the per-book app config. A Store assumes a single
// writer; concurrent mutations of the same book are last-write-wins.
package bookstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/storage"
)

// Store owns the files under one book root.
type Store struct {
	book   layout.Book
	fs     storage.Provider
	logger *slog.Logger
}

// Open returns a Store for an existing directory. It does not check that
// the directory is a book; callers resolve the root first.
func Open(root string, logger *slog.Logger) (*Store, error) {
	book := layout.New(root)
	fsys, err := storage.NewFS(book.Root())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.ErrNotFound, "open book", book.Root(), err)
		}
		return nil, apperr.New(apperr.ErrAccess, "open book", book.Root(), err)
	}
	return newStore(book, fsys, logger), nil
}

func newStore(book layout.Book, p storage.Provider, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		book:   book,
		fs:     p,
		logger: logger.With(slog.String("book", book.Root())),
	}
}

// Root returns the absolute book root.
func (s *Store) Root() string { return s.book.Root() }

// Layout returns the path helper for this book.
func (s *Store) Layout() layout.Book { return s.book }

// Files returns the provider rooted at the book, for indexing.
func (s *Store) Files() storage.Provider { return s.fs }

// abs maps a provider-relative path to an absolute one for error messages.
func (s *Store) abs(rel string) string {
	return filepath.Join(s.book.Root(), filepath.FromSlash(rel))
}

// ioError classifies a storage failure.
func (s *Store) ioError(op, rel string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.New(apperr.ErrNotFound, op, s.abs(rel), err)
	}
	return apperr.New(apperr.ErrAccess, op, s.abs(rel), err)
}

func (s *Store) corrupt(op, rel string, err error) error {
	return apperr.New(apperr.ErrCorruptDocument, op, s.abs(rel), err)
}

func (s *Store) writeJSON(op, rel string, v any) error {
	if err := storage.WriteJSON(s.fs, rel, v); err != nil {
		return apperr.New(apperr.ErrAccess, op, s.abs(rel), err)
	}
	return nil
}

// warnSkipped logs a file left out of a bulk operation.
func (s *Store) warnSkipped(msg, rel string, err error) {
	s.logger.Warn(msg,
		slog.String("path", s.abs(rel)),
		slog.String("error", err.Error()),
	)
}

func (s *Store) mkdirs(dirs []string) error {
	for _, d := range dirs {
		if err := s.fs.MkdirAll(d); err != nil {
			return apperr.New(apperr.ErrAccess, "mkdir", s.abs(d), err)
		}
	}
	return nil
}

func notInOrder(op, id string) error {
	return apperr.New(apperr.ErrNotFound, op, "", fmt.Errorf("chapter %q is not in chapterOrder", id))
}
