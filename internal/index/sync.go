package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/htmltext"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/schema"
	"github.com/starford/quill/internal/storage"
)

// syncWorkers bounds how many books SyncLibrary indexes at once.
const syncWorkers = 4

// Sync brings one book's chapters up to date:
//   - new/changed chapter files are parsed and upserted
//   - chapters removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	bookPath := store.Root()
	title := bookTitle(store)

	entries, err := store.List(layout.ChaptersDir, ".json")
	if err != nil {
		return err
	}
	checksums, err := db.BookChecksums(bookPath)
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		id, ok := layout.IDFromJSONName(e.Name)
		if !ok {
			continue
		}
		disk[id] = struct{}{}

		data, err := store.Read(e.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", e.Path), slog.String("error", err.Error()))
			continue
		}
		sum := checksum.Sum(data)
		if checksums[id] == sum {
			continue
		}
		if err := indexChapter(db, bookPath, title, id, data, sum); err != nil {
			logger.Warn("sync: index failed", slog.String("path", e.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("book", bookPath), slog.String("chapter", id))
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := db.DeleteChapter(bookPath, id); err != nil {
			logger.Warn("sync: delete failed", slog.String("chapter", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("book", bookPath), slog.String("chapter", id))
		}
	}
	return db.SetBookTitle(bookPath, title)
}

// SyncLibrary syncs every book root in parallel and drops indexed books that
// are no longer listed. A book that cannot be opened is logged and skipped.
func SyncLibrary(ctx context.Context, db *DB, roots []string, logger *slog.Logger) error {
	keep := make(map[string]struct{}, len(roots))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncWorkers)
	for _, root := range roots {
		if abs, err := filepath.Abs(root); err == nil {
			keep[abs] = struct{}{}
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			store, err := storage.NewFS(root)
			if err != nil {
				logger.Warn("sync: skipping book", slog.String("path", root), slog.String("error", err.Error()))
				return nil
			}
			if err := Sync(db, store, logger); err != nil {
				logger.Warn("sync: book failed", slog.String("path", root), slog.String("error", err.Error()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	indexed, err := db.Books()
	if err != nil {
		return err
	}
	for _, p := range indexed {
		if _, ok := keep[p]; ok {
			continue
		}
		if err := db.DeleteBook(p); err != nil {
			logger.Warn("sync: drop book failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
	return nil
}

// indexChapter parses a chapter file and upserts it into the DB.
func indexChapter(db *DB, bookPath, bookTitle, id string, data []byte, sum string) error {
	c, err := schema.DecodeChapter(data, id)
	if err != nil {
		return err
	}
	res := htmltext.Parse(c.Content)
	return db.UpsertChapter(ChapterRow{
		BookPath:  bookPath,
		ChapterID: id,
		BookTitle: bookTitle,
		Title:     c.Title,
		Checksum:  sum,
		Words:     res.Words,
		UpdatedAt: time.Now(),
	}, res.Text)
}

// bookTitle reads the title from book.json, falling back to the folder name.
func bookTitle(store storage.Provider) string {
	fallback := filepath.Base(store.Root())
	data, err := store.Read(layout.MetadataFile)
	if err != nil {
		return fallback
	}
	raw, err := schema.ParseObject(data)
	if err != nil {
		return fallback
	}
	return raw.NonEmptyStr("title", fallback)
}
