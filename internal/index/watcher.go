package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quill/internal/checksum"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// reconcileDelay debounces the resync that follows a rename.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of EventCreated, EventUpdated, EventDeleted.
type EventCallback func(kind, bookPath, chapterID string)

// Watcher keeps the index in step with edits made to chapter files outside
// this process. Books are added with Add; only their chapters/ directory
// is watched.
type Watcher struct {
	db     *DB
	fsw    *fsnotify.Watcher
	logger *slog.Logger
	cb     EventCallback

	mu    sync.Mutex
	books map[string]storage.Provider // chapters dir -> book store
}

// NewWatcher creates a watcher. cb may be nil.
func NewWatcher(db *DB, logger *slog.Logger, cb EventCallback) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("index: new watcher: %w", err)
	}
	return &Watcher{
		db:     db,
		fsw:    fsw,
		logger: logger,
		cb:     cb,
		books:  make(map[string]storage.Provider),
	}, nil
}

// Add starts watching the chapters of the book at root. Adding a book twice
// is a no-op.
func (w *Watcher) Add(root string) error {
	store, err := storage.NewFS(root)
	if err != nil {
		return err
	}
	dir := filepath.Join(store.Root(), layout.ChaptersDir)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.books[dir]; ok {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("index: watch %s: %w", dir, err)
	}
	w.books[dir] = store
	w.logger.Debug("watcher: watching book", slog.String("path", store.Root()))
	return nil
}

// Remove stops watching the book at root.
func (w *Watcher) Remove(root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return
	}
	dir := filepath.Join(abs, layout.ChaptersDir)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.books[dir]; !ok {
		return
	}
	_ = w.fsw.Remove(dir)
	delete(w.books, dir)
}

// Run processes file change events until ctx is cancelled, then closes the
// underlying watcher.
//
// Rename events delete the old chapter immediately and schedule a debounced
// resync of the affected book, which picks up the new name.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.logger.Info("watcher: started")

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	pending := make(map[string]storage.Provider)

	scheduleReconcile := func(store storage.Provider) {
		pending[store.Root()] = store
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			for root, store := range pending {
				if err := Sync(w.db, store, w.logger); err != nil {
					w.logger.Warn("reconcile: sync failed", slog.String("path", root), slog.String("error", err.Error()))
				}
				delete(pending, root)
			}

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			store, id, ok := w.lookup(ev.Name)
			if !ok {
				continue
			}
			w.handle(ev, store, id, scheduleReconcile)

		case watchErr, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event, store storage.Provider, id string, scheduleReconcile func(storage.Provider)) {
	bookPath := store.Root()
	rel := layout.ChapterFile(id)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, err := store.Read(rel)
		if err != nil {
			w.logger.Warn("watcher: read failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			return
		}
		if err := indexChapter(w.db, bookPath, bookTitle(store), id, data, checksum.Sum(data)); err != nil {
			w.logger.Warn("watcher: index failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			return
		}
		kind := EventUpdated
		if ev.Op&fsnotify.Create != 0 {
			kind = EventCreated
		}
		w.logger.Debug("watcher: indexed", slog.String("path", ev.Name), slog.String("op", kind))
		w.notify(kind, bookPath, id)

	case ev.Op&fsnotify.Remove != 0:
		if err := w.db.DeleteChapter(bookPath, id); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
			return
		}
		w.logger.Debug("watcher: deleted", slog.String("path", ev.Name))
		w.notify(EventDeleted, bookPath, id)

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify fires Rename on the old path only; the new path arrives
		// as a Create if it stays within a watched dir.
		if err := w.db.DeleteChapter(bookPath, id); err != nil {
			w.logger.Warn("watcher: rename delete failed", slog.String("path", ev.Name), slog.String("error", err.Error()))
		} else {
			w.notify(EventDeleted, bookPath, id)
		}
		scheduleReconcile(store)
	}
}

// lookup maps an event path to its book and chapter id. Temporary files
// written by storage.FS have no .json suffix and are ignored.
func (w *Watcher) lookup(name string) (storage.Provider, string, bool) {
	id, ok := layout.IDFromJSONName(filepath.Base(name))
	if !ok {
		return nil, "", false
	}
	w.mu.Lock()
	store, ok := w.books[filepath.Dir(name)]
	w.mu.Unlock()
	if !ok {
		return nil, "", false
	}
	return store, id, true
}

func (w *Watcher) notify(kind, bookPath, id string) {
	if w.cb != nil {
		w.cb(kind, bookPath, id)
	}
}
