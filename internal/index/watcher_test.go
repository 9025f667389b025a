package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatcher(t *testing.T, db *DB, root string, cb EventCallback) {
	t.Helper()
	w, err := NewWatcher(db, quietLogger(), cb)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Add(root); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	time.Sleep(100 * time.Millisecond)
}

func indexed(db *DB, root, id string) bool {
	sums, _ := db.BookChecksums(root)
	_, ok := sums[id]
	return ok
}

func TestWatcher_NewChapterIndexed(t *testing.T) {
	db := testDB(t)
	store := testBook(t, "W", nil)

	var mu sync.Mutex
	var events []string
	startWatcher(t, db, store.Root(), func(kind, bookPath, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})

	_ = os.WriteFile(filepath.Join(store.Root(), "chapters", "01.json"), []byte(`{"content": "fresh"}`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return indexed(db, store.Root(), "01")
	}, "new chapter not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:01" {
				return true
			}
		}
		return false
	}, "expected created:01 callback")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	db := testDB(t)
	store := testBook(t, "W", nil)
	startWatcher(t, db, store.Root(), nil)

	_ = os.WriteFile(filepath.Join(store.Root(), "chapters", "notes.txt"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(store.Root(), "book.json"), []byte(`{"title": "changed"}`), 0o644)
	time.Sleep(300 * time.Millisecond)

	books, _ := db.Books()
	if len(books) != 0 {
		t.Errorf("unexpected index rows for %v", books)
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	db := testDB(t)
	store := testBook(t, "W", map[string]string{"01": `{"content": "doomed"}`})
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if !indexed(db, store.Root(), "01") {
		t.Fatal("precondition: chapter should be indexed")
	}
	startWatcher(t, db, store.Root(), nil)

	_ = os.Remove(filepath.Join(store.Root(), "chapters", "01.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, store.Root(), "01")
	}, "deleted chapter still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	db := testDB(t)
	store := testBook(t, "W", map[string]string{"01": `{"content": "moving"}`})
	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	startWatcher(t, db, store.Root(), nil)

	chapters := filepath.Join(store.Root(), "chapters")
	_ = os.Rename(filepath.Join(chapters, "01.json"), filepath.Join(chapters, "05.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, store.Root(), "01") && indexed(db, store.Root(), "05")
	}, "rename reconciliation failed: old id should be removed and new id indexed")
}
