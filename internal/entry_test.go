package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenRequiresConfig(t *testing.T) {
	if _, err := Open(); err == nil {
		t.Fatal("Open without config should fail")
	}
}

func TestOpenWiresService(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Library.Path = filepath.Join(dir, "state", "library.json")

	app, err := Open(WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer app.Close()

	if app.Broker != nil || app.Watcher != nil {
		t.Error("one-shot components should not start events or watcher")
	}

	ctx := context.Background()
	p, err := app.Service.CreateBook(ctx, dir, "Wired", "")
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	idx, err := app.Service.ListLibrary(ctx)
	if err != nil {
		t.Fatalf("ListLibrary: %v", err)
	}
	if len(idx.Books) != 1 || idx.Books[0].Path != p.Path {
		t.Errorf("library = %+v", idx.Books)
	}
	if _, err := os.Stat(filepath.Join(dir, "state", "index.db")); err != nil {
		t.Errorf("index file: %v", err)
	}
}

func TestBuildLiveStartsBrokerAndWatcher(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Library.Path = filepath.Join(t.TempDir(), "library.json")

	app, err := build(true, []Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app.Close()
	if app.Broker == nil || app.Watcher == nil {
		t.Fatal("live build should create broker and watcher")
	}

	cfg.Index.Watch = false
	app2, err := build(true, []Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer app2.Close()
	if app2.Watcher != nil {
		t.Error("watch disabled should not create a watcher")
	}
}
