// Package layout encapsulates all path knowledge for a book project
// directory and the scaffold test that recognizes one.
package layout

import (
	"os"
	"path/filepath"
	"strings"
)

// File and directory names under a book root.
const (
	MetadataFile = "book.json"
	ConfigFile   = "config.json"
	ChaptersDir  = "chapters"
	AssetsDir    = "assets"
	VersionsDir  = "versions"
	ChatsDir     = "chats"
	ExportsDir   = "exports"

	BookChatFile = "book.json"
	jsonExt      = ".json"
)

// ScaffoldDirs are the subdirectories whose joint presence marks a book.
var ScaffoldDirs = []string{ChaptersDir, AssetsDir, VersionsDir}

// CreateDirs are the subdirectories written when a book is created.
var CreateDirs = []string{ChaptersDir, AssetsDir, VersionsDir, ChatsDir}

// Book is a value object that resolves paths within a book root.
type Book struct {
	root string
}

// New creates a Book rooted at the given path. No I/O is performed.
func New(root string) Book {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return Book{root: abs}
}

// Root returns the absolute book root.
func (b Book) Root() string { return b.root }

// MetadataPath returns the path to book.json.
func (b Book) MetadataPath() string { return filepath.Join(b.root, MetadataFile) }

// ConfigPath returns the path to config.json.
func (b Book) ConfigPath() string { return filepath.Join(b.root, ConfigFile) }

// ChaptersDir returns the path to chapters/.
func (b Book) ChaptersDir() string { return filepath.Join(b.root, ChaptersDir) }

// VersionsDir returns the path to versions/.
func (b Book) VersionsDir() string { return filepath.Join(b.root, VersionsDir) }

// ChatsDir returns the path to chats/.
func (b Book) ChatsDir() string { return filepath.Join(b.root, ChatsDir) }

// AssetsDir returns the path to assets/.
func (b Book) AssetsDir() string { return filepath.Join(b.root, AssetsDir) }

// Exists reports whether the root exists and is a directory.
func (b Book) Exists() bool {
	info, err := os.Stat(b.root)
	return err == nil && info.IsDir()
}

// Relative paths, as consumed by storage.Provider.

// ChapterFile returns chapters/<id>.json.
func ChapterFile(id string) string { return ChaptersDir + "/" + id + jsonExt }

// SnapshotFile returns versions/<id>_v<N>.json.
func SnapshotFile(id string, version int) string {
	return VersionsDir + "/" + SnapshotName(id, version)
}

// ChapterChatFile returns chats/<id>.json.
func ChapterChatFile(id string) string { return ChatsDir + "/" + id + jsonExt }

// BookChatPath returns chats/book.json.
func BookChatPath() string { return ChatsDir + "/" + BookChatFile }

// AssetFile returns assets/<name>.
func AssetFile(name string) string { return AssetsDir + "/" + name }

// ValidID reports whether id can name a file directly under a book
// subdirectory.
func ValidID(id string) bool {
	if id == "" || strings.HasPrefix(id, ".") {
		return false
	}
	return !strings.ContainsAny(id, `/\:*?"<>|`) && strings.TrimSpace(id) == id
}

// IDFromJSONName returns the id encoded in a "<id>.json" file name.
func IDFromJSONName(name string) (string, bool) {
	if !strings.HasSuffix(strings.ToLower(name), jsonExt) {
		return "", false
	}
	id := name[:len(name)-len(jsonExt)]
	if id == "" || strings.HasPrefix(id, ".") {
		return "", false
	}
	return id, true
}

// IsScaffold reports whether dir contains chapters/, assets/ and versions/.
func IsScaffold(dir string) bool {
	for _, sub := range ScaffoldDirs {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

// HasMetadata reports whether dir contains a book.json regular file.
func HasMetadata(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MetadataFile))
	return err == nil && info.Mode().IsRegular()
}

// IsBook reports whether dir is a book root or a salvageable scaffold.
func IsBook(dir string) bool {
	return HasMetadata(dir) || IsScaffold(dir)
}
