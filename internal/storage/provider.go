// Package storage defines the book file-system abstraction.
package storage

import "time"

// Entry describes one file returned by List.
type Entry struct {
	// Path is relative to the provider root, slash-separated.
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for book file operations. All paths are relative
// to the provider root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns every regular file directly under dir whose name ends in ext.
	List(dir, ext string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
	// Exists reports whether path exists.
	Exists(path string) bool
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
}
