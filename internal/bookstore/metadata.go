package bookstore

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
)

// corruptSuffix names the backup written before a corrupt book.json is
// replaced.
const corruptSuffix = ".corrupt"

// LoadMetadata reads and ensures book.json and reconciles its chats with
// the files under chats/.
func (s *Store) LoadMetadata() (*models.BookMetadata, error) {
	meta, err := s.readMetadata()
	if err != nil {
		return nil, err
	}
	meta.Chats = s.LoadChats(meta.Chats, meta.ChapterOrder)
	return meta, nil
}

// readMetadata reads and ensures book.json. A missing or corrupt document
// is rebuilt from the chapter files on disk and persisted. Chats holds only
// the legacy embedded chats, if any.
func (s *Store) readMetadata() (*models.BookMetadata, error) {
	data, err := s.fs.Read(layout.MetadataFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, s.ioError("load metadata", layout.MetadataFile, err)
		}
		return s.rebuildMetadata(nil, err)
	}
	meta, _, err := schema.DecodeMetadata(data, s.fallbackTitle())
	if err != nil {
		return s.rebuildMetadata(data, err)
	}
	return meta, nil
}

// SaveMetadata stamps updatedAt and writes book.json without the chats
// aggregate. The returned copy keeps the in-memory chats.
func (s *Store) SaveMetadata(meta *models.BookMetadata) (*models.BookMetadata, error) {
	out := meta.Clone()
	out.SchemaVersion = models.CurrentSchemaVersion
	out.UpdatedAt = models.Now()
	if out.CreatedAt == "" {
		out.CreatedAt = out.UpdatedAt
	}

	onDisk := *out
	onDisk.Chats = nil
	if err := s.writeJSON("save metadata", layout.MetadataFile, &onDisk); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) rebuildMetadata(corrupt []byte, cause error) (*models.BookMetadata, error) {
	ids, err := s.chapterIDsOnDisk()
	if err != nil {
		return nil, err
	}
	if corrupt != nil {
		backup := layout.MetadataFile + corruptSuffix
		if err := s.fs.Write(backup, corrupt); err != nil {
			return nil, s.ioError("backup metadata", backup, err)
		}
	}
	s.logger.Warn("rebuilding book metadata from chapter files",
		slog.String("path", s.abs(layout.MetadataFile)),
		slog.String("error", cause.Error()),
		slog.Int("chapters", len(ids)),
	)
	meta := schema.DefaultMetadata(s.fallbackTitle(), "", ids)
	saved, err := s.SaveMetadata(meta)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// chapterIDsOnDisk lists chapter ids inferable from chapters/, numeric ids
// first in numeric order, then the rest lexically.
func (s *Store) chapterIDsOnDisk() ([]string, error) {
	entries, err := s.fs.List(layout.ChaptersDir, ".json")
	if err != nil {
		return nil, s.ioError("list chapters", layout.ChaptersDir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if id, ok := layout.IDFromJSONName(e.Name); ok && layout.ValidID(id) {
			ids = append(ids, id)
		}
	}
	sortChapterIDs(ids)
	return ids, nil
}

func sortChapterIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, aNum := schema.NumericID(ids[i])
		b, bNum := schema.NumericID(ids[j])
		switch {
		case aNum && bNum:
			if a != b {
				return a < b
			}
			return ids[i] < ids[j]
		case aNum != bNum:
			return aNum
		default:
			return ids[i] < ids[j]
		}
	})
}

func (s *Store) fallbackTitle() string {
	return filepath.Base(s.book.Root())
}
