package bookstore

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
)

// Direction selects the neighbour a chapter is swapped with.
type Direction string

const (
	MoveUp   Direction = "up"
	MoveDown Direction = "down"
)

// copySuffix marks the title of a duplicated chapter.
const copySuffix = " (copy)"

// LoadChapter reads and ensures chapters/<id>.json.
func (s *Store) LoadChapter(id string) (*models.ChapterDocument, error) {
	if !layout.ValidID(id) {
		return nil, invalidID("load chapter", id)
	}
	rel := layout.ChapterFile(id)
	data, err := s.fs.Read(rel)
	if err != nil {
		return nil, s.ioError("load chapter", rel, err)
	}
	c, err := schema.DecodeChapter(data, id)
	if err != nil {
		return nil, s.corrupt("load chapter", rel, err)
	}
	// The file name is authoritative for the id.
	c.ID = id
	return c, nil
}

// SaveChapter stamps updatedAt and writes the chapter file.
func (s *Store) SaveChapter(c *models.ChapterDocument) (*models.ChapterDocument, error) {
	if !layout.ValidID(c.ID) {
		return nil, invalidID("save chapter", c.ID)
	}
	out := c.Clone()
	out.ContentJSON = nil
	out.UpdatedAt = models.Now()
	if out.CreatedAt == "" {
		out.CreatedAt = out.UpdatedAt
	}
	if !out.LengthPreset.Valid() {
		out.LengthPreset = models.LengthMedium
	}
	if err := s.writeJSON("save chapter", layout.ChapterFile(out.ID), out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChapter appends a new empty chapter. Its id is one past the highest
// numeric id in the order; ids already used by files on disk are skipped.
func (s *Store) CreateChapter(meta *models.BookMetadata, title string) (*models.BookMetadata, *models.ChapterDocument, error) {
	id := schema.NextChapterID(meta.ChapterOrder, func(id string) bool {
		return s.fs.Exists(layout.ChapterFile(id))
	})
	title = strings.TrimSpace(title)
	if title == "" {
		title = schema.DefaultChapterTitle(id)
	}
	chapter, err := s.SaveChapter(schema.DefaultChapter(id, title))
	if err != nil {
		return nil, nil, err
	}

	out := meta.Clone()
	out.ChapterOrder = append(out.ChapterOrder, id)
	out, err = s.SaveMetadata(out)
	if err != nil {
		return nil, nil, err
	}
	return out, chapter, nil
}

// RenameChapter sets a chapter's title.
func (s *Store) RenameChapter(meta *models.BookMetadata, id, title string) (*models.ChapterDocument, error) {
	if !meta.HasChapter(id) {
		return nil, notInOrder("rename chapter", id)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.New(apperr.ErrPrecondition, "rename chapter", "", errors.New("title is empty"))
	}
	c, err := s.LoadChapter(id)
	if err != nil {
		return nil, err
	}
	c.Title = title
	return s.SaveChapter(c)
}

// DuplicateChapter copies a chapter under a new id placed right after it.
func (s *Store) DuplicateChapter(meta *models.BookMetadata, id string) (*models.BookMetadata, *models.ChapterDocument, error) {
	pos := slices.Index(meta.ChapterOrder, id)
	if pos < 0 {
		return nil, nil, notInOrder("duplicate chapter", id)
	}
	src, err := s.LoadChapter(id)
	if err != nil {
		return nil, nil, err
	}

	newID := schema.NextChapterID(meta.ChapterOrder, func(id string) bool {
		return s.fs.Exists(layout.ChapterFile(id))
	})
	dup := schema.DefaultChapter(newID, src.Title+copySuffix)
	dup.Content = src.Content
	dup.LengthPreset = src.LengthPreset
	dup, err = s.SaveChapter(dup)
	if err != nil {
		return nil, nil, err
	}

	out := meta.Clone()
	out.ChapterOrder = slices.Insert(out.ChapterOrder, pos+1, newID)
	out, err = s.SaveMetadata(out)
	if err != nil {
		return nil, nil, err
	}
	return out, dup, nil
}

// DeleteChapter removes the chapter file, its order entry and its chat log.
// Snapshots are kept. Deleting an id absent from the order returns meta
// unchanged.
func (s *Store) DeleteChapter(meta *models.BookMetadata, id string) (*models.BookMetadata, error) {
	if !meta.HasChapter(id) {
		return meta, nil
	}
	if !layout.ValidID(id) {
		return nil, invalidID("delete chapter", id)
	}
	rel := layout.ChapterFile(id)
	if err := s.fs.Delete(rel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, s.ioError("delete chapter", rel, err)
	}

	out := meta.Clone()
	out.ChapterOrder = slices.DeleteFunc(out.ChapterOrder, func(v string) bool { return v == id })
	if out.Chats == nil {
		out.Chats = s.LoadChats(nil, meta.ChapterOrder)
	}
	delete(out.Chats.Chapters, id)
	if err := s.SaveChats(out.Chats, out.ChapterOrder); err != nil {
		return nil, err
	}
	return s.SaveMetadata(out)
}

// MoveChapter swaps a chapter with its predecessor or successor. A move past
// either end returns meta unchanged.
func (s *Store) MoveChapter(meta *models.BookMetadata, id string, dir Direction) (*models.BookMetadata, error) {
	pos := slices.Index(meta.ChapterOrder, id)
	if pos < 0 {
		return nil, notInOrder("move chapter", id)
	}
	var target int
	switch dir {
	case MoveUp:
		target = pos - 1
	case MoveDown:
		target = pos + 1
	default:
		return nil, apperr.New(apperr.ErrPrecondition, "move chapter", "", fmt.Errorf("unknown direction %q", dir))
	}
	if target < 0 || target >= len(meta.ChapterOrder) {
		return meta, nil
	}
	out := meta.Clone()
	out.ChapterOrder[pos], out.ChapterOrder[target] = out.ChapterOrder[target], out.ChapterOrder[pos]
	return s.SaveMetadata(out)
}

func invalidID(op, id string) error {
	return apperr.New(apperr.ErrPrecondition, op, "", fmt.Errorf("invalid chapter id %q", id))
}
