package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/starford/quill/internal/models"
)

// ErrInvalidSnapshot is returned for a snapshot missing its version,
// chapter id or chapter body.
var ErrInvalidSnapshot = errors.New("schema: invalid snapshot")

// DecodeChapter parses a chapter file. The id embedded in the file wins
// over fallbackID, which is normally derived from the file name.
func DecodeChapter(data []byte, fallbackID string) (*models.ChapterDocument, error) {
	r, err := ParseObject(data)
	if err != nil {
		return nil, err
	}
	return EnsureChapter(r, fallbackID), nil
}

// EnsureChapter maps any raw chapter shape to a fully populated document.
// Legacy chapters stored their body under "html" or "text".
func EnsureChapter(r Raw, fallbackID string) *models.ChapterDocument {
	id, ok := idString(r["id"])
	if !ok {
		id = fallbackID
	}
	content := r.Str("content", "")
	if !r.Has("content") {
		content = r.Str("html", r.Str("text", ""))
	}
	preset := models.LengthPreset(r.Str("lengthPreset", ""))
	if !preset.Valid() {
		preset = models.LengthMedium
	}
	createdAt := r.NonEmptyStr("createdAt", models.Now())
	return &models.ChapterDocument{
		ID:           id,
		Title:        r.NonEmptyStr("title", DefaultChapterTitle(id)),
		Content:      content,
		ContentJSON:  r["contentJson"],
		LengthPreset: preset,
		CreatedAt:    createdAt,
		UpdatedAt:    r.NonEmptyStr("updatedAt", createdAt),
	}
}

// DefaultChapterTitle is the title given to chapters that have none.
func DefaultChapterTitle(id string) string {
	if n, ok := NumericID(id); ok {
		return fmt.Sprintf("Chapter %d", n)
	}
	return "Chapter " + id
}

// DecodeSnapshot parses a snapshot file strictly: it must carry a positive
// version, a chapter id and a chapter object.
func DecodeSnapshot(data []byte) (*models.ChapterSnapshot, error) {
	r, err := ParseObject(data)
	if err != nil {
		return nil, err
	}
	version := r.Int("version", 0)
	chapterID, ok := idString(r["chapterId"])
	chapter, hasChapter := r["chapter"].(map[string]any)
	if version <= 0 || !ok || !hasChapter {
		return nil, ErrInvalidSnapshot
	}
	return &models.ChapterSnapshot{
		Version:   version,
		ChapterID: chapterID,
		Reason:    strings.TrimSpace(r.Str("reason", "")),
		CreatedAt: r.NonEmptyStr("createdAt", ""),
		Chapter:   *EnsureChapter(Raw(chapter), chapterID),
	}, nil
}
