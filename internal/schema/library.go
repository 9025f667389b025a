package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/quill/internal/models"
)

func parseAny(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("schema: parse: %w", err)
	}
	return v, nil
}

// DecodeLibrary parses library.json.
func DecodeLibrary(data []byte) (*models.LibraryIndex, error) {
	r, err := ParseObject(data)
	if err != nil {
		return nil, err
	}
	return EnsureLibrary(r), nil
}

// EnsureLibrary maps a raw library document to the current shape. Entries
// without a path are dropped; the caller de-duplicates by normalized path.
func EnsureLibrary(r Raw) *models.LibraryIndex {
	threshold := r.Object("statusRules").Int("advancedChapterThreshold", models.DefaultAdvancedChapterThreshold)
	if threshold <= 0 {
		threshold = models.DefaultAdvancedChapterThreshold
	}
	idx := &models.LibraryIndex{
		Books:       []models.LibraryBookEntry{},
		StatusRules: models.StatusRules{AdvancedChapterThreshold: threshold},
		UpdatedAt:   r.NonEmptyStr("updatedAt", models.Now()),
	}
	for _, item := range r.Array("books") {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := Raw(obj)
		path := strings.TrimSpace(e.Str("path", ""))
		if path == "" {
			continue
		}
		status := models.BookStatus(e.Str("status", ""))
		switch status {
		case models.StatusNew, models.StatusAdvanced, models.StatusPublished:
		default:
			status = models.StatusNew
		}
		idx.Books = append(idx.Books, models.LibraryBookEntry{
			ID:           e.NonEmptyStr("id", NewMessageID()),
			Path:         path,
			Title:        e.Str("title", ""),
			Author:       e.Str("author", ""),
			Status:       status,
			ChapterCount: max(e.Int("chapterCount", 0), 0),
			WordCount:    max(e.Int("wordCount", 0), 0),
			CoverImage:   e.Str("coverImage", ""),
			IsPublished:  e.Bool("isPublished", false),
			PublishedAt:  e.Str("publishedAt", ""),
			LastOpenedAt: e.Str("lastOpenedAt", ""),
			UpdatedAt:    e.Str("updatedAt", ""),
		})
	}
	return idx
}

// DecodeAppConfig parses config.json. It never fails: a corrupt or
// non-object document yields the defaults.
func DecodeAppConfig(data []byte) models.AppConfig {
	r, err := ParseObject(data)
	if err != nil {
		return DefaultAppConfig()
	}
	return EnsureAppConfig(r)
}

// EnsureAppConfig defaults every missing or out-of-range knob.
func EnsureAppConfig(r Raw) models.AppConfig {
	def := DefaultAppConfig()
	temp := r.Num("temperature", def.Temperature)
	if temp < 0 || temp > 2 {
		temp = def.Temperature
	}
	maxTokens := r.Int("maxTokens", def.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = def.MaxTokens
	}
	interval := r.Int("autoVersionIntervalMinutes", def.AutoVersionIntervalMinutes)
	if interval <= 0 {
		interval = def.AutoVersionIntervalMinutes
	}
	return models.AppConfig{
		Model:          r.NonEmptyStr("model", def.Model),
		Language:       r.NonEmptyStr("language", def.Language),
		SystemPrompt:   r.Str("systemPrompt", def.SystemPrompt),
		Temperature:    temp,
		MaxTokens:      maxTokens,
		AutoVersioning: r.Bool("autoVersioning", def.AutoVersioning),

		AutoVersionIntervalMinutes: interval,
	}
}
