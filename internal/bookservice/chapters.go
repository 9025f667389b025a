package bookservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/bookstore"
	"github.com/starford/quill/internal/models"
)

var (
	errEmptyPath = errors.New("book path is empty")
	errNotBook   = errors.New("not a book folder")
)

func errInvalidChapterID(id string) error {
	return fmt.Errorf("invalid chapter id %q", id)
}

// autoSnapshotReason marks snapshots taken by UpdateChapter.
const autoSnapshotReason = "auto"

// ChapterPatch lists the fields UpdateChapter changes. Nil fields are kept.
type ChapterPatch struct {
	Title        *string              `json:"title,omitempty"`
	Content      *string              `json:"content,omitempty"`
	LengthPreset *models.LengthPreset `json:"lengthPreset,omitempty"`
}

// Chapter loads one chapter.
func (s *Service) Chapter(_ context.Context, path, id string) (*models.ChapterDocument, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	return store.LoadChapter(id)
}

// CreateChapter appends an empty chapter.
func (s *Service) CreateChapter(ctx context.Context, path, title string) (*models.BookMetadata, *models.ChapterDocument, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, nil, err
	}
	meta, c, err := store.CreateChapter(meta, title)
	if err != nil {
		return nil, nil, err
	}
	s.changed(ctx, store)
	return meta, c, nil
}

// UpdateChapter applies patch to a chapter listed in the order. When the
// book has auto-versioning on and the content changes, the previous text is
// snapshotted first, at most once per configured interval.
func (s *Service) UpdateChapter(ctx context.Context, path, id string, patch ChapterPatch) (*models.ChapterDocument, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	if !meta.HasChapter(id) {
		return nil, apperr.New(apperr.ErrNotFound, "update chapter", store.Root(), fmt.Errorf("chapter %q", id))
	}
	if patch.LengthPreset != nil && !patch.LengthPreset.Valid() {
		return nil, apperr.New(apperr.ErrPrecondition, "update chapter", store.Root(),
			fmt.Errorf("unknown length preset %q", *patch.LengthPreset))
	}
	c, err := store.LoadChapter(id)
	if err != nil {
		return nil, err
	}

	if patch.Content != nil && *patch.Content != c.Content {
		s.autoSnapshot(store, c)
		c.Content = *patch.Content
	}
	if patch.Title != nil {
		c.Title = *patch.Title
	}
	if patch.LengthPreset != nil {
		c.LengthPreset = *patch.LengthPreset
	}
	saved, err := store.SaveChapter(c)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, store)
	return saved, nil
}

// RenameChapter sets a chapter title.
func (s *Service) RenameChapter(ctx context.Context, path, id, title string) (*models.ChapterDocument, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	c, err := store.RenameChapter(meta, id, title)
	if err != nil {
		return nil, err
	}
	s.changed(ctx, store)
	return c, nil
}

// DuplicateChapter copies a chapter right after itself.
func (s *Service) DuplicateChapter(ctx context.Context, path, id string) (*models.BookMetadata, *models.ChapterDocument, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, nil, err
	}
	meta, c, err := store.DuplicateChapter(meta, id)
	if err != nil {
		return nil, nil, err
	}
	s.changed(ctx, store)
	return meta, c, nil
}

// MoveChapter swaps a chapter with a neighbour.
func (s *Service) MoveChapter(ctx context.Context, path, id string, dir bookstore.Direction) (*models.BookMetadata, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	moved, err := store.MoveChapter(meta, id, dir)
	if err != nil {
		return nil, err
	}
	if moved != meta {
		s.changed(ctx, store)
	}
	return moved, nil
}

// DeleteChapter removes a chapter and its chat log. Snapshots are kept.
func (s *Service) DeleteChapter(ctx context.Context, path, id string) (*models.BookMetadata, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	meta, err := store.LoadMetadata()
	if err != nil {
		return nil, err
	}
	out, err := store.DeleteChapter(meta, id)
	if err != nil {
		return nil, err
	}
	if out != meta {
		s.changed(ctx, store)
	}
	return out, nil
}

// ListSnapshots returns a chapter's snapshots by ascending version.
func (s *Service) ListSnapshots(_ context.Context, path, id string) ([]models.ChapterSnapshot, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	snaps, err := store.ListSnapshots(id)
	if err != nil {
		return nil, err
	}
	if snaps == nil {
		snaps = []models.ChapterSnapshot{}
	}
	return snaps, nil
}

// SaveSnapshot records the chapter's current state.
func (s *Service) SaveSnapshot(_ context.Context, path, id, reason string) (*models.ChapterSnapshot, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	c, err := store.LoadChapter(id)
	if err != nil {
		return nil, err
	}
	return store.SaveSnapshot(c, reason)
}

// RestoreSnapshot copies the newest snapshot back onto the chapter. It fails
// with ErrNotFound when the chapter has no snapshots.
func (s *Service) RestoreSnapshot(ctx context.Context, path, id string) (*models.ChapterDocument, error) {
	store, err := s.open(path)
	if err != nil {
		return nil, err
	}
	c, err := store.RestoreLastSnapshot(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.New(apperr.ErrNotFound, "restore snapshot", store.Root(), fmt.Errorf("chapter %q has no snapshots", id))
	}
	s.changed(ctx, store)
	return c, nil
}

// autoSnapshot saves c when auto-versioning is on and the newest snapshot is
// older than the configured interval. Failures are logged, never returned.
func (s *Service) autoSnapshot(store *bookstore.Store, c *models.ChapterDocument) {
	cfg := store.LoadAppConfig()
	if !cfg.AutoVersioning {
		return
	}
	snaps, err := store.ListSnapshots(c.ID)
	if err != nil {
		s.logger.Warn("auto snapshot skipped", slog.String("chapter", c.ID), slog.String("error", err.Error()))
		return
	}
	if n := len(snaps); n > 0 {
		last, err := time.Parse(time.RFC3339, snaps[n-1].CreatedAt)
		interval := time.Duration(cfg.AutoVersionIntervalMinutes) * time.Minute
		if err == nil && time.Since(last) < interval {
			return
		}
	}
	if _, err := store.SaveSnapshot(c, autoSnapshotReason); err != nil {
		s.logger.Warn("auto snapshot failed", slog.String("chapter", c.ID), slog.String("error", err.Error()))
	}
}
