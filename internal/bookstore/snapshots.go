package bookstore

import (
	"errors"
	"sort"
	"strings"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
)

// SaveSnapshot writes versions/<id>_v<N>.json with N one past the highest
// existing version of the chapter.
func (s *Store) SaveSnapshot(chapter *models.ChapterDocument, reason string) (*models.ChapterSnapshot, error) {
	if !layout.ValidID(chapter.ID) {
		return nil, invalidID("save snapshot", chapter.ID)
	}
	versions, err := s.snapshotVersions(chapter.ID)
	if err != nil {
		return nil, err
	}
	next := 1
	if len(versions) > 0 {
		next = versions[len(versions)-1] + 1
	}

	copyOf := chapter.Clone()
	copyOf.ContentJSON = nil
	snap := &models.ChapterSnapshot{
		Version:   next,
		ChapterID: chapter.ID,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: models.Now(),
		Chapter:   *copyOf,
	}
	if err := s.writeJSON("save snapshot", layout.SnapshotFile(chapter.ID, next), snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// ListSnapshots returns a chapter's snapshots by ascending version. Corrupt
// files and files belonging to another chapter are skipped.
func (s *Store) ListSnapshots(chapterID string) ([]models.ChapterSnapshot, error) {
	if !layout.ValidID(chapterID) {
		return nil, invalidID("list snapshots", chapterID)
	}
	versions, err := s.snapshotVersions(chapterID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChapterSnapshot, 0, len(versions))
	for _, v := range versions {
		rel := layout.SnapshotFile(chapterID, v)
		data, err := s.fs.Read(rel)
		if err != nil {
			s.warnSkipped("skipping unreadable snapshot", rel, err)
			continue
		}
		snap, err := schema.DecodeSnapshot(data)
		if err != nil {
			s.warnSkipped("skipping corrupt snapshot", rel, err)
			continue
		}
		if snap.ChapterID != chapterID {
			continue
		}
		// The file name is authoritative for the version.
		snap.Version = v
		out = append(out, *snap)
	}
	return out, nil
}

// RestoreLastSnapshot copies the newest snapshot's title, content and length
// preset onto the live chapter and saves it. It returns nil when the chapter
// has no snapshots. The snapshot itself is left untouched. Snapshots of a
// chapter no longer in chapterOrder cannot be restored.
func (s *Store) RestoreLastSnapshot(chapterID string) (*models.ChapterDocument, error) {
	if !layout.ValidID(chapterID) {
		return nil, invalidID("restore snapshot", chapterID)
	}
	meta, err := s.readMetadata()
	if err != nil {
		return nil, err
	}
	if !meta.HasChapter(chapterID) {
		return nil, notInOrder("restore snapshot", chapterID)
	}
	snaps, err := s.ListSnapshots(chapterID)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	last := snaps[len(snaps)-1]

	live, err := s.LoadChapter(chapterID)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrCorruptDocument):
		live = schema.DefaultChapter(chapterID, last.Chapter.Title)
	default:
		return nil, err
	}
	live.Title = last.Chapter.Title
	live.Content = last.Chapter.Content
	live.LengthPreset = last.Chapter.LengthPreset
	return s.SaveChapter(live)
}

// snapshotVersions returns the versions present on disk for id, ascending.
func (s *Store) snapshotVersions(id string) ([]int, error) {
	entries, err := s.fs.List(layout.VersionsDir, ".json")
	if err != nil {
		return nil, s.ioError("list snapshots", layout.VersionsDir, err)
	}
	var versions []int
	for _, e := range entries {
		if v, ok := layout.ParseSnapshotName(id, e.Name); ok {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)
	return versions, nil
}
