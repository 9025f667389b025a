package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
)

func project(path string, chapters int, published bool) *models.BookProject {
	order := make([]string, chapters)
	docs := make(map[string]*models.ChapterDocument, chapters)
	for i := range order {
		id := schema.NextChapterID(order[:i], nil)
		order[i] = id
		c := schema.DefaultChapter(id, "c")
		c.Content = "<p>one two</p><script>var x</script>"
		docs[id] = c
	}
	meta := schema.DefaultMetadata("Title", "Author", order)
	meta.IsPublished = published
	return &models.BookProject{Path: path, Metadata: meta, Chapters: docs}
}

func newLibrary(t *testing.T) *Library {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data", FileName), nil)
}

func TestStatus(t *testing.T) {
	rules := models.StatusRules{AdvancedChapterThreshold: models.DefaultAdvancedChapterThreshold}
	assert.Equal(t, models.StatusNew, Status(false, 5, rules))
	assert.Equal(t, models.StatusAdvanced, Status(false, 6, rules))
	assert.Equal(t, models.StatusPublished, Status(true, 0, rules))
	assert.Equal(t, models.StatusAdvanced, Status(false, 6, models.StatusRules{}))
	assert.Equal(t, models.StatusAdvanced, Status(false, 2, models.StatusRules{AdvancedChapterThreshold: 2}))
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	lib := newLibrary(t)
	idx, err := lib.Load()
	require.NoError(t, err)
	assert.Empty(t, idx.Books)
	assert.Equal(t, models.DefaultAdvancedChapterThreshold, idx.StatusRules.AdvancedChapterThreshold)

	require.NoError(t, os.MkdirAll(filepath.Dir(lib.Path()), 0o755))
	require.NoError(t, os.WriteFile(lib.Path(), []byte("{nope"), 0o644))
	idx, err = lib.Load()
	require.NoError(t, err)
	assert.Empty(t, idx.Books)
}

func TestCorruptLibraryIsBackedUpBeforeOverwrite(t *testing.T) {
	lib := newLibrary(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(lib.Path()), 0o755))
	require.NoError(t, os.WriteFile(lib.Path(), []byte(`{"books": [{"path": "/a"`), 0o644))

	_, err := lib.Upsert(project(t.TempDir(), 1, false), UpsertOptions{MarkOpened: true})
	require.NoError(t, err)

	backup, err := os.ReadFile(lib.Path() + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, `{"books": [{"path": "/a"`, string(backup))

	idx, err := lib.Load()
	require.NoError(t, err)
	assert.Len(t, idx.Books, 1)
}

func TestUpsertDerivesEntry(t *testing.T) {
	lib := newLibrary(t)
	dir := t.TempDir()

	e, err := lib.Upsert(project(dir, 6, false), UpsertOptions{MarkOpened: true})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, dir, e.Path)
	assert.Equal(t, models.StatusAdvanced, e.Status)
	assert.Equal(t, 6, e.ChapterCount)
	assert.Equal(t, 12, e.WordCount)
	assert.NotEmpty(t, e.LastOpenedAt)
	assert.FileExists(t, lib.Path())
}

func TestUpsertPreservesIDAndLastOpened(t *testing.T) {
	lib := newLibrary(t)
	dir := t.TempDir()

	first, err := lib.Upsert(project(dir, 1, false), UpsertOptions{MarkOpened: true})
	require.NoError(t, err)
	second, err := lib.Upsert(project(dir+string(filepath.Separator), 2, true), UpsertOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.LastOpenedAt, second.LastOpenedAt)
	assert.Equal(t, models.StatusPublished, second.Status)

	idx, err := lib.Load()
	require.NoError(t, err)
	require.Len(t, idx.Books, 1)
	assert.Equal(t, 2, idx.Books[0].ChapterCount)
}

func TestUpsertSortsByLastOpened(t *testing.T) {
	lib := newLibrary(t)
	a, b := t.TempDir(), t.TempDir()

	_, err := lib.Upsert(project(a, 1, false), UpsertOptions{MarkOpened: true})
	require.NoError(t, err)
	idx, err := lib.Load()
	require.NoError(t, err)
	idx.Books[0].LastOpenedAt = "2020-01-01T00:00:00.000Z"
	require.NoError(t, lib.Save(idx))

	_, err = lib.Upsert(project(b, 1, false), UpsertOptions{MarkOpened: true})
	require.NoError(t, err)
	_, err = lib.Upsert(project(a, 3, false), UpsertOptions{})
	require.NoError(t, err)

	idx, err = lib.Load()
	require.NoError(t, err)
	require.Len(t, idx.Books, 2)
	assert.Equal(t, b, idx.Books[0].Path)
	assert.Equal(t, a, idx.Books[1].Path)
}

func TestRemove(t *testing.T) {
	lib := newLibrary(t)
	dir := t.TempDir()
	_, err := lib.Upsert(project(dir, 1, false), UpsertOptions{})
	require.NoError(t, err)

	require.NoError(t, lib.Remove(dir, RemoveOptions{}))
	assert.DirExists(t, dir)
	idx, err := lib.Load()
	require.NoError(t, err)
	assert.Empty(t, idx.Books)

	require.NoError(t, lib.Remove(dir, RemoveOptions{}))
}

func TestRemoveDeleteFilesRefusesNonBook(t *testing.T) {
	lib := newLibrary(t)
	dir := t.TempDir()
	keep := filepath.Join(dir, "taxes.pdf")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, layout.ChaptersDir), 0o755))
	_, err := lib.Upsert(project(dir, 1, false), UpsertOptions{})
	require.NoError(t, err)

	err = lib.Remove(dir, RemoveOptions{DeleteFiles: true})
	require.ErrorIs(t, err, apperr.ErrUnsafeDeletion)
	assert.Equal(t, dir, apperr.PathOf(err))
	assert.FileExists(t, keep)

	idx, err := lib.Load()
	require.NoError(t, err)
	assert.Len(t, idx.Books, 1)
}

func TestRemoveDeleteFiles(t *testing.T) {
	lib := newLibrary(t)
	dir := filepath.Join(t.TempDir(), "Book")
	for _, sub := range layout.ScaffoldDirs {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	_, err := lib.Upsert(project(dir, 1, false), UpsertOptions{})
	require.NoError(t, err)

	require.NoError(t, lib.Remove(dir, RemoveOptions{DeleteFiles: true}))
	assert.NoDirExists(t, dir)
	idx, err := lib.Load()
	require.NoError(t, err)
	assert.Empty(t, idx.Books)
}

func TestLoadDeduplicatesPaths(t *testing.T) {
	lib := newLibrary(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(lib.Path()), 0o755))
	doc := `{"books": [{"id": "a", "path": "/books/x"}, {"id": "b", "path": "/books/x/"}]}`
	require.NoError(t, os.WriteFile(lib.Path(), []byte(doc), 0o644))

	idx, err := lib.Load()
	require.NoError(t, err)
	require.Len(t, idx.Books, 1)
	assert.Equal(t, "a", idx.Books[0].ID)
}
