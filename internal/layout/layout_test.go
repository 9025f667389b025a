package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsScaffold(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsScaffold(dir))

	for _, sub := range []string{ChaptersDir, AssetsDir} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, sub), 0o755))
	}
	assert.False(t, IsScaffold(dir), "versions/ still missing")

	require.NoError(t, os.Mkdir(filepath.Join(dir, VersionsDir), 0o755))
	assert.True(t, IsScaffold(dir))
	assert.True(t, IsBook(dir))
	assert.False(t, HasMetadata(dir))
}

func TestHasMetadataRequiresRegularFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, MetadataFile), 0o755))
	assert.False(t, HasMetadata(dir))

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, MetadataFile), []byte("{}"), 0o644))
	assert.True(t, HasMetadata(other))
}

func TestParseSnapshotName(t *testing.T) {
	cases := []struct {
		id, name string
		want     int
		ok       bool
	}{
		{"01", "01_v1.json", 1, true},
		{"01", "01_v12.json", 12, true},
		{"01", "02_v1.json", 0, false},
		{"1", "1_v2_v3.json", 0, false},
		{"1_v2", "1_v2_v3.json", 3, true},
		{"01", "01_v.json", 0, false},
		{"01", "01_v0.json", 0, false},
		{"01", "01_vx.json", 0, false},
		{"01", "01_v3.txt", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseSnapshotName(c.id, c.name)
		assert.Equal(t, c.ok, ok, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
	assert.Equal(t, "intro_v4.json", SnapshotName("intro", 4))
}

func TestIDFromJSONName(t *testing.T) {
	id, ok := IDFromJSONName("07.json")
	assert.True(t, ok)
	assert.Equal(t, "07", id)

	_, ok = IDFromJSONName(".quill-tmp-1.json")
	assert.False(t, ok)
	_, ok = IDFromJSONName("notes.txt")
	assert.False(t, ok)
}
