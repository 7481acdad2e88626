package renamer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeFilename_HappyPath(t *testing.T) {
	got := ComposeFilename("Ruri Saijo", "English Sub", "SONE-760", "The Same Commute Train As Always", ".mp4")
	assert.Equal(t, "Ruri Saijo - [English Sub] SONE-760 The Same Commute Train As Always.mp4", got)
}

func TestComposeFilename_StripsDuplicateCode(t *testing.T) {
	got := ComposeFilename("Actress", "No Sub", "SONE-760", "SONE-760 Sample", ".mp4")
	assert.Equal(t, 1, strings.Count(got, "SONE-760"))
}

func TestComposeFilename_RoundTripProperties(t *testing.T) {
	got := ComposeFilename("Ruri Saijo", "English Sub", "SONE-760", "Some Title", ".mkv")
	assert.Equal(t, 1, strings.Count(got, "SONE-760"))
	assert.True(t, strings.HasPrefix(got, "Ruri Saijo - "))
	assert.Contains(t, got, "[English Sub]")
	assert.True(t, strings.HasSuffix(got, ".mkv"))
	assert.LessOrEqual(t, len(got), 200)
}

func TestComposeFilename_TruncatesLongTitle(t *testing.T) {
	longTitle := strings.Repeat("Very Long Title Words ", 30)
	got := ComposeFilename("Actress", "No Sub", "ABC-123", longTitle, ".mp4")
	assert.LessOrEqual(t, len(got), 200)
	assert.True(t, strings.HasSuffix(got, ".mp4"))
	assert.Contains(t, got, "ABC-123")
}

func TestComposeFilename_SanitizesIllegalCharacters(t *testing.T) {
	got := ComposeFilename("Actress", "No Sub", "ABC-123", `Title: With/Illegal*Chars?`, ".mp4")
	for _, c := range []string{":", "/", "*", "?"} {
		assert.NotContains(t, got, c)
	}
}

func TestLocateActressDir_ReusesCaseInsensitively(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "Ruri Saijo")
	require.NoError(t, os.Mkdir(existing, 0o755))

	for _, name := range []string{"ruri saijo", "RURI SAIJO", "Ruri Saijo"} {
		dir, err := LocateActressDir(root, name)
		require.NoError(t, err)
		assert.Equal(t, existing, dir)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocateActressDir_CreatesWhenMissing(t *testing.T) {
	root := t.TempDir()
	dir, err := LocateActressDir(root, "New Actress")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "New Actress"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMove_RenameWithinFilesystem(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	source := filepath.Join(srcDir, "file.mp4")
	require.NoError(t, os.WriteFile(source, []byte("data"), 0o644))

	target, err := Move(source, destDir, "file.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "file.mp4"), target)

	_, err = os.Stat(source)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestMove_CollisionAppendsSuffix(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(destDir, "file.mp4"), []byte("existing"), 0o644))

	source := filepath.Join(srcDir, "file.mp4")
	require.NoError(t, os.WriteFile(source, []byte("new"), 0o644))

	target, err := Move(source, destDir, "file.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "file (1).mp4"), target)
}
