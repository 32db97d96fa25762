package concat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.log"), []byte("first file\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.csv"), []byte("ignored"), 0o644))

	res, err := Dir(dir, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"a.log", "b.txt"}, res.Files)
	assert.Equal(t, 0, res.Errors)
	assert.Equal(t, filepath.Join(dir, DefaultOutputName), res.OutputPath)

	content, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)

	bar := strings.Repeat("=", 80)
	want := "FILE: a.log\n" + bar + "\n" +
		"first file\n" +
		"\n" + bar + "\n" +
		"FILE: b.txt\n" + bar + "\n" +
		"second file\n"
	assert.Equal(t, want, string(content))
}

func TestDirSkipsItsOwnOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644))

	first, err := Dir(dir, "combined.txt")
	require.NoError(t, err)

	// Running again must not fold the combined file into itself.
	second, err := Dir(dir, "combined.txt")
	require.NoError(t, err)
	assert.Equal(t, first.Files, second.Files)

	content, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "FILE: a.txt"))
	assert.NotContains(t, string(content), "FILE: combined.txt")
}

func TestDirEmptyFolder(t *testing.T) {
	_, err := Dir(t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text files")
}

func TestSubdirs(t *testing.T) {
	parent := t.TempDir()

	aDir := filepath.Join(parent, "session_a")
	require.NoError(t, os.Mkdir(aDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(aDir, "x.txt"), []byte("alpha\n"), 0o644))

	bDir := filepath.Join(parent, "session_b")
	require.NoError(t, os.Mkdir(bDir, 0o755))

	results, err := Subdirs(parent, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Empty(t, results[0].Err)
	assert.FileExists(t, results[0].OutputPath)

	// Empty subfolder is reported, not fatal.
	assert.Contains(t, results[1].Err, "no text files")
}

func TestSubdirsNoFolders(t *testing.T) {
	_, err := Subdirs(t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no subfolders")
}
