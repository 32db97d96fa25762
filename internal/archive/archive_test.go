package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeResults(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "results")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "artifacts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "validation_summary.json"), []byte(`{"run_id":"r1"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "artifacts", "a_validated.txt"), []byte("Tag: Conversion [ok]."), 0o644))
	return dir
}

func readBundle(t *testing.T, path string) map[string]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]string)
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = string(content)
	}
	return entries
}

func TestBundleFile(t *testing.T) {
	dir := writeResults(t)

	path, count, err := BundleFile(dir)
	require.NoError(t, err)

	assert.Equal(t, dir+BundleSuffix, path)
	assert.Equal(t, 2, count)

	entries := readBundle(t, path)
	assert.Equal(t, `{"run_id":"r1"}`, entries["validation_summary.json"])
	assert.Equal(t, "Tag: Conversion [ok].", entries["artifacts/a_validated.txt"])
}

func TestBundleEmptyDir(t *testing.T) {
	dir := t.TempDir()

	_, _, err := BundleFile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to archive")
	assert.NoFileExists(t, dir+BundleSuffix)
}

func TestBundleMissingDir(t *testing.T) {
	var sink strings.Builder
	_, err := Bundle(filepath.Join(t.TempDir(), "absent"), &sink)
	require.Error(t, err)
}

func TestUploadConfigValidation(t *testing.T) {
	ctx := context.Background()

	_, err := Upload(ctx, UploadConfig{}, strings.NewReader(""))
	assert.ErrorContains(t, err, "service URL")

	_, err = Upload(ctx, UploadConfig{ServiceURL: "https://acct.blob.core.windows.net"}, strings.NewReader(""))
	assert.ErrorContains(t, err, "container")

	_, err = Upload(ctx, UploadConfig{ServiceURL: "https://acct.blob.core.windows.net", Container: "runs"}, strings.NewReader(""))
	assert.ErrorContains(t, err, "blob")
}

func TestBlobURL(t *testing.T) {
	got := blobURL("https://acct.blob.core.windows.net/?sv=2024&sig=abc", "runs", "r1.tar.zst")
	assert.Equal(t, "https://acct.blob.core.windows.net/runs/r1.tar.zst", got)

	got = blobURL("https://acct.blob.core.windows.net", "runs", "r1.tar.zst")
	assert.Equal(t, "https://acct.blob.core.windows.net/runs/r1.tar.zst", got)
}

func TestHasSASToken(t *testing.T) {
	assert.True(t, hasSASToken("https://acct.blob.core.windows.net/?sv=2024"))
	assert.False(t, hasSASToken("https://acct.blob.core.windows.net"))
}
