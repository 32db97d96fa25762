package cleanup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"minimal", "Medium", " AGGRESSIVE "} {
		_, err := ParseLevel(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseLevel("extreme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extreme")
}

func TestCleanTextMinimal(t *testing.T) {
	input := "2025-01-05 10:00:00 GET /api/items\n\nDEBUG cache warm\nuser clicked Add Item\n"

	got := Clean(input, LevelMinimal)

	assert.Equal(t, "GET /api/items\nuser clicked Add Item", got)
}

func TestCleanTextMediumDropsStaticAndHeartbeat(t *testing.T) {
	input := "GET /static/app.css\nGET /health\nPOST /checkout -> 200\n"

	assert.Equal(t, "POST /checkout -> 200", Clean(input, LevelMedium))

	// Minimal keeps asset and heartbeat traffic.
	minimal := Clean(input, LevelMinimal)
	assert.Contains(t, minimal, "/static/app.css")
	assert.Contains(t, minimal, "/health")
}

func TestCleanTextAggressiveCompressesRuns(t *testing.T) {
	input := "GET /api/poll\nGET /api/poll\nGET /api/poll\nGET /api/poll\nGET /api/poll\nPOST /checkout\n"

	got := Clean(input, LevelAggressive)

	assert.Equal(t, "GET /api/poll (repeated 5 times)\nPOST /checkout", got)
}

func TestCleanTextShortRunsStayVerbatim(t *testing.T) {
	input := "GET /api/poll\nGET /api/poll\nPOST /checkout\n"

	got := Clean(input, LevelAggressive)

	assert.Equal(t, "GET /api/poll\nGET /api/poll\nPOST /checkout", got)
}

func TestCleanJSONMedium(t *testing.T) {
	input := `[
		{"endpoint": "/checkout", "method": "POST", "status_code": 200, "timestamp": "2025-01-05T10:00:00", "ip_address": "1.2.3.4"},
		{"endpoint": "/metrics", "method": "GET"}
	]`

	got := Clean(input, LevelMedium)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &entries))
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, "/checkout", entry["endpoint"])
	assert.NotContains(t, entry, "timestamp")
	assert.NotContains(t, entry, "ip_address")
}

func TestCleanJSONAggressiveKeepsEssentialFields(t *testing.T) {
	input := `[{"endpoint": "/payment", "method": "POST", "status_code": 201, "user_agent": "bot", "campaign": "x"}]`

	got := Clean(input, LevelAggressive)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{
		"endpoint":    "/payment",
		"method":      "POST",
		"status_code": float64(201),
	}, entries[0])
}

func TestCleanJSONAggressiveCompressesRepeats(t *testing.T) {
	input := `[
		{"endpoint": "/api/cart", "method": "GET", "event_name": "api_call"},
		{"endpoint": "/api/cart", "method": "GET", "event_name": "api_call"},
		{"endpoint": "/api/cart", "method": "GET", "event_name": "api_call"},
		{"endpoint": "/api/cart", "method": "GET", "event_name": "api_call"}
	]`

	got := Clean(input, LevelAggressive)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "(repeated 4 times)", entries[0]["_note"])
	assert.NotContains(t, entries[1], "_note")
}

func TestCleanJSONSingleObject(t *testing.T) {
	input := `{"endpoint": "/login", "timestamp": "2025-01-05T10:00:00"}`

	got := Clean(input, LevelMedium)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &entry))
	assert.Equal(t, map[string]any{"endpoint": "/login"}, entry)
}

func TestCleanMalformedJSONFallsBackToText(t *testing.T) {
	got := Clean("{broken json\nPOST /checkout\n", LevelMedium)
	assert.Contains(t, got, "POST /checkout")
}

func TestCleanFileGzipInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "session.log.gz")

	f, err := os.Create(in)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte("DEBUG warmup\nPOST /checkout -> 200\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out", "session_cleaned.log")
	fr, err := CleanFile(in, out, LevelMedium)
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "POST /checkout -> 200", string(content))
	assert.Greater(t, fr.OriginalSize, fr.CleanedSize)
	assert.Greater(t, fr.ReductionPercent(), 0.0)
}

func TestCleanDir(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(inDir, "b.log"), []byte("POST /checkout\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "a.txt"), []byte("user clicked Add Item\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inDir, "notes.md"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(inDir, "nested"), 0o755))

	results, err := CleanDir(inDir, outDir, LevelMedium)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(outDir, "a_cleaned.txt"), results[0].OutputFile)
	assert.Equal(t, filepath.Join(outDir, "b_cleaned.log"), results[1].OutputFile)
	for _, fr := range results {
		assert.Empty(t, fr.Err)
		assert.FileExists(t, fr.OutputFile)
	}
}

func TestCleanDirEmpty(t *testing.T) {
	_, err := CleanDir(t.TempDir(), t.TempDir(), LevelMedium)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log files")
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "app_cleaned.log", OutputName("app.log"))
	assert.Equal(t, "app_cleaned.log", OutputName("app.log.gz"))
	assert.Equal(t, "data_cleaned.json", OutputName("data.json"))
}
