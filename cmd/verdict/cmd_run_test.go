package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnelworks/verdict/internal/artifact"
)

// resetRunGlobals zeroes the package-level flag vars so prior tests don't leak.
func resetRunGlobals() {
	settingsPath = ""
	runInput = ""
	runOutput = ""
	runModel = ""
	runProvider = ""
	runBaseURL = ""
	runMaxRetries = -1
	runWorkers = 0
	runTestMode = false
	runVerbose = false
	runNoCache = false
	runCacheDir = ""
	runNoAttempts = false
	runRulesetPath = ""
	runJUnitPath = ""
}

// useMockSettings points settingsPath at a mock-provider settings file with
// no inter-file delay, so batch tests run instantly.
func useMockSettings(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.txt")
	require.NoError(t, os.WriteFile(path, []byte("PROVIDER=mock\nFILE_DELAY_MS=0\n"), 0o644))
	settingsPath = path
}

// createLogDir writes a couple of session logs and returns the directory.
func createLogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	logs := map[string]string{
		"CO_session_001.log": "User browsed, added a jacket to the cart and paid.",
		"DO_session_002.log": "User browsed for a while and left without buying.",
	}
	for name, content := range logs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// ---------------------------------------------------------------------------
// Argument and flag handling
// ---------------------------------------------------------------------------

func TestRunCommand_TooManyArgs(t *testing.T) {
	cmd := newRunCommand()
	cmd.SetArgs([]string{"a", "b"})
	err := cmd.Execute()
	assert.Error(t, err)
}

func TestRunCommand_FlagsParsed(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--provider", "mock",
		"--model", "test-model",
		"--workers", "3",
		"--verbose",
	}))

	val, err := cmd.Flags().GetString("provider")
	require.NoError(t, err)
	assert.Equal(t, "mock", val)

	val, err = cmd.Flags().GetString("model")
	require.NoError(t, err)
	assert.Equal(t, "test-model", val)

	intVal, err := cmd.Flags().GetInt("workers")
	require.NoError(t, err)
	assert.Equal(t, 3, intVal)

	boolVal, err := cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	assert.True(t, boolVal)
}

func TestRunCommand_ShortFlags(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"-i", "logs",
		"-o", "out",
		"-m", "m1",
		"-v",
	}))

	val, err := cmd.Flags().GetString("input")
	require.NoError(t, err)
	assert.Equal(t, "logs", val)

	val, err = cmd.Flags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "out", val)
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

func TestRunCommand_MissingInputPath(t *testing.T) {
	resetRunGlobals()
	useMockSettings(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input path")
}

func TestRunCommand_UnknownProvider(t *testing.T) {
	resetRunGlobals()

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--provider", "nonexistent-provider", t.TempDir()})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVIDER must be one of")
}

func TestRunCommand_MissingInputDir(t *testing.T) {
	resetRunGlobals()
	useMockSettings(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input path")
}

// ---------------------------------------------------------------------------
// Integration with the mock provider — full runs
// ---------------------------------------------------------------------------

func TestRunCommand_MockRun(t *testing.T) {
	resetRunGlobals()
	useMockSettings(t)

	inputDir := createLogDir(t)
	outputDir := filepath.Join(t.TempDir(), "validated")

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--output", outputDir, inputDir})

	require.NoError(t, cmd.Execute())

	// Every log produced a validated artifact plus the batch summary.
	assert.FileExists(t, filepath.Join(outputDir, "CO_session_001"+artifact.ValidatedSuffix))
	assert.FileExists(t, filepath.Join(outputDir, "DO_session_002"+artifact.ValidatedSuffix))

	data, err := os.ReadFile(filepath.Join(outputDir, artifact.SummaryFileName))
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, float64(2), summary["total_files"])
	assert.Equal(t, float64(2), summary["succeeded"])
}

func TestRunCommand_MockRunVerbose(t *testing.T) {
	resetRunGlobals()
	useMockSettings(t)

	inputDir := createLogDir(t)

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--verbose", "--output", filepath.Join(t.TempDir(), "out"), inputDir})

	assert.NoError(t, cmd.Execute())
}

func TestRunCommand_JUnitReport(t *testing.T) {
	resetRunGlobals()
	useMockSettings(t)

	inputDir := createLogDir(t)
	junitPath := filepath.Join(t.TempDir(), "report.xml")

	cmd := newRunCommand()
	cmd.SetArgs([]string{
		"--output", filepath.Join(t.TempDir(), "out"),
		"--junit", junitPath,
		inputDir,
	})

	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(junitPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<testsuites")
}

func TestRunCommand_SettingsFile(t *testing.T) {
	resetRunGlobals()

	inputDir := createLogDir(t)
	outputDir := filepath.Join(t.TempDir(), "validated")

	settingsFile := filepath.Join(t.TempDir(), "settings.txt")
	contents := "PROVIDER=mock\nMODEL=scripted\nINPUT_PATH=" + inputDir + "\nOUTPUT_PATH=" + outputDir + "\nFILE_DELAY_MS=0\n"
	require.NoError(t, os.WriteFile(settingsFile, []byte(contents), 0o644))

	settingsPath = settingsFile

	cmd := newRunCommand()
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.FileExists(t, filepath.Join(outputDir, artifact.SummaryFileName))
}

func TestRunCommand_CachedSecondRun(t *testing.T) {
	inputDir := createLogDir(t)
	cacheDir := filepath.Join(t.TempDir(), "cache")

	for range 2 {
		resetRunGlobals()
		useMockSettings(t)

		cmd := newRunCommand()
		cmd.SetArgs([]string{
			"--output", filepath.Join(t.TempDir(), "out"),
			"--cache-dir", cacheDir,
			inputDir,
		})
		require.NoError(t, cmd.Execute())
	}

	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRunCommand_ReturnsBatchFailureOnFileError(t *testing.T) {
	resetRunGlobals()
	useMockSettings(t)

	inputDir := createLogDir(t)
	// Not actually gzip; reading it fails while the rest of the batch runs.
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "broken.log.gz"), []byte("not gzip"), 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--output", filepath.Join(t.TempDir(), "out"), inputDir})

	err := cmd.Execute()
	require.Error(t, err)

	var batchErr *BatchFailureError
	require.True(t, errors.As(err, &batchErr))
	assert.Contains(t, batchErr.Message, "1 file error(s)")
}

func TestRunCommand_ReturnsRegularErrorOnUnwritableOutput(t *testing.T) {
	resetRunGlobals()
	useMockSettings(t)

	inputDir := createLogDir(t)

	// Output path is an existing file, so artifact writes cannot happen.
	outputFile := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(outputFile, []byte("x"), 0o644))

	cmd := newRunCommand()
	cmd.SetArgs([]string{"--output", outputFile, inputDir})

	err := cmd.Execute()
	require.Error(t, err)

	var batchErr *BatchFailureError
	assert.False(t, errors.As(err, &batchErr), "unwritable output is a runtime error, not a file failure")
}

// ---------------------------------------------------------------------------
// Root command wiring
// ---------------------------------------------------------------------------

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := newRootCommand()

	want := []string{"run", "validate", "check", "init", "report", "cleanup", "concat", "archive", "cache"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "expected subcommand %q", name)
	}
}
