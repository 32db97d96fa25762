package wizard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnelworks/verdict/internal/settings"
)

func testAnswers() *Answers {
	return &Answers{
		Model:      "llama3.3:70b",
		Provider:   settings.ProviderOllama,
		BaseURL:    "http://localhost:11434",
		InputPath:  "./sessions",
		OutputPath: "./validated",
		MaxRetries: 3,
		TestMode:   true,
	}
}

func TestRenderSettingsRoundTrip(t *testing.T) {
	content, err := RenderSettings(testAnswers())
	require.NoError(t, err)

	s, err := settings.Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "llama3.3:70b", s.Model)
	assert.Equal(t, settings.ProviderOllama, s.Provider)
	assert.Equal(t, "./sessions", s.InputPath)
	assert.Equal(t, "./validated", s.OutputPath)
	assert.Equal(t, 3, s.MaxRetries)
	assert.True(t, s.TestMode)

	// Untouched keys keep their defaults.
	assert.Equal(t, settings.Default().MaxTokens, s.MaxTokens)
}

func TestWriteSettingsRefusesToClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), settings.DefaultFileName)

	require.NoError(t, WriteSettings(testAnswers(), path, false))

	err := WriteSettings(testAnswers(), path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, WriteSettings(testAnswers(), path, true))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "MODEL=llama3.3:70b")
}

func TestValidateRetries(t *testing.T) {
	assert.NoError(t, validateRetries("0"))
	assert.NoError(t, validateRetries(" 10 "))
	assert.Error(t, validateRetries("11"))
	assert.Error(t, validateRetries("-1"))
	assert.Error(t, validateRetries("many"))
}

func TestValidateNonEmpty(t *testing.T) {
	check := validateNonEmpty("input path")
	assert.NoError(t, check("sessions"))

	err := check("   ")
	require.Error(t, err)
	assert.EqualError(t, err, "input path is required")
}
