package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/funnelworks/verdict/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseParams() KeyParams {
	return KeyParams{
		Model:       "llama3.3:70b",
		Temperature: 0.1,
		TopP:        0.2,
		MaxTokens:   400,
		MaxRetries:  2,
		RulesetName: "session-outcome",
		Subject:     "session log contents",
	}
}

func TestKey(t *testing.T) {
	key1 := Key(baseParams())
	assert.NotEmpty(t, key1)
	assert.Len(t, key1, 64) // SHA256 hex is 64 chars

	// Same inputs should produce same key
	key2 := Key(baseParams())
	assert.Equal(t, key1, key2)
}

func TestKey_Sensitivity(t *testing.T) {
	base := Key(baseParams())

	tests := []struct {
		name   string
		mutate func(p *KeyParams)
	}{
		{"model", func(p *KeyParams) { p.Model = "mistral:7b" }},
		{"temperature", func(p *KeyParams) { p.Temperature = 0.7 }},
		{"top_p", func(p *KeyParams) { p.TopP = 0.9 }},
		{"max_tokens", func(p *KeyParams) { p.MaxTokens = 2000 }},
		{"max_retries", func(p *KeyParams) { p.MaxRetries = 0 }},
		{"ruleset", func(p *KeyParams) { p.RulesetName = "purchase-outcome" }},
		{"subject", func(p *KeyParams) { p.Subject = "a different log" }},
	}

	for _, tt := range tests {
		t.Run("changing "+tt.name+" changes the key", func(t *testing.T) {
			p := baseParams()
			tt.mutate(&p)
			assert.NotEqual(t, base, Key(p))
		})
	}
}

func TestKey_NoHashCollision(t *testing.T) {
	// Field delimiters keep adjacent fields from bleeding into each other.
	p1 := baseParams()
	p1.Model = "ab"
	p1.RulesetName = "cd"

	p2 := baseParams()
	p2.Model = "abc"
	p2.RulesetName = "d"

	assert.NotEqual(t, Key(p1), Key(p2), "field delimiters should prevent hash collisions")
}

func sampleOutcome() *models.Outcome {
	return &models.Outcome{
		SourcePath:   "session_001.log",
		Decision:     models.DecisionConversion,
		FinalText:    "Tag: Conversion [Checkout completed].\n1) Added item\n2) Paid",
		AttemptsUsed: 1,
		Attempts: []models.AttemptRecord{
			{Number: 1, Valid: true, Decision: models.DecisionConversion},
		},
	}
}

func TestCache_GetPut(t *testing.T) {
	c := New(t.TempDir())

	key := Key(baseParams())

	// Cache miss
	retrieved, found := c.Get(key)
	assert.False(t, found)
	assert.Nil(t, retrieved)

	// Store in cache
	outcome := sampleOutcome()
	require.NoError(t, c.Put(key, outcome))

	// Cache hit
	retrieved, found = c.Get(key)
	assert.True(t, found)
	require.NotNil(t, retrieved)
	assert.Equal(t, outcome.Decision, retrieved.Decision)
	assert.Equal(t, outcome.FinalText, retrieved.FinalText)
	assert.Equal(t, outcome.AttemptsUsed, retrieved.AttemptsUsed)
	assert.Len(t, retrieved.Attempts, 1)
}

func TestCache_CorruptEntryIsAMiss(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	key := "corrupt-key"
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, key+".json"), []byte("{not json"), 0644))

	retrieved, found := c.Get(key)
	assert.False(t, found)
	assert.Nil(t, retrieved)
}

func TestCache_EmptyDir(t *testing.T) {
	c := New("")

	// Get should return false
	_, found := c.Get("any-key")
	assert.False(t, found)

	// Put should be no-op
	err := c.Put("key", sampleOutcome())
	assert.NoError(t, err)

	// Clear should be no-op
	err = c.Clear()
	assert.NoError(t, err)
}

func TestCache_Clear(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	require.NoError(t, c.Put("key1", sampleOutcome()))
	require.NoError(t, c.Put("key2", sampleOutcome()))

	_, found := c.Get("key1")
	assert.True(t, found)

	require.NoError(t, c.Clear())

	_, found = c.Get("key1")
	assert.False(t, found)
	_, found = c.Get("key2")
	assert.False(t, found)

	_, err := os.Stat(cacheDir)
	assert.True(t, os.IsNotExist(err))
}

func TestCache_Clear_SafetyChecks(t *testing.T) {
	t.Run("refuses to clear directory with subdirectories", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)

		require.NoError(t, c.Put("key1", sampleOutcome()))
		require.NoError(t, os.Mkdir(filepath.Join(cacheDir, "subdir"), 0755))

		err := c.Clear()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "subdirectories")

		// Cache directory should still exist
		_, err = os.Stat(cacheDir)
		assert.NoError(t, err)
	})

	t.Run("refuses to clear directory with non-json files", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)

		require.NoError(t, c.Put("key1", sampleOutcome()))
		require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "README.txt"), []byte("test"), 0644))

		err := c.Clear()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "non-cache files")

		_, err = os.Stat(cacheDir)
		assert.NoError(t, err)
	})

	t.Run("successfully clears empty cache directory", func(t *testing.T) {
		cacheDir := t.TempDir()
		c := New(cacheDir)

		require.NoError(t, c.Clear())

		_, err := os.Stat(cacheDir)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestCache_ConcurrentOperations(t *testing.T) {
	cacheDir := t.TempDir()
	c := New(cacheDir)

	numGoroutines := 10
	numOperations := 20

	t.Run("concurrent Put operations on different keys", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := fmt.Sprintf("key-%d-%d", id, j)
					assert.NoError(t, c.Put(key, sampleOutcome()))
				}
			}(i)
		}
		wg.Wait()

		entries, err := os.ReadDir(cacheDir)
		require.NoError(t, err)
		assert.Equal(t, numGoroutines*numOperations, len(entries))
	})

	t.Run("concurrent Put on same key", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, c.Put("same-key", sampleOutcome()))
			}()
		}
		wg.Wait()

		outcome, found := c.Get("same-key")
		assert.True(t, found, "cache entry should exist after concurrent writes")
		assert.NotNil(t, outcome, "cached outcome should be valid")
	})
}
