package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"sync"

	"github.com/funnelworks/verdict/internal/models"
)

// Cache stores finished outcomes on disk so re-runs over the same inputs with
// the same parameters can skip the completion service entirely.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a new cache instance with the specified directory. An empty
// directory disables the cache.
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// KeyParams is everything that can change the outcome of a run for one
// subject. Any difference in these produces a different cache key.
type KeyParams struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	MaxRetries  int
	RulesetName string
	Subject     string
}

// Key generates a deterministic cache key for one subject run.
func Key(p KeyParams) string {
	h := sha256.New()

	writeString(h, p.Model)
	writeFloat(h, p.Temperature)
	writeFloat(h, p.TopP)
	writeInt(h, p.MaxTokens)
	writeInt(h, p.MaxRetries)
	writeString(h, p.RulesetName)
	writeString(h, p.Subject)

	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached outcome if it exists.
func (c *Cache) Get(key string) (*models.Outcome, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		// Cache miss
		return nil, false
	}

	var outcome models.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &outcome, true
}

// Put stores an outcome in the cache.
func (c *Cache) Put(key string, outcome *models.Outcome) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling outcome: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes all cached results.
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: only delete a directory that looks like one of ours,
	// meaning it holds nothing but .json cache entries.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if filepath.Ext(entry.Name()) == ".json" {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// cachePath returns the file path for a cache key
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Helper functions. hash.Hash writes never fail, so these don't return errors.

func writeString(h hash.Hash, s string) {
	// Null byte delimiter prevents hash collisions between adjacent fields.
	h.Write([]byte(s + "\x00"))
}

func writeInt(h hash.Hash, i int) {
	fmt.Fprintf(h, "%d\x00", i)
}

func writeFloat(h hash.Hash, f float64) {
	fmt.Fprintf(h, "%g\x00", f)
}
