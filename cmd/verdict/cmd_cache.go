package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/cache"
)

var cacheDir string

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the outcome cache",
		Long: `Manage the outcome cache.

The cache stores classification outcomes to speed up repeated runs over the
same logs. Entries are keyed by model, sampling parameters, retry budget,
ruleset and subject text, so a change to any of them misses the cache.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the outcome cache",
		Long: `Clear all cached classification outcomes.

The next run will submit every log to the completion service again.`,
		RunE: cacheClearE,
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".verdict-cache", "Cache directory to clear")

	return cmd
}

func cacheClearE(cmd *cobra.Command, args []string) error {
	// Resolve to absolute path
	absDir, err := filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("resolving cache directory: %w", err)
	}

	c := cache.New(absDir)
	if err := c.Clear(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	fmt.Printf("Cache cleared: %s\n", absDir)
	return nil
}
