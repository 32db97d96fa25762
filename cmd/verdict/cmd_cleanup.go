package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/cleanup"
)

var (
	cleanupLevel  string
	cleanupOutput string
)

func newCleanupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup <file-or-dir>",
		Short: "Strip noise from session logs before classification",
		Long: `Strip noise from session logs so the model sees the signal.

Removes timestamps, debug lines, static asset requests and heartbeats, and
compresses runs of repeated entries, at one of three levels:

  minimal     timestamps only
  medium      timestamps, debug noise, static assets, heartbeats
  aggressive  medium plus field whitelisting and repeat compression

JSON logs are filtered entry by entry; anything else is treated as plain
text. Gzipped inputs are decompressed first. Key business events (checkout,
payment, cart changes) survive every level.`,
		Args: cobra.ExactArgs(1),
		RunE: cleanupCommandE,
	}

	cmd.Flags().StringVar(&cleanupLevel, "level", "medium", "Cleanup level: minimal | medium | aggressive")
	cmd.Flags().StringVarP(&cleanupOutput, "output", "o", "", "Output file or directory (default: <name>_cleaned next to the input)")

	return cmd
}

func cleanupCommandE(cmd *cobra.Command, args []string) error {
	level, err := cleanup.ParseLevel(cleanupLevel)
	if err != nil {
		return err
	}

	input := args[0]
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}

	if !info.IsDir() {
		out := cleanupOutput
		if out == "" {
			out = filepath.Join(filepath.Dir(input), cleanup.OutputName(input))
		}

		fr, err := cleanup.CleanFile(input, out, level)
		if err != nil {
			return err
		}
		printCleanResult(fr)
		return nil
	}

	outDir := cleanupOutput
	if outDir == "" {
		outDir = strings.TrimRight(input, string(os.PathSeparator)) + "_cleaned"
	}

	results, err := cleanup.CleanDir(input, outDir, level)
	if err != nil {
		return err
	}

	failed := 0
	for _, fr := range results {
		if fr.Err != "" {
			failed++
			fmt.Printf("  ✗ %s: %s\n", filepath.Base(fr.InputFile), fr.Err)
			continue
		}
		printCleanResult(fr)
	}

	fmt.Printf("\nCleaned %d of %d file(s) into %s\n", len(results)-failed, len(results), outDir)

	if failed > 0 {
		return &BatchFailureError{
			Message: fmt.Sprintf("cleanup completed with %d file error(s)", failed),
		}
	}
	return nil
}

func printCleanResult(fr cleanup.FileResult) {
	fmt.Printf("  ✓ %s → %s (%.1f%% smaller)\n",
		filepath.Base(fr.InputFile), filepath.Base(fr.OutputFile), fr.ReductionPercent())
}
