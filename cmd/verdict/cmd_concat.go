package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/concat"
)

var (
	concatBatch      bool
	concatOutputName string
)

func newConcatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concat <directory>",
		Short: "Concatenate text files for side-by-side review",
		Long: `Concatenate the text files in a directory into one file, each section
headed by "FILE: <name>" and separated by a divider line. Unreadable files
are recorded in place with their error instead of aborting the run.

With --batch, every immediate subfolder is concatenated separately, writing
one output file into each subfolder.`,
		Args: cobra.ExactArgs(1),
		RunE: concatCommandE,
	}

	cmd.Flags().BoolVar(&concatBatch, "batch", false, "Concatenate each immediate subfolder separately")
	cmd.Flags().StringVarP(&concatOutputName, "output-name", "o", concat.DefaultOutputName, "Name of the output file written into the folder")

	return cmd
}

func concatCommandE(cmd *cobra.Command, args []string) error {
	dir := args[0]

	if concatBatch {
		results, err := concat.Subdirs(dir, concatOutputName)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Err != "" {
				failed++
				fmt.Printf("  ✗ %s: %s\n", filepath.Base(res.InputDir), res.Err)
				continue
			}
			fmt.Printf("  ✓ %s: %d file(s) → %s\n", filepath.Base(res.InputDir), len(res.Files), res.OutputPath)
		}
		fmt.Printf("\nProcessed %d folder(s), %d failed\n", len(results), failed)

		if failed > 0 {
			return &BatchFailureError{
				Message: fmt.Sprintf("concatenation completed with %d folder error(s)", failed),
			}
		}
		return nil
	}

	res, err := concat.Dir(dir, concatOutputName)
	if err != nil {
		return err
	}

	fmt.Printf("Concatenated %d file(s) into %s\n", len(res.Files), res.OutputPath)
	if res.Errors > 0 {
		fmt.Printf("  %d file(s) could not be read; their errors are recorded in the output\n", res.Errors)
	}

	return nil
}
