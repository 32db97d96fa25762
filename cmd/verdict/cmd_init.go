package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/settings"
	"github.com/funnelworks/verdict/internal/wizard"
)

func newInitCommand() *cobra.Command {
	var (
		useDefaults bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a settings file for batch runs",
		Long: `Initialize a settings file for batch runs.

Runs a guided wizard that collects the model, provider, input and output
paths, and retry policy, then writes ` + settings.DefaultFileName + ` along
with the input and output directories.

Use --defaults to skip the wizard and write a fully commented settings file
with the stock defaults.

If no directory is specified, the current directory is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, useDefaults, force)
		},
	}

	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "Write the example settings file without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing settings file")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, useDefaults, force bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	// Create the root directory if it doesn't exist
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, settings.DefaultFileName)

	inputDir := filepath.Join(dir, "logs")
	outputDir := filepath.Join(dir, "validated")

	if useDefaults {
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := settings.WriteExample(path); err != nil {
			return fmt.Errorf("failed to write settings file: %w", err)
		}
	} else {
		answers, err := wizard.Run(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := wizard.WriteSettings(answers, path, force); err != nil {
			return err
		}

		// The wizard answers may point the run elsewhere; create those
		// directories instead of the stock ones.
		inputDir = resolveWorkspaceDir(dir, answers.InputPath)
		outputDir = resolveWorkspaceDir(dir, answers.OutputPath)
	}

	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create input directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Print summary
	fmt.Fprintln(cmd.OutOrStdout(), "Initialized batch workspace:") //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)                  //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", inputDir)              //nolint:errcheck
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", outputDir)             //nolint:errcheck

	return nil
}

// resolveWorkspaceDir anchors a wizard path under the init directory unless
// the answer was already absolute.
func resolveWorkspaceDir(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
