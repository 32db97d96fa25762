package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/settings"
)

var version = "dev"

// settingsPath is the persistent --settings flag. Empty means "use
// verdict_settings.txt from the working directory when it exists".
var settingsPath string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verdict",
		Short: "Verdict - validated LLM classification of e-commerce session logs",
		Long: `Verdict classifies e-commerce session logs with an LLM and refuses to
accept sloppy answers.

Every response is validated against a strict output contract (a tag line plus
enumerated evidence steps); invalid responses trigger corrective retries, and
exhausted retries produce an explicit Unknown fallback instead of an error.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "Path to settings file (default: ./"+settings.DefaultFileName+" when present)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newCheckCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newReportCommand())
	cmd.AddCommand(newCleanupCommand())
	cmd.AddCommand(newConcatCommand())
	cmd.AddCommand(newArchiveCommand())
	cmd.AddCommand(newCacheCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

// loadSettings resolves the active settings: the --settings file when given,
// the default file when present in the working directory, stock defaults
// otherwise.
func loadSettings() (*settings.Settings, error) {
	if settingsPath != "" {
		return settings.Load(settingsPath)
	}

	if _, err := os.Stat(settings.DefaultFileName); err == nil {
		return settings.Load(settings.DefaultFileName)
	}

	s := settings.Default()
	return &s, nil
}
