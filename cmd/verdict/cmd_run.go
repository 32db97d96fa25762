package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/funnelworks/verdict/internal/artifact"
	"github.com/funnelworks/verdict/internal/batch"
	"github.com/funnelworks/verdict/internal/cache"
	"github.com/funnelworks/verdict/internal/completion"
	"github.com/funnelworks/verdict/internal/models"
	"github.com/funnelworks/verdict/internal/prompt"
	"github.com/funnelworks/verdict/internal/ruleset"
	"github.com/funnelworks/verdict/internal/runner"
	"github.com/funnelworks/verdict/internal/settings"
	"github.com/funnelworks/verdict/internal/spinner"
	"github.com/funnelworks/verdict/internal/validate"
)

var (
	runInput       string
	runOutput      string
	runModel       string
	runProvider    string
	runBaseURL     string
	runMaxRetries  int
	runWorkers     int
	runTestMode    bool
	runVerbose     bool
	runNoCache     bool
	runCacheDir    string
	runNoAttempts  bool
	runRulesetPath string
	runJUnitPath   string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [input-path]",
		Short: "Classify a batch of session logs",
		Long: `Classify a batch of e-commerce session logs.

Each log is submitted to the configured completion service, the response is
validated against the output contract, and invalid responses trigger
corrective retries. Validated artifacts and a JSON summary are written to the
output directory.

The input path may be a single log file or a directory of logs. Flags
override values from the settings file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&runInput, "input", "i", "", "Input log file or directory (overrides INPUT_PATH)")
	cmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output directory for validated artifacts (overrides OUTPUT_PATH)")
	cmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to use (overrides MODEL)")
	cmd.Flags().StringVar(&runProvider, "provider", "", "Completion provider: ollama, copilot, mock (overrides PROVIDER)")
	cmd.Flags().StringVar(&runBaseURL, "base-url", "", "Completion service base URL (overrides BASE_URL)")
	cmd.Flags().IntVar(&runMaxRetries, "max-retries", -1, "Corrective retries after the first attempt (overrides MAX_RETRIES)")
	cmd.Flags().IntVar(&runWorkers, "workers", 0, "Number of concurrent workers (overrides WORKERS)")
	cmd.Flags().BoolVar(&runTestMode, "test-mode", false, "Process only the first 3 files")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose output with per-attempt progress")
	cmd.Flags().BoolVar(&runNoCache, "no-cache", false, "Disable outcome caching even when CACHE_DIR is set")
	cmd.Flags().StringVar(&runCacheDir, "cache-dir", "", "Cache directory for outcomes (overrides CACHE_DIR)")
	cmd.Flags().BoolVar(&runNoAttempts, "no-attempts", false, "Skip writing per-attempt transcripts")
	cmd.Flags().StringVar(&runRulesetPath, "ruleset", "", "YAML validation ruleset (overrides RULESET)")
	cmd.Flags().StringVar(&runJUnitPath, "junit", "", "Write a JUnit XML report to this path")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	// CLI flags override settings
	applyRunOverrides(s)
	if len(args) > 0 {
		s.InputPath = args[0]
	}
	if err := s.Validate(); err != nil {
		return err
	}

	if s.InputPath == "" {
		return fmt.Errorf("no input path: pass one as an argument or set INPUT_PATH in the settings file")
	}
	if s.OutputPath == "" {
		s.OutputPath = "validated"
	}

	rs := ruleset.Default()
	if s.Ruleset != "" {
		rs, err = ruleset.Load(s.Ruleset)
		if err != nil {
			return fmt.Errorf("loading ruleset: %w", err)
		}
	}

	validator, err := validate.NewTagValidator(rs.Name, rs)
	if err != nil {
		return fmt.Errorf("building validator: %w", err)
	}

	completer, err := newCompleter(s)
	if err != nil {
		return err
	}

	run := runner.New(s.RunnerConfig(), completer, validator,
		runner.WithPromptBuilder(prompt.NewBuilder(rs.Decisions)))

	writer := artifact.NewWriter(s.OutputPath, s.Model, s.SaveAttempts)

	// Setup cache if a directory is configured
	var driverOpts []batch.Option
	if s.CacheDir != "" && !runNoCache {
		absCacheDir, err := filepath.Abs(s.CacheDir)
		if err != nil {
			return fmt.Errorf("resolving cache directory: %w", err)
		}
		driverOpts = append(driverOpts,
			batch.WithCache(cache.New(absCacheDir)),
			batch.WithRulesetName(rs.Name))
		if runVerbose {
			fmt.Printf("Cache enabled: %s\n", absCacheDir)
		}
	}

	driver := batch.NewDriver(batch.Config{
		Runner:    s.RunnerConfig(),
		TestMode:  s.TestMode,
		Workers:   s.Workers,
		FileDelay: s.FileDelay(),
	}, run, writer, driverOpts...)

	// Progress: per-attempt detail with --verbose, a spinner on a terminal,
	// plain per-file lines otherwise.
	var spin *spinner.Spinner
	switch {
	case runVerbose:
		driver.OnProgress(verboseProgressListener)
	case term.IsTerminal(int(os.Stdout.Fd())):
		spin = spinner.Start(os.Stdout, "Discovering input files...")
		driver.OnProgress(spinnerProgressListener(spin))
	default:
		driver.OnProgress(simpleProgressListener)
	}

	fmt.Printf("Classifying session logs: %s\n", s.InputPath)
	fmt.Printf("Provider: %s\n", s.Provider)
	fmt.Printf("Model: %s\n", s.Model)
	fmt.Printf("Ruleset: %s\n", rs.Name)
	if s.Workers > 1 {
		fmt.Printf("Parallel: %d workers\n", s.Workers)
	}
	if s.TestMode {
		fmt.Println("Test mode: processing the first 3 files only")
	}
	fmt.Println()

	summary, err := driver.Run(context.Background(), s.InputPath)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	printSummary(summary)
	fmt.Printf("Summary saved to: %s\n", filepath.Join(s.OutputPath, artifact.SummaryFileName))

	if runJUnitPath != "" {
		if err := artifact.WriteJUnitXML(summary, runJUnitPath); err != nil {
			return fmt.Errorf("writing JUnit report: %w", err)
		}
		fmt.Printf("JUnit report saved to: %s\n", runJUnitPath)
	}

	// Return file errors as an error so the caller can pick the exit code
	if summary.Errors > 0 {
		return &BatchFailureError{
			Message: fmt.Sprintf("batch completed with %d file error(s)", summary.Errors),
		}
	}

	return nil
}

// applyRunOverrides layers the run flags over the loaded settings.
func applyRunOverrides(s *settings.Settings) {
	if runInput != "" {
		s.InputPath = runInput
	}
	if runOutput != "" {
		s.OutputPath = runOutput
	}
	if runModel != "" {
		s.Model = runModel
	}
	if runProvider != "" {
		s.Provider = runProvider
	}
	if runBaseURL != "" {
		s.BaseURL = runBaseURL
	}
	if runMaxRetries >= 0 {
		s.MaxRetries = runMaxRetries
	}
	if runWorkers > 0 {
		s.Workers = runWorkers
	}
	if runTestMode {
		s.TestMode = true
	}
	if runCacheDir != "" {
		s.CacheDir = runCacheDir
	}
	if runNoAttempts {
		s.SaveAttempts = false
	}
	if runRulesetPath != "" {
		s.Ruleset = runRulesetPath
	}
}

// newCompleter builds the completion backend selected by the settings.
func newCompleter(s *settings.Settings) (completion.Completer, error) {
	switch s.Provider {
	case settings.ProviderOllama:
		return completion.NewOllamaCompleter(s.BaseURL), nil
	case settings.ProviderCopilot:
		return completion.NewCopilotCompleterBuilder(nil).Build(), nil
	case settings.ProviderMock:
		return completion.NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.Provider)
	}
}

func verboseProgressListener(event runner.ProgressEvent) {
	switch event.EventType {
	case runner.EventBatchStart:
		fmt.Printf("Starting batch with %d file(s)...\n\n", event.TotalFiles)
	case runner.EventFileStart:
		fmt.Printf("[%d/%d] Processing: %s\n", event.FileNum, event.TotalFiles, filepath.Base(event.SourcePath))
	case runner.EventFileCached:
		fmt.Printf("[%d/%d] %s: %s [cached]\n\n", event.FileNum, event.TotalFiles, filepath.Base(event.SourcePath), event.Decision)
	case runner.EventAttemptStart:
		fmt.Printf("  Attempt %d/%d...", event.Attempt, event.MaxAttempts)
	case runner.EventAttemptDone:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		if event.Failure == models.FailureNone {
			fmt.Printf(" valid: %s (%v)\n", event.Decision, duration)
		} else {
			fmt.Printf(" invalid: %s (%v)\n", event.Failure, duration)
		}
	case runner.EventRetryScheduled:
		fmt.Printf("  Retrying with corrective prompt (attempt %d/%d)\n", event.Attempt, event.MaxAttempts)
	case runner.EventFallbackUsed:
		fmt.Printf("  Fallback: recording Unknown after %d attempt(s)\n", event.Attempt)
	case runner.EventFileComplete:
		fmt.Printf("  File %s: %s\n\n", filepath.Base(event.SourcePath), event.Decision)
	case runner.EventBatchComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("Batch completed in %v\n\n", duration)
	}
}

func simpleProgressListener(event runner.ProgressEvent) {
	switch event.EventType {
	case runner.EventFileCached:
		fmt.Printf("✓ [%d/%d] %s: %s [cached]\n", event.FileNum, event.TotalFiles, filepath.Base(event.SourcePath), event.Decision)
	case runner.EventFileComplete:
		status := "✓"
		if event.Status != models.StatusSuccess {
			status = "✗"
		}
		fmt.Printf("%s [%d/%d] %s: %s\n", status, event.FileNum, event.TotalFiles, filepath.Base(event.SourcePath), event.Decision)
	}
}

// spinnerProgressListener keeps a single-line spinner updated with batch
// progress instead of scrolling per-file lines.
func spinnerProgressListener(spin *spinner.Spinner) runner.ProgressListener {
	return func(event runner.ProgressEvent) {
		switch event.EventType {
		case runner.EventFileStart:
			spin.SetMessage(fmt.Sprintf("[%d/%d] %s", event.FileNum, event.TotalFiles, filepath.Base(event.SourcePath)))
		case runner.EventFileComplete, runner.EventFileCached:
			if done, ok := event.Details["done"].(int); ok {
				spin.SetMessage(fmt.Sprintf("[%d/%d] done", done, event.TotalFiles))
			}
		}
	}
}

// truncate shortens s to maxLen characters, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func printSummary(summary *models.BatchSummary) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" BATCH RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	fmt.Printf("Model:           %s\n", summary.Model)
	fmt.Printf("Total Files:     %d\n", summary.TotalFiles)
	fmt.Printf("Succeeded:       %d\n", summary.Succeeded)
	fmt.Printf("Errors:          %d\n", summary.Errors)
	fmt.Printf("First Try:       %d\n", summary.FirstTry)
	fmt.Printf("After Retry:     %d\n", summary.AfterRetry)
	fmt.Printf("Fallbacks:       %d\n", summary.FallbackUsed)
	fmt.Printf("Conversions:     %d\n", summary.Conversions)
	fmt.Printf("Drop-Offs:       %d\n", summary.DropOffs)

	duration := time.Duration(summary.DurationMs) * time.Millisecond
	fmt.Printf("Duration:        %v\n", duration)
	fmt.Println()

	// Per-file breakdown
	nameWidth := len("File")
	for _, fr := range summary.Results {
		if w := runewidth.StringWidth(filepath.Base(fr.InputFile)); w > nameWidth {
			nameWidth = w
		}
	}
	if nameWidth > 40 {
		nameWidth = 40
	}

	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Println(" PER-FILE BREAKDOWN")
	fmt.Println("-" + strings.Repeat("-", 50))
	for _, fr := range summary.Results {
		icon := "✓"
		if fr.Status != models.StatusSuccess {
			icon = "✗"
		}
		name := truncate(filepath.Base(fr.InputFile), 40)
		if fr.Outcome != nil {
			note := ""
			if fr.Outcome.FallbackUsed {
				note = "  [fallback]"
			}
			fmt.Printf("  %s %s  %s  attempts=%d%s\n", icon, padRight(name, nameWidth), fr.Outcome.Decision, fr.Outcome.AttemptsUsed, note)
		} else {
			fmt.Printf("  %s %s  error\n", icon, padRight(name, nameWidth))
		}
	}
	fmt.Println()

	// Show file errors
	if summary.Errors > 0 {
		fmt.Println("File Errors:")
		for _, fr := range summary.Results {
			if fr.Status != models.StatusSuccess {
				fmt.Printf("  - %s: %s\n", filepath.Base(fr.InputFile), fr.Err)
			}
		}
		fmt.Println()
	}

	// Show fallbacks: these artifacts carry an Unknown decision and deserve
	// a human look.
	if summary.FallbackUsed > 0 {
		fmt.Println("⚠ Fallback Files (no valid response within the retry budget):")
		for _, fr := range summary.Results {
			if fr.Outcome != nil && fr.Outcome.FallbackUsed {
				fmt.Printf("  - %s  attempts=%d\n", filepath.Base(fr.InputFile), fr.Outcome.AttemptsUsed)
			}
		}
		fmt.Println()
	}
}
