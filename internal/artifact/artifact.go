// Package artifact writes everything a batch run leaves on disk: per-file
// validated outputs, per-attempt transcripts, the run summary JSON and an
// optional JUnit report for CI.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/funnelworks/verdict/internal/heuristic"
	"github.com/funnelworks/verdict/internal/models"
)

const (
	// SummaryFileName is the aggregate JSON written at the end of a batch.
	SummaryFileName = "validation_summary.json"

	// ValidatedSuffix ends every per-file validated artifact. The report
	// command discovers artifacts by this suffix.
	ValidatedSuffix = "_validated.txt"

	headerBar  = "=================================================="
	trailerBar = "--------------------------------------------------"
)

// Writer writes run artifacts under one output directory.
type Writer struct {
	dir          string
	model        string
	saveAttempts bool

	// now is replaceable in tests for stable headers.
	now func() time.Time
}

func NewWriter(dir, model string, saveAttempts bool) *Writer {
	return &Writer{
		dir:          dir,
		model:        model,
		saveAttempts: saveAttempts,
		now:          time.Now,
	}
}

// Stem is the input filename without directory, compression suffix or
// extension. "logs/session_001.log.gz" becomes "session_001".
func Stem(inputPath string) string {
	base := filepath.Base(inputPath)

	switch ext := filepath.Ext(base); ext {
	case ".gz", ".zst":
		base = strings.TrimSuffix(base, ext)
	}

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns where the validated artifact for an input file goes.
func (w *Writer) OutputPath(inputPath string) string {
	return filepath.Join(w.dir, Stem(inputPath)+ValidatedSuffix)
}

// WriteOutcome writes the validated artifact for one input. On fallback
// outcomes a non-nil advice is appended as an advisory trailer, clearly
// separated from the (possibly empty) raw model text above it.
func (w *Writer) WriteOutcome(inputPath string, outcome *models.Outcome, advice *heuristic.Advice) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Original file: %s\n", inputPath)
	fmt.Fprintf(&b, "Processed on: %s\n", w.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Model used: %s\n", w.model)
	b.WriteString(headerBar + "\n\n")
	b.WriteString(outcome.FinalText)

	if outcome.FallbackUsed && advice != nil {
		b.WriteString("\n\n" + trailerBar + "\n")
		fmt.Fprintf(&b, "Advisory (heuristic, not model output): %s\n", advice.Decision)
		fmt.Fprintf(&b, "Reason: %s\n", advice.Reason)
	}

	path := w.OutputPath(inputPath)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write validated artifact: %w", err)
	}

	return path, nil
}

// AttemptsDir returns the per-file attempts folder name. Colons in model
// names (llama3.3:70b) are unsafe in paths and get replaced.
func (w *Writer) AttemptsDir(inputPath string) string {
	model := strings.NewReplacer(":", "-", "/", "-").Replace(w.model)
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s_attempts", Stem(inputPath), model))
}

// WriteAttempts writes one file per attempt plus a final marker file. It is
// a no-op when attempt saving is disabled.
func (w *Writer) WriteAttempts(inputPath string, outcome *models.Outcome) (string, error) {
	if !w.saveAttempts {
		return "", nil
	}

	dir := w.AttemptsDir(inputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create attempts dir: %w", err)
	}

	for _, attempt := range outcome.Attempts {
		name := fmt.Sprintf("attempt_%d_retry.txt", attempt.Number)
		if attempt.Number == 1 {
			name = "attempt_1_initial.txt"
		}

		if err := os.WriteFile(filepath.Join(dir, name), []byte(formatAttempt(attempt)), 0o644); err != nil {
			return "", fmt.Errorf("write attempt %d: %w", attempt.Number, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, finalFileName(outcome)), []byte(formatFinal(outcome)), 0o644); err != nil {
		return "", fmt.Errorf("write final marker: %w", err)
	}

	return dir, nil
}

func formatAttempt(attempt models.AttemptRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "PROMPT:\n%s\n\n", attempt.Prompt)

	if attempt.Failure == models.FailureCallError {
		fmt.Fprintf(&b, "ERROR:\n%s\n", attempt.Err)
		return b.String()
	}

	fmt.Fprintf(&b, "RESPONSE:\n%s\n\n", attempt.Response)
	b.WriteString("VALIDATION:\n")
	fmt.Fprintf(&b, "  Valid format: %t\n", attempt.Valid)
	fmt.Fprintf(&b, "  Has decision: %t\n", attempt.Failure != models.FailureNoDecision)
	fmt.Fprintf(&b, "  Decision: %s\n", attempt.Decision)

	if len(attempt.Reasons) > 0 {
		fmt.Fprintf(&b, "  Reasons: %s\n", strings.Join(attempt.Reasons, "; "))
	}

	return b.String()
}

func finalFileName(outcome *models.Outcome) string {
	if outcome.FallbackUsed {
		return "final_fallback.txt"
	}
	return "final_success.txt"
}

func formatFinal(outcome *models.Outcome) string {
	retries := outcome.AttemptsUsed - 1
	if retries < 0 {
		retries = 0
	}

	var b strings.Builder

	if outcome.FallbackUsed {
		b.WriteString("FALLBACK RESULT:\n")
		fmt.Fprintf(&b, "Retries used: %d\n", retries)
		b.WriteString("Valid: false\n\n")
		fmt.Fprintf(&b, "FALLBACK RESPONSE:\n%s\n", outcome.FinalText)
	} else {
		b.WriteString("FINAL SUCCESSFUL RESULT:\n")
		fmt.Fprintf(&b, "Retries used: %d\n", retries)
		b.WriteString("Valid: true\n\n")
		fmt.Fprintf(&b, "RESPONSE:\n%s\n", outcome.FinalText)
	}

	return b.String()
}

// WriteSummary writes the aggregate run summary JSON.
func (w *Writer) WriteSummary(summary *models.BatchSummary) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}

	path := filepath.Join(w.dir, SummaryFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	return path, nil
}
