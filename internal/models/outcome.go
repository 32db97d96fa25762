package models

import (
	"time"
)

// Decision is the closed classification vocabulary. Matching is exact and
// case-sensitive everywhere the runner and validator touch it.
type Decision string

const (
	DecisionConversion Decision = "Conversion"
	DecisionDropOff    Decision = "Drop-Off"
	DecisionUnknown    Decision = "Unknown"
)

func (d Decision) String() string {
	return string(d)
}

// FailureKind describes why a response failed validation. It selects the
// corrective suffix used on the next attempt.
type FailureKind string

const (
	// FailureNone means the response passed validation.
	FailureNone FailureKind = "none"

	// FailureNoDecision means no closed-vocabulary decision word was found.
	FailureNoDecision FailureKind = "no_decision"

	// FailureBadFormat means a decision word was present but the structural
	// shape (tag line + enumerated steps) did not hold.
	FailureBadFormat FailureKind = "bad_format"

	// FailureCallError means the completion call itself failed; there is no
	// response text to correct.
	FailureCallError FailureKind = "call_error"
)

// ValidationResult is the outcome of checking one response against the
// required output shape. It is a pure function of the input text.
type ValidationResult struct {
	Valid    bool        `json:"valid"`
	Decision Decision    `json:"decision"`
	Failure  FailureKind `json:"failure,omitempty"`
	RawText  string      `json:"-"`
	Reasons  []string    `json:"reasons,omitempty"`
}

// Request is one unit of work for the runner: the subject text submitted for
// classification. Immutable once constructed.
type Request struct {
	SubjectText string
	SourcePath  string
}

// AttemptRecord captures a single attempt for transcripts and logging.
type AttemptRecord struct {
	Number    int         `json:"number"`
	Prompt    string      `json:"-"`
	Response  string      `json:"-"`
	Valid     bool        `json:"valid"`
	Decision  Decision    `json:"decision,omitempty"`
	Failure   FailureKind `json:"failure,omitempty"`
	Reasons   []string    `json:"reasons,omitempty"`
	Err       string      `json:"error,omitempty"`
	ElapsedMs int64       `json:"elapsed_ms"`
}

// Outcome is the final artifact produced for one input file. Exactly one
// Outcome exists per Request; the runner never fails past its boundary.
//
// AttemptsUsed never exceeds the configured retry bound plus one. When
// FallbackUsed is true, Decision is DecisionUnknown and FinalText holds the
// last raw response observed (empty if every attempt erred before producing
// text).
type Outcome struct {
	SourcePath   string          `json:"source_path"`
	FinalText    string          `json:"final_text"`
	Decision     Decision        `json:"decision"`
	AttemptsUsed int             `json:"attempts_used"`
	FallbackUsed bool            `json:"fallback_used"`
	Attempts     []AttemptRecord `json:"attempts,omitempty"`
	ElapsedMs    int64           `json:"elapsed_ms"`
}

// SucceededFirstTry reports whether a valid response arrived on attempt one.
func (o *Outcome) SucceededFirstTry() bool {
	return !o.FallbackUsed && o.AttemptsUsed == 1
}

// SucceededAfterRetry reports whether a valid response arrived on a retry.
func (o *Outcome) SucceededAfterRetry() bool {
	return !o.FallbackUsed && o.AttemptsUsed > 1
}

// File processing status values used in batch results.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// FileResult records the handling of one input file by the batch driver.
// Driver-side failures (unreadable file, unwritable artifact) are recorded
// here; they never originate from the runner.
type FileResult struct {
	InputFile  string   `json:"input_file"`
	OutputFile string   `json:"output_file,omitempty"`
	Status     string   `json:"status"`
	Outcome    *Outcome `json:"outcome,omitempty"`
	Err        string   `json:"error,omitempty"`
}

// BatchSummary aggregates a whole run. FirstTry + AfterRetry + FallbackUsed
// always equals Succeeded.
type BatchSummary struct {
	RunID        string       `json:"run_id"`
	Model        string       `json:"model"`
	StartedAt    time.Time    `json:"started_at"`
	DurationMs   int64        `json:"duration_ms"`
	TotalFiles   int          `json:"total_files"`
	Succeeded    int          `json:"succeeded"`
	Errors       int          `json:"errors"`
	FirstTry     int          `json:"succeeded_first_try"`
	AfterRetry   int          `json:"succeeded_after_retry"`
	FallbackUsed int          `json:"fallback_used"`
	Conversions  int          `json:"conversions"`
	DropOffs     int          `json:"drop_offs"`
	Results      []FileResult `json:"results"`
}

// Record folds one file result into the summary counters.
func (s *BatchSummary) Record(fr FileResult) {
	s.Results = append(s.Results, fr)
	s.TotalFiles++

	if fr.Status != StatusSuccess || fr.Outcome == nil {
		s.Errors++
		return
	}

	s.Succeeded++
	o := fr.Outcome
	switch {
	case o.SucceededFirstTry():
		s.FirstTry++
	case o.SucceededAfterRetry():
		s.AfterRetry++
	case o.FallbackUsed:
		s.FallbackUsed++
	}

	switch o.Decision {
	case DecisionConversion:
		s.Conversions++
	case DecisionDropOff:
		s.DropOffs++
	}
}
