package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/funnelworks/verdict/internal/completion"
	"github.com/funnelworks/verdict/internal/models"
	"github.com/funnelworks/verdict/internal/prompt"
	"github.com/funnelworks/verdict/internal/validate"
)

// Config carries the sampling parameters and retry policy for a run.
type Config struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int

	// MaxRetries is the number of corrective re-asks after the first attempt,
	// so a run makes at most MaxRetries+1 completion calls.
	MaxRetries int

	// RetryDelay is slept between attempts. Zero means no delay.
	RetryDelay time.Duration

	// Timeout bounds each individual completion call, not the whole run.
	Timeout time.Duration
}

// DefaultConfig returns the stock configuration used when nothing is
// overridden by a settings file or flags.
func DefaultConfig() Config {
	return Config{
		Model:       "llama3.3:70b",
		Temperature: 0.1,
		TopP:        0.2,
		MaxTokens:   400,
		MaxRetries:  2,
		RetryDelay:  500 * time.Millisecond,
		Timeout:     300 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	return nil
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants. Batch-level events are emitted by the batch driver,
// attempt-level events by the runner itself.
const (
	EventBatchStart     EventType = "batch_start"
	EventBatchComplete  EventType = "batch_complete"
	EventFileStart      EventType = "file_start"
	EventFileComplete   EventType = "file_complete"
	EventFileCached     EventType = "file_cached"
	EventAttemptStart   EventType = "attempt_start"
	EventAttemptDone    EventType = "attempt_done"
	EventRetryScheduled EventType = "retry_scheduled"
	EventFallbackUsed   EventType = "fallback_used"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	SourcePath  string
	FileNum     int
	TotalFiles  int
	Attempt     int
	MaxAttempts int
	Status      string
	Decision    models.Decision
	Failure     models.FailureKind
	DurationMs  int64
	Details     map[string]any
}

// Runner drives the submit-validate-retry loop for one subject at a time.
// It is safe for concurrent use by multiple goroutines.
type Runner struct {
	completer completion.Completer
	validator validate.Validator
	prompts   *prompt.Builder
	cfg       Config

	// sleep is replaceable in tests so retry delays don't slow them down.
	sleep func(ctx context.Context, d time.Duration)

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures a Runner.
type Option func(*Runner)

// WithPromptBuilder swaps the prompt builder, keeping the prompts in step
// with a custom decision vocabulary.
func WithPromptBuilder(b *prompt.Builder) Option {
	return func(r *Runner) {
		r.prompts = b
	}
}

// New creates a runner. The validator decides what a well-formed response
// looks like; the prompt builder must use a matching decision vocabulary.
func New(cfg Config, completer completion.Completer, validator validate.Validator, opts ...Option) *Runner {
	r := &Runner{
		completer: completer,
		validator: validator,
		prompts:   prompt.Default(),
		cfg:       cfg,
		sleep:     sleepCtx,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run submits the subject, validates the response shape and re-asks with a
// corrective prompt until a response validates or retries are exhausted.
//
// It never returns an error: a run that exhausts its attempts (or whose
// context is canceled) yields a fallback Outcome with Decision Unknown,
// FallbackUsed set, and FinalText holding the last raw response seen.
func (r *Runner) Run(ctx context.Context, req *models.Request) *models.Outcome {
	start := time.Now()
	maxAttempts := r.cfg.MaxRetries + 1

	outcome := &models.Outcome{
		SourcePath: req.SourcePath,
		Decision:   models.DecisionUnknown,
	}

	currentPrompt := r.prompts.BuildInitial(req.SubjectText)

	var lastText string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			// Parent canceled; stop burning attempts and fall back with
			// whatever was collected so far.
			break
		}

		r.notifyProgress(ProgressEvent{
			EventType:   EventAttemptStart,
			SourcePath:  req.SourcePath,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
		})

		record := r.runAttempt(ctx, attempt, currentPrompt)

		outcome.Attempts = append(outcome.Attempts, record)
		outcome.AttemptsUsed = attempt

		r.notifyProgress(ProgressEvent{
			EventType:   EventAttemptDone,
			SourcePath:  req.SourcePath,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Decision:    record.Decision,
			Failure:     record.Failure,
			DurationMs:  record.ElapsedMs,
		})

		if record.Valid {
			outcome.Decision = record.Decision
			outcome.FinalText = record.Response
			outcome.ElapsedMs = time.Since(start).Milliseconds()
			return outcome
		}

		if record.Response != "" {
			lastText = record.Response
		}

		if attempt == maxAttempts {
			break
		}

		// A failed call leaves nothing to correct, so the next attempt
		// re-sends the initial prompt. Invalid responses get the corrective
		// prompt embedding what came back.
		if record.Failure == models.FailureCallError {
			currentPrompt = r.prompts.BuildInitial(req.SubjectText)
		} else {
			currentPrompt = r.prompts.BuildRetry(record.Failure, req.SubjectText, record.Response)
		}

		r.notifyProgress(ProgressEvent{
			EventType:   EventRetryScheduled,
			SourcePath:  req.SourcePath,
			Attempt:     attempt + 1,
			MaxAttempts: maxAttempts,
			Failure:     record.Failure,
		})

		if r.cfg.RetryDelay > 0 {
			r.sleep(ctx, r.cfg.RetryDelay)
		}
	}

	outcome.FallbackUsed = true
	outcome.Decision = models.DecisionUnknown
	outcome.FinalText = lastText
	outcome.ElapsedMs = time.Since(start).Milliseconds()

	slog.Debug("Falling back after exhausting attempts",
		"source", req.SourcePath,
		"attemptsUsed", outcome.AttemptsUsed)

	r.notifyProgress(ProgressEvent{
		EventType:   EventFallbackUsed,
		SourcePath:  req.SourcePath,
		Attempt:     outcome.AttemptsUsed,
		MaxAttempts: maxAttempts,
		DurationMs:  outcome.ElapsedMs,
	})

	return outcome
}

func (r *Runner) runAttempt(ctx context.Context, number int, promptText string) models.AttemptRecord {
	record := models.AttemptRecord{
		Number:   number,
		Prompt:   promptText,
		Decision: models.DecisionUnknown,
	}

	callCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()

	resp, err := r.completer.Complete(callCtx, &completion.Request{
		Prompt:      promptText,
		Model:       r.cfg.Model,
		Temperature: r.cfg.Temperature,
		TopP:        r.cfg.TopP,
		MaxTokens:   r.cfg.MaxTokens,
	})

	record.ElapsedMs = time.Since(start).Milliseconds()

	if err != nil {
		record.Err = err.Error()
		record.Failure = models.FailureCallError

		slog.Debug("Completion attempt failed", "attempt", number, "error", err)

		return record
	}

	record.Response = resp.Text

	result := r.validator.Validate(resp.Text)

	record.Valid = result.Valid
	record.Decision = result.Decision
	record.Failure = result.Failure
	record.Reasons = result.Reasons

	return record
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
