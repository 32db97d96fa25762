// Package batch drives classification over a set of session log files:
// discovery, per-file execution through the runner, artifact writing, and
// the aggregate summary.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/funnelworks/verdict/internal/artifact"
	"github.com/funnelworks/verdict/internal/cache"
	"github.com/funnelworks/verdict/internal/heuristic"
	"github.com/funnelworks/verdict/internal/models"
	"github.com/funnelworks/verdict/internal/runner"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// testModeFileLimit caps a test-mode batch to a quick sample.
const testModeFileLimit = 3

// Config carries batch-level execution policy. Runner holds the per-file
// sampling and retry parameters.
type Config struct {
	Runner   runner.Config
	TestMode bool

	// Workers > 1 processes files concurrently. The runner is stateless, so
	// workers share one instance.
	Workers int

	// FileDelay is slept between files in sequential mode only.
	FileDelay time.Duration
}

// Driver executes a batch. It is the single progress hub: attempt-level
// events from the runner are forwarded to the driver's listeners alongside
// the file and batch events the driver emits itself.
type Driver struct {
	cfg    Config
	runner *runner.Runner
	writer *artifact.Writer

	cache       *cache.Cache
	rulesetName string

	// sleep is replaceable in tests so file delays don't slow them down.
	sleep func(ctx context.Context, d time.Duration)

	progressMu sync.Mutex
	listeners  []runner.ProgressListener
}

// Option configures a Driver.
type Option func(*Driver)

// WithCache enables outcome caching.
func WithCache(c *cache.Cache) Option {
	return func(d *Driver) {
		d.cache = c
	}
}

// WithRulesetName tags cache keys with the active ruleset, so outcomes
// produced under one ruleset are never served under another.
func WithRulesetName(name string) Option {
	return func(d *Driver) {
		d.rulesetName = name
	}
}

// NewDriver creates a batch driver around a runner and an artifact writer.
func NewDriver(cfg Config, run *runner.Runner, writer *artifact.Writer, opts ...Option) *Driver {
	d := &Driver{
		cfg:       cfg,
		runner:    run,
		writer:    writer,
		sleep:     sleepCtx,
		listeners: []runner.ProgressListener{},
	}
	for _, o := range opts {
		o(d)
	}

	run.OnProgress(d.notifyProgress)

	return d
}

// OnProgress registers a progress listener
func (d *Driver) OnProgress(listener runner.ProgressListener) {
	d.progressMu.Lock()
	defer d.progressMu.Unlock()
	d.listeners = append(d.listeners, listener)
}

func (d *Driver) notifyProgress(event runner.ProgressEvent) {
	d.progressMu.Lock()
	listeners := make([]runner.ProgressListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run discovers input files and processes each one. Per-file failures are
// recorded in the summary, never propagated; the returned error covers only
// discovery and summary persistence.
func (d *Driver) Run(ctx context.Context, inputPath string) (*models.BatchSummary, error) {
	files, err := Discover(inputPath)
	if err != nil {
		return nil, err
	}

	if d.cfg.TestMode && len(files) > testModeFileLimit {
		slog.Info("Test mode enabled, sampling batch",
			"limit", testModeFileLimit,
			"discovered", len(files))
		files = files[:testModeFileLimit]
	}

	summary := &models.BatchSummary{
		RunID:     uuid.NewString(),
		Model:     d.cfg.Runner.Model,
		StartedAt: time.Now(),
	}

	d.notifyProgress(runner.ProgressEvent{
		EventType:  runner.EventBatchStart,
		TotalFiles: len(files),
	})

	var results []models.FileResult
	if d.cfg.Workers > 1 {
		results = d.runConcurrent(ctx, files, summary.StartedAt)
	} else {
		results = d.runSequential(ctx, files, summary.StartedAt)
	}

	for _, fr := range results {
		summary.Record(fr)
	}
	summary.DurationMs = time.Since(summary.StartedAt).Milliseconds()

	if _, err := d.writer.WriteSummary(summary); err != nil {
		return summary, fmt.Errorf("writing summary: %w", err)
	}

	d.notifyProgress(runner.ProgressEvent{
		EventType:  runner.EventBatchComplete,
		TotalFiles: len(results),
		DurationMs: summary.DurationMs,
	})

	return summary, nil
}

func (d *Driver) runSequential(ctx context.Context, files []string, start time.Time) []models.FileResult {
	results := make([]models.FileResult, 0, len(files))

	for i, path := range files {
		if ctx.Err() != nil {
			// Canceled batches keep what they have; the summary records
			// only the files that ran.
			break
		}

		d.notifyProgress(runner.ProgressEvent{
			EventType:  runner.EventFileStart,
			SourcePath: path,
			FileNum:    i + 1,
			TotalFiles: len(files),
		})

		fr, cached := d.processOne(ctx, path)
		results = append(results, fr)

		d.emitFileDone(&fr, cached, i+1, len(files), len(results), start)

		if d.cfg.FileDelay > 0 && i < len(files)-1 {
			d.sleep(ctx, d.cfg.FileDelay)
		}
	}

	return results
}

func (d *Driver) runConcurrent(ctx context.Context, files []string, start time.Time) []models.FileResult {
	results := make([]models.FileResult, len(files))

	var (
		doneMu sync.Mutex
		done   int
	)

	eg := errgroup.Group{}
	eg.SetLimit(d.cfg.Workers)

	for i, path := range files {
		eg.Go(func() error {
			d.notifyProgress(runner.ProgressEvent{
				EventType:  runner.EventFileStart,
				SourcePath: path,
				FileNum:    i + 1,
				TotalFiles: len(files),
			})

			fr, cached := d.processOne(ctx, path)
			results[i] = fr

			doneMu.Lock()
			done++
			doneCount := done
			doneMu.Unlock()

			d.emitFileDone(&fr, cached, i+1, len(files), doneCount, start)

			return nil
		})
	}

	// Workers never fail; per-file problems live in their FileResult.
	_ = eg.Wait()

	return results
}

// processOne handles a single file end to end. Driver-side failures (read,
// artifact writes) mark the result as an error; the runner itself never
// fails.
func (d *Driver) processOne(ctx context.Context, path string) (models.FileResult, bool) {
	fr := models.FileResult{InputFile: path, Status: models.StatusSuccess}

	subject, err := ReadSubject(path)
	if err != nil {
		fr.Status = models.StatusError
		fr.Err = err.Error()
		return fr, false
	}

	outcome, cached := d.obtainOutcome(ctx, path, subject)
	fr.Outcome = outcome

	var advice *heuristic.Advice
	if outcome.FallbackUsed {
		advice = heuristic.Advise(subject)
	}

	// Cached outcomes carry no prompt or response text, so attempt
	// transcripts exist only for fresh runs.
	if !cached {
		if _, err := d.writer.WriteAttempts(path, outcome); err != nil {
			fr.Status = models.StatusError
			fr.Err = err.Error()
			return fr, cached
		}
	}

	outPath, err := d.writer.WriteOutcome(path, outcome, advice)
	if err != nil {
		fr.Status = models.StatusError
		fr.Err = err.Error()
		return fr, cached
	}
	fr.OutputFile = outPath

	return fr, cached
}

func (d *Driver) obtainOutcome(ctx context.Context, path, subject string) (*models.Outcome, bool) {
	if d.cache == nil {
		return d.runner.Run(ctx, &models.Request{SubjectText: subject, SourcePath: path}), false
	}

	key := cache.Key(cache.KeyParams{
		Model:       d.cfg.Runner.Model,
		Temperature: d.cfg.Runner.Temperature,
		TopP:        d.cfg.Runner.TopP,
		MaxTokens:   d.cfg.Runner.MaxTokens,
		MaxRetries:  d.cfg.Runner.MaxRetries,
		RulesetName: d.rulesetName,
		Subject:     subject,
	})

	if hit, ok := d.cache.Get(key); ok {
		// The key is subject-based, so the stored path may differ.
		hit.SourcePath = path
		return hit, true
	}

	outcome := d.runner.Run(ctx, &models.Request{SubjectText: subject, SourcePath: path})

	// A canceled run yields an empty fallback; don't let it shadow a later
	// real one.
	if ctx.Err() == nil {
		if err := d.cache.Put(key, outcome); err != nil {
			slog.Warn("Failed to write cache entry", "source", path, "error", err)
		}
	}

	return outcome, false
}

func (d *Driver) emitFileDone(fr *models.FileResult, cached bool, fileNum, totalFiles, doneCount int, batchStart time.Time) {
	elapsed := time.Since(batchStart)

	var etaMs int64
	if remaining := totalFiles - doneCount; remaining > 0 && doneCount > 0 {
		etaMs = (elapsed / time.Duration(doneCount) * time.Duration(remaining)).Milliseconds()
	}

	ev := runner.ProgressEvent{
		EventType:  runner.EventFileComplete,
		SourcePath: fr.InputFile,
		FileNum:    fileNum,
		TotalFiles: totalFiles,
		Status:     fr.Status,
		Details: map[string]any{
			"done":   doneCount,
			"eta_ms": etaMs,
		},
	}
	if cached {
		ev.EventType = runner.EventFileCached
	}
	if fr.Outcome != nil {
		ev.Decision = fr.Outcome.Decision
		ev.DurationMs = fr.Outcome.ElapsedMs
	}

	d.notifyProgress(ev)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
