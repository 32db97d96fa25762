// Package report analyzes validated artifacts after the fact: it re-extracts
// the decision tag from each artifact body, checks it against an expected
// label when the filename carries one, and aggregates per-model accuracy.
//
// Unlike the runner's validator, this package is deliberately tolerant. Old
// artifact trees contain markdown-bolded tags, reasoning blocks and outputs
// that never validated, and the report should still say something useful
// about them.
package report

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/funnelworks/verdict/internal/artifact"
	"github.com/funnelworks/verdict/internal/stats"
)

// FileAnalysis is the classification of one validated artifact.
type FileAnalysis struct {
	File     string `json:"file"`
	Path     string `json:"path"`
	Model    string `json:"model,omitempty"`
	Class    Class  `json:"class"`
	TagValue string `json:"tag_value,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Steps    int    `json:"steps"`

	// Expected is inferred from a CO_ or DO_ filename prefix and is empty
	// for unlabeled files. Correct is nil for unlabeled files.
	Expected Class `json:"expected,omitempty"`
	Correct  *bool `json:"correct,omitempty"`
}

// ModelStats aggregates accuracy over the labeled files of one model.
type ModelStats struct {
	Model    string                   `json:"model"`
	Files    int                      `json:"files"`
	Labeled  int                      `json:"labeled"`
	Correct  int                      `json:"correct"`
	Accuracy float64                  `json:"accuracy"`
	StdDev   float64                  `json:"std_dev"`
	CI       stats.ConfidenceInterval `json:"confidence_interval"`
}

// Report is the full analysis of an artifact tree.
type Report struct {
	Root   string         `json:"root"`
	Files  []FileAnalysis `json:"files"`
	Counts map[Class]int  `json:"counts"`
	Models []ModelStats   `json:"models"`
}

// Labeled reports how many files carried an expected label.
func (r *Report) Labeled() int {
	n := 0
	for i := range r.Files {
		if r.Files[i].Correct != nil {
			n++
		}
	}
	return n
}

// Walk finds every validated artifact under root, recursing into attempt
// folders and per-model subdirectories. Results are sorted by path.
func Walk(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), artifact.ValidatedSuffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning artifacts: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found under %s", artifact.ValidatedSuffix, root)
	}

	sort.Strings(files)
	return files, nil
}

// BuildReport scans root and classifies every artifact found. Unreadable
// files become ClassError entries rather than failing the whole report.
func BuildReport(root string) (*Report, error) {
	paths, err := Walk(root)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Root:   root,
		Files:  make([]FileAnalysis, 0, len(paths)),
		Counts: make(map[Class]int),
	}

	for _, path := range paths {
		fa := analyzeFile(path)
		r.Counts[fa.Class]++
		r.Files = append(r.Files, fa)
	}

	r.Models = buildModelStats(r.Files)
	return r, nil
}

func analyzeFile(path string) FileAnalysis {
	base := filepath.Base(path)

	fa := FileAnalysis{
		File: base,
		Path: path,
	}
	if expected, ok := expectedClass(base); ok {
		fa.Expected = expected
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		fa.Class = ClassError
		fa.TagValue = fmt.Sprintf("Error: %v", err)
		return fa
	}

	model, body := splitArtifact(string(raw))
	fa.Model = model

	ta := AnalyzeText(body)
	fa.Class = ta.Class
	fa.TagValue = ta.TagValue
	fa.Reason = ta.Reason
	fa.Steps = ta.Steps

	if fa.Expected != "" {
		correct := fa.Class == fa.Expected
		fa.Correct = &correct
	}
	return fa
}

// expectedClass infers the ground-truth label from the filename prefix:
// CO_ marks known conversions, DO_ known drop-offs.
func expectedClass(name string) (Class, bool) {
	switch {
	case strings.HasPrefix(name, "CO_"):
		return ClassConversion, true
	case strings.HasPrefix(name, "DO_"):
		return ClassDropOff, true
	}
	return "", false
}

// splitArtifact separates the artifact header from the body and pulls the
// model name out of the header. Files without the header (hand-made fixtures,
// foreign artifacts) come back whole with an empty model.
func splitArtifact(content string) (model, body string) {
	bar := strings.Repeat("=", 50)

	idx := strings.Index(content, bar)
	if idx < 0 || !strings.HasPrefix(content, "Original file:") {
		return "", content
	}

	for _, line := range strings.Split(content[:idx], "\n") {
		if rest, ok := strings.CutPrefix(line, "Model used:"); ok {
			model = strings.TrimSpace(rest)
		}
	}

	body = strings.TrimPrefix(content[idx+len(bar):], "\n\n")
	return model, body
}

func buildModelStats(files []FileAnalysis) []ModelStats {
	byModel := make(map[string]*ModelStats)

	for i := range files {
		fa := &files[i]
		ms := byModel[fa.Model]
		if ms == nil {
			ms = &ModelStats{Model: fa.Model}
			byModel[fa.Model] = ms
		}
		ms.Files++
		if fa.Correct == nil {
			continue
		}
		ms.Labeled++
		if *fa.Correct {
			ms.Correct++
		}
	}

	models := make([]ModelStats, 0, len(byModel))
	for _, ms := range byModel {
		if ms.Labeled > 0 {
			scores := make([]float64, 0, ms.Labeled)
			for range ms.Correct {
				scores = append(scores, 1)
			}
			for range ms.Labeled - ms.Correct {
				scores = append(scores, 0)
			}
			ms.Accuracy = stats.Mean(scores)
			ms.StdDev = stats.StdDev(scores)
			ms.CI = stats.BootstrapCI(scores, 0.95)
		}
		models = append(models, *ms)
	}

	sort.Slice(models, func(i, j int) bool { return models[i].Model < models[j].Model })
	return models
}
