package cleanup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// FileResult describes one cleaned file. Err is set and the sizes are zero
// when the file could not be processed.
type FileResult struct {
	InputFile    string `json:"input_file"`
	OutputFile   string `json:"output_file,omitempty"`
	OriginalSize int    `json:"original_size"`
	CleanedSize  int    `json:"cleaned_size"`
	Err          string `json:"error,omitempty"`
}

// ReductionPercent is how much smaller the cleaned file is, in percent.
func (fr FileResult) ReductionPercent() float64 {
	if fr.OriginalSize == 0 {
		return 0
	}
	return float64(fr.OriginalSize-fr.CleanedSize) / float64(fr.OriginalSize) * 100
}

// CleanFile cleans a single log file into outputPath. Gzipped inputs are
// decompressed first; the output is always plain text.
func CleanFile(inputPath, outputPath string, level Level) (FileResult, error) {
	content, err := readLog(inputPath)
	if err != nil {
		return FileResult{InputFile: inputPath}, err
	}

	cleaned := Clean(content, level)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return FileResult{InputFile: inputPath}, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(cleaned), 0o644); err != nil {
		return FileResult{InputFile: inputPath}, fmt.Errorf("write cleaned log: %w", err)
	}

	return FileResult{
		InputFile:    inputPath,
		OutputFile:   outputPath,
		OriginalSize: len(content),
		CleanedSize:  len(cleaned),
	}, nil
}

// CleanDir cleans every log file directly under inputDir into outputDir.
// Per-file failures are recorded in their FileResult rather than stopping
// the rest of the directory.
func CleanDir(inputDir, outputDir string, level Level) ([]FileResult, error) {
	dirEntries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("input dir: %w", err)
	}

	var names []string
	for _, entry := range dirEntries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no log files found in %s", inputDir)
	}
	sort.Strings(names)

	results := make([]FileResult, 0, len(names))
	for _, name := range names {
		in := filepath.Join(inputDir, name)
		out := filepath.Join(outputDir, OutputName(name))

		fr, err := CleanFile(in, out, level)
		if err != nil {
			fr.Err = err.Error()
		}
		results = append(results, fr)
	}
	return results, nil
}

func isLogFile(name string) bool {
	if ext := filepath.Ext(name); strings.EqualFold(ext, ".gz") {
		name = strings.TrimSuffix(name, ext)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".log", ".txt":
		return true
	}
	return false
}

// OutputName maps app.log to app_cleaned.log and app.log.gz to
// app_cleaned.log.
func OutputName(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".gz") {
		base = strings.TrimSuffix(base, ext)
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_cleaned" + ext
}

func readLog(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.EqualFold(filepath.Ext(path), ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return "", fmt.Errorf("open gzip input: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(raw), nil
}
