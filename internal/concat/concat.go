// Package concat combines a folder of text logs into one review file, each
// entry introduced by a FILE header and an 80-column separator bar.
package concat

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultOutputName is used when no output filename is given. The combined
// file lands inside the input folder, next to the files it joins.
const DefaultOutputName = "concatenated_text.txt"

var separatorBar = strings.Repeat("=", 80)

// Result summarizes one folder concatenation. Errors counts files whose
// content could not be read; those get an error block in the output instead
// of stopping the run.
type Result struct {
	InputDir   string   `json:"input_dir"`
	OutputPath string   `json:"output_path,omitempty"`
	Files      []string `json:"files"`
	Errors     int      `json:"errors,omitempty"`
	Err        string   `json:"error,omitempty"`
}

// Dir concatenates every text file directly under inputDir into one file
// inside that folder. Files are joined in name order.
func Dir(inputDir, outputName string) (Result, error) {
	if outputName == "" {
		outputName = DefaultOutputName
	}
	res := Result{InputDir: inputDir}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return res, fmt.Errorf("input dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == outputName || !isTextFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return res, fmt.Errorf("no text files found in %s", inputDir)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n" + separatorBar + "\n")
		}

		content, err := os.ReadFile(filepath.Join(inputDir, name))
		if err != nil {
			fmt.Fprintf(&b, "FILE: %s (ERROR: %v)\n%s\nError reading file: %v\n", name, err, separatorBar, err)
			res.Errors++
			continue
		}

		fmt.Fprintf(&b, "FILE: %s\n%s\n", name, separatorBar)
		b.Write(content)
		if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
			b.WriteByte('\n')
		}
		res.Files = append(res.Files, name)
	}

	outputPath := filepath.Join(inputDir, outputName)
	if err := os.WriteFile(outputPath, []byte(b.String()), 0o644); err != nil {
		return res, fmt.Errorf("write combined file: %w", err)
	}

	res.OutputPath = outputPath
	return res, nil
}

// Subdirs runs Dir over every subfolder of parentDir, one combined file per
// subfolder. Folders that fail (usually: no text files) are recorded in
// their Result and do not stop the batch.
func Subdirs(parentDir, outputName string) ([]Result, error) {
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		return nil, fmt.Errorf("parent dir: %w", err)
	}

	var folders []string
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}
	if len(folders) == 0 {
		return nil, fmt.Errorf("no subfolders found in %s", parentDir)
	}
	sort.Strings(folders)

	results := make([]Result, 0, len(folders))
	for _, folder := range folders {
		res, err := Dir(filepath.Join(parentDir, folder), outputName)
		if err != nil {
			res.Err = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

func isTextFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".log":
		return true
	}
	return false
}
