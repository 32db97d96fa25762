package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// subjectExtensions are the file types treated as session logs during
// directory discovery. Compressed variants (.gz, .zst) of these also match.
var subjectExtensions = map[string]bool{
	".txt":  true,
	".json": true,
	".log":  true,
}

// Discover resolves the input path to the ordered list of files to process.
// A file path is returned as-is; a directory is scanned non-recursively for
// subject files, sorted by name so runs are deterministic.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input path: %w", err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading input dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if isSubjectFile(entry.Name()) {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}

	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no input files found in %s", path)
	}

	return files, nil
}

func isSubjectFile(name string) bool {
	ext := filepath.Ext(name)
	if low := strings.ToLower(ext); low == ".gz" || low == ".zst" {
		name = strings.TrimSuffix(name, ext)
		ext = filepath.Ext(name)
	}
	return subjectExtensions[strings.ToLower(ext)]
}
