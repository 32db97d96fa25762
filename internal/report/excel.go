package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	detailedSheet = "Detailed_Results"
	summarySheet  = "Summary_Statistics"
)

var detailHeaders = []string{
	"Filename",
	"Model",
	"Classification",
	"Tag_Value",
	"Reason",
	"Steps",
	"Expected",
	"Correct",
}

func detailRow(fa *FileAnalysis) []any {
	correct := ""
	if fa.Correct != nil {
		correct = "no"
		if *fa.Correct {
			correct = "yes"
		}
	}
	return []any{
		fa.File,
		fa.Model,
		string(fa.Class),
		fa.TagValue,
		fa.Reason,
		fa.Steps,
		string(fa.Expected),
		correct,
	}
}

// summaryRows builds the Metric/Count pairs for the summary sheet: absolute
// counts, percentage rates, then per-model accuracy with a bootstrap CI.
func summaryRows(r *Report) [][2]any {
	total := len(r.Files)

	rows := [][2]any{
		{"Total Files", total},
		{"Conversions", r.Counts[ClassConversion]},
		{"Drop-Offs", r.Counts[ClassDropOff]},
		{"Mixed (Both)", r.Counts[ClassMixed]},
		{"Unknown Tags", r.Counts[ClassUnknown]},
		{"No Tags", r.Counts[ClassNone]},
		{"Errors", r.Counts[ClassError]},
	}

	if total > 0 {
		rate := func(n int) string {
			return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
		}
		rows = append(rows,
			[2]any{"Conversion Rate (%)", rate(r.Counts[ClassConversion])},
			[2]any{"Drop-Off Rate (%)", rate(r.Counts[ClassDropOff])},
			[2]any{"Mixed Rate (%)", rate(r.Counts[ClassMixed])},
			[2]any{"Unknown Rate (%)", rate(r.Counts[ClassUnknown])},
			[2]any{"No Tag Rate (%)", rate(r.Counts[ClassNone])},
			[2]any{"Error Rate (%)", rate(r.Counts[ClassError])},
		)
	}

	for _, ms := range r.Models {
		if ms.Labeled == 0 {
			continue
		}
		name := ms.Model
		if name == "" {
			name = "unknown"
		}
		rows = append(rows,
			[2]any{fmt.Sprintf("%s Labeled Files", name), ms.Labeled},
			[2]any{fmt.Sprintf("%s Accuracy (%%)", name), fmt.Sprintf("%.2f%%", ms.Accuracy*100)},
			[2]any{fmt.Sprintf("%s Accuracy Std Dev", name), fmt.Sprintf("%.4f", ms.StdDev)},
			[2]any{fmt.Sprintf("%s Accuracy 95%% CI", name), fmt.Sprintf("[%.2f%%, %.2f%%]", ms.CI.Lower*100, ms.CI.Upper*100)},
		)
	}

	return rows
}

// WriteExcel writes the two-sheet workbook: one row per artifact in
// Detailed_Results, counts and rates in Summary_Statistics.
func WriteExcel(r *Report, path string) error {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", detailedSheet); err != nil {
		return fmt.Errorf("rename detail sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	for i, h := range detailHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(detailedSheet, cell, h)
	}

	row := 2
	for i := range r.Files {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(detailedSheet, cell, v)
		}
		for col, v := range detailRow(&r.Files[i]) {
			write(col+1, v)
		}
		row++
	}

	_ = f.SetColWidth(detailedSheet, "A", "A", 34) // filename
	_ = f.SetColWidth(detailedSheet, "B", "B", 20) // model
	_ = f.SetColWidth(detailedSheet, "C", "C", 14) // classification
	_ = f.SetColWidth(detailedSheet, "D", "E", 30) // tag value, reason

	for i, h := range []string{"Metric", "Count"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(summarySheet, cell, h)
	}
	for i, pair := range summaryRows(r) {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, i+2)
			_ = f.SetCellValue(summarySheet, cell, v)
		}
		write(1, pair[0])
		write(2, pair[1])
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 38) // metric
	_ = f.SetColWidth(summarySheet, "B", "B", 20) // count

	if index, err := f.GetSheetIndex(detailedSheet); err == nil {
		f.SetActiveSheet(index)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// WriteCSV is the plain-text fallback: the same content as the workbook,
// split into a detail file and a summary file next to basePath.
func WriteCSV(r *Report, basePath string) (detailPath, summaryPath string, err error) {
	stem := strings.TrimSuffix(basePath, filepath.Ext(basePath))
	detailPath = stem + "_detailed.csv"
	summaryPath = stem + "_summary.csv"

	detail := [][]string{detailHeaders}
	for i := range r.Files {
		detail = append(detail, stringRow(detailRow(&r.Files[i])))
	}
	if err := writeCSVFile(detailPath, detail); err != nil {
		return "", "", err
	}

	summary := [][]string{{"Metric", "Count"}}
	for _, pair := range summaryRows(r) {
		summary = append(summary, stringRow(pair[:]))
	}
	if err := writeCSVFile(summaryPath, summary); err != nil {
		return "", "", err
	}

	return detailPath, summaryPath, nil
}

func stringRow(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func writeCSVFile(path string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
