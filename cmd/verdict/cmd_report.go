package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/report"
)

var (
	reportOutput string
	reportFormat string
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <results-dir>",
		Short: "Build an accuracy report over validated artifacts",
		Long: `Build an accuracy report over a tree of validated artifacts.

Walks the directory recursively, re-extracts the tag from every
*_validated.txt file with tolerant parsing, classifies it, and scores it
against the expectation encoded in the filename (CO_* expects Conversion,
DO_* expects Drop-Off). Per-model accuracy comes with a bootstrap 95%
confidence interval.

The report is written as an Excel workbook by default; --format csv writes
a detailed and a summary CSV instead.`,
		Args: cobra.ExactArgs(1),
		RunE: reportCommandE,
	}

	cmd.Flags().StringVarP(&reportOutput, "output", "o", "classification_report.xlsx", "Output report path")
	cmd.Flags().StringVar(&reportFormat, "format", "excel", "Output format: excel | csv")

	return cmd
}

func reportCommandE(cmd *cobra.Command, args []string) error {
	r, err := report.BuildReport(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Analyzed %d artifact(s), %d with a usable tag\n", len(r.Files), r.Labeled())
	for _, ms := range r.Models {
		name := ms.Model
		if name == "" {
			name = "unknown"
		}
		if ms.Labeled > 0 {
			fmt.Printf("  %s: accuracy %.2f%% (%d/%d labeled)\n", name, ms.Accuracy*100, ms.Correct, ms.Labeled)
		} else {
			fmt.Printf("  %s: no labeled files\n", name)
		}
	}
	fmt.Println()

	switch reportFormat {
	case "excel":
		if err := report.WriteExcel(r, reportOutput); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report saved to: %s\n", reportOutput)
	case "csv":
		detailPath, summaryPath, err := report.WriteCSV(r, reportOutput)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report saved to: %s, %s\n", detailPath, summaryPath)
	default:
		return fmt.Errorf("unknown output format: %s (supported: excel, csv)", reportFormat)
	}

	return nil
}
