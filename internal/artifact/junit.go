package artifact

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/funnelworks/verdict/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one batch run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one input file.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure marks a file whose run exhausted retries and fell back.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError marks a file the driver could not process at all.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a batch summary to JUnit XML format. Fallback
// outcomes become failures and driver errors become errors, so a CI gate on
// the report catches both.
func ConvertToJUnit(summary *models.BatchSummary) *JUnitTestSuites {
	durationSec := float64(summary.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      "verdict",
		Tests:     summary.TotalFiles,
		Failures:  summary.FallbackUsed,
		Errors:    summary.Errors,
		Time:      durationSec,
		Timestamp: summary.StartedAt.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: summary.RunID},
			{Name: "model", Value: summary.Model},
			{Name: "conversions", Value: fmt.Sprintf("%d", summary.Conversions)},
			{Name: "drop_offs", Value: fmt.Sprintf("%d", summary.DropOffs)},
		},
	}

	for _, fr := range summary.Results {
		suite.TestCases = append(suite.TestCases, convertFileResult(&fr))
	}

	return &JUnitTestSuites{
		Tests:      summary.TotalFiles,
		Failures:   summary.FallbackUsed,
		Errors:     summary.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertFileResult(fr *models.FileResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      Stem(fr.InputFile),
		Classname: "verdict.batch",
	}

	if fr.Outcome != nil {
		tc.Time = float64(fr.Outcome.ElapsedMs) / 1000.0
	}

	switch {
	case fr.Status == models.StatusError:
		tc.Error = &JUnitError{
			Message: fr.Err,
			Type:    "ProcessingError",
		}
	case fr.Outcome != nil && fr.Outcome.FallbackUsed:
		tc.Failure = buildFallbackFailure(fr.Outcome)
	}

	return tc
}

func buildFallbackFailure(outcome *models.Outcome) *JUnitFailure {
	var reasons []string
	for _, attempt := range outcome.Attempts {
		if attempt.Err != "" {
			reasons = append(reasons, fmt.Sprintf("attempt %d: %s", attempt.Number, attempt.Err))
			continue
		}
		if len(attempt.Reasons) > 0 {
			reasons = append(reasons, fmt.Sprintf("attempt %d: %s", attempt.Number, strings.Join(attempt.Reasons, "; ")))
		}
	}

	return &JUnitFailure{
		Message: fmt.Sprintf("no valid response after %d attempt(s)", outcome.AttemptsUsed),
		Type:    "ValidationExhausted",
		Body:    strings.Join(reasons, "\n"),
	}
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(summary *models.BatchSummary, path string) error {
	suites := ConvertToJUnit(summary)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
