package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/completion"
	"github.com/funnelworks/verdict/internal/settings"
)

const checkProbeTimeout = 5 * time.Second

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check if the completion service is ready",
		Long: `Check if the configured completion service is ready for a batch run.

Verifies that the settings parse, that the service answers, and that the
configured model is installed. For the ollama provider this queries the
/api/tags endpoint; the mock provider is always ready; the copilot provider
starts its own CLI session, so readiness is determined at run time.`,
		RunE:          runCheckE,
		SilenceErrors: true,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

// checkJSONReport is the --format json shape.
type checkJSONReport struct {
	Timestamp string   `json:"timestamp"`
	Provider  string   `json:"provider"`
	BaseURL   string   `json:"baseUrl,omitempty"`
	Model     string   `json:"model"`
	Probed    bool     `json:"probed"`
	Reachable bool     `json:"reachable"`
	Installed []string `json:"installedModels,omitempty"`
	Ready     bool     `json:"ready"`
	Error     string   `json:"error,omitempty"`
}

func runCheckE(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", format)
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}

	report := buildCheckReport(cmd.Context(), s)

	if format == "json" {
		if err := outputCheckJSON(cmd, report); err != nil {
			return err
		}
	} else {
		displayCheckReport(cmd, report)
	}

	if !report.Ready {
		return fmt.Errorf("service not ready: %s", report.Error)
	}
	return nil
}

func buildCheckReport(ctx context.Context, s *settings.Settings) *checkJSONReport {
	report := &checkJSONReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Provider:  s.Provider,
		Model:     s.Model,
	}

	switch s.Provider {
	case settings.ProviderOllama:
		report.BaseURL = s.BaseURL
		report.Probed = true

		probeCtx, cancel := context.WithTimeout(ctx, checkProbeTimeout)
		defer cancel()

		installed, err := completion.NewOllamaCompleter(s.BaseURL).ListModels(probeCtx)
		if err != nil {
			report.Error = err.Error()
			return report
		}

		report.Reachable = true
		report.Installed = installed

		if !slices.Contains(installed, s.Model) {
			report.Error = fmt.Sprintf("model %q is not installed (run: ollama pull %s)", s.Model, s.Model)
			return report
		}
		report.Ready = true

	case settings.ProviderCopilot:
		// The SDK spawns its own CLI session per run; there is nothing cheap
		// to probe here beyond the settings themselves.
		report.Reachable = true
		report.Ready = true

	case settings.ProviderMock:
		report.Reachable = true
		report.Ready = true
	}

	return report
}

//nolint:errcheck
func displayCheckReport(cmd *cobra.Command, report *checkJSONReport) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "\n🔍 Service Readiness Check\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	fmt.Fprintf(w, "Provider: %s\n", report.Provider)
	if report.BaseURL != "" {
		fmt.Fprintf(w, "Base URL: %s\n", report.BaseURL)
	}
	fmt.Fprintf(w, "Model:    %s\n\n", report.Model)

	if !report.Probed {
		fmt.Fprintf(w, "   ✅  Settings valid\n")
		fmt.Fprintf(w, "   —  No service probe for the %s provider\n", report.Provider)
	} else if !report.Reachable {
		fmt.Fprintf(w, "   ❌  Service unreachable: %s\n", report.Error)
	} else {
		fmt.Fprintf(w, "   ✅  Service reachable (%d model(s) installed)\n", len(report.Installed))
		if report.Ready {
			fmt.Fprintf(w, "   ✅  Model %s installed\n", report.Model)
		} else {
			fmt.Fprintf(w, "   ❌  %s\n", report.Error)
		}
	}

	fmt.Fprintf(w, "\n")
	if report.Ready {
		fmt.Fprintf(w, "✅ Ready: `verdict run` can use this configuration.\n\n")
	} else {
		fmt.Fprintf(w, "⚠️  Not ready. Fix the issue above and re-run `verdict check`.\n\n")
	}
}

// outputCheckJSON marshals the report as JSON to the command's stdout.
func outputCheckJSON(cmd *cobra.Command, report *checkJSONReport) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), buf.String())
	return err
}
