package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/ruleset"
	"github.com/funnelworks/verdict/internal/validate"
)

var validateRulesetPath string

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [response-file]",
		Short: "Validate a model response against the output contract",
		Long: `Validate a single model response against the output contract.

Reads the response text from a file, or from stdin when no file (or "-") is
given. Prints the decision on success and the failure reasons otherwise.

Exits 0 when the response is valid and 1 when it is not, so the command
works as a filter in scripts:

  verdict validate response.txt
  cat response.txt | verdict validate`,
		Args: cobra.MaximumNArgs(1),
		RunE: validateCommandE,
	}

	cmd.Flags().StringVar(&validateRulesetPath, "ruleset", "", "YAML validation ruleset (default: built-in session-outcome rules)")

	return cmd
}

func validateCommandE(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)

	if len(args) > 0 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading response file: %w", err)
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}

	rs := ruleset.Default()
	if validateRulesetPath != "" {
		rs, err = ruleset.Load(validateRulesetPath)
		if err != nil {
			return fmt.Errorf("loading ruleset: %w", err)
		}
	}

	validator, err := validate.NewTagValidator(rs.Name, rs)
	if err != nil {
		return fmt.Errorf("building validator: %w", err)
	}

	result := validator.Validate(string(data))

	out := cmd.OutOrStdout()
	if result.Valid {
		fmt.Fprintf(out, "valid: %s\n", result.Decision) //nolint:errcheck
		return nil
	}

	fmt.Fprintf(out, "invalid: %s\n", result.Failure) //nolint:errcheck
	for _, reason := range result.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason) //nolint:errcheck
	}

	return &BatchFailureError{Message: "response failed validation"}
}
