package validate

import (
	"fmt"

	"github.com/funnelworks/verdict/internal/models"
	"github.com/funnelworks/verdict/internal/ruleset"
	"github.com/go-viper/mapstructure/v2"
)

// Kind identifies the type of validator.
type Kind string

const (
	// KindTag checks the tagged-decision shape: a tag line followed by
	// enumerated reasoning steps.
	KindTag Kind = "tag"

	// KindKeyword checks for required/forbidden substrings. Used for
	// artifact spot checks, not for the runner's structural validation.
	KindKeyword Kind = "keyword"
)

// Validator is the interface for all response validators. Validate must be a
// pure function of its input: validating the same text twice yields the same
// result.
type Validator interface {
	// Name returns the validator name.
	Name() string

	// Kind returns the validator kind.
	Kind() Kind

	// Validate checks text against the validator's rules.
	Validate(text string) *models.ValidationResult
}

// Create builds a validator from a kind and a parameter map. Parameters are
// decoded with mapstructure so callers can pass configuration straight from
// YAML or flags.
func Create(kind Kind, name string, params map[string]any) (Validator, error) {
	switch kind {
	case KindTag:
		var v *struct {
			Decisions   []string `mapstructure:"decisions"`
			TagLine     string   `mapstructure:"tag_line"`
			StepLine    string   `mapstructure:"step_line"`
			MinSteps    *int     `mapstructure:"min_steps"`
			StripFences *bool    `mapstructure:"strip_fences"`
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}

		rs := ruleset.Default()
		if v != nil {
			if len(v.Decisions) > 0 {
				rs.Decisions = v.Decisions
			}
			if v.TagLine != "" {
				rs.TagLine = v.TagLine
			}
			if v.StepLine != "" {
				rs.StepLine = v.StepLine
			}
			if v.MinSteps != nil {
				rs.MinSteps = *v.MinSteps
			}
			if v.StripFences != nil {
				rs.StripFences = *v.StripFences
			}
		}

		return NewTagValidator(name, rs)
	case KindKeyword:
		var v *struct {
			MustContain    []string `mapstructure:"must_contain"`
			MustNotContain []string `mapstructure:"must_not_contain"`
		}

		if err := mapstructure.Decode(params, &v); err != nil {
			return nil, err
		}

		if v == nil {
			return NewKeywordValidator(name, nil, nil), nil
		}

		return NewKeywordValidator(name, v.MustContain, v.MustNotContain), nil
	default:
		return nil, fmt.Errorf("'%s' is not a valid validator kind", kind)
	}
}
